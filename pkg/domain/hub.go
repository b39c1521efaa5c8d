package domain

import "time"

// Dispatcher is the push side of the hub used by application code
type Dispatcher interface {
	// SendToConnection writes a message to one connection
	SendToConnection(connectionID string, message Message) bool

	// SendToKitchen writes a message to every connection of a kitchen
	SendToKitchen(kitchenID int64, message Message) int

	// SendToUser writes a message to every connection of a user
	SendToUser(userID int64, message Message) int

	// Broadcast writes a message to every connection
	Broadcast(message Message) int
}

// ConnectionState is the liveness state of one connection
type ConnectionState string

const (
	ConnectionStateAlive       ConnectionState = "alive"
	ConnectionStatePendingPing ConnectionState = "pending_ping"
)

// ConnectionInfo is a read-only view of a registered connection
type ConnectionInfo struct {
	ID          string          `json:"id"`
	UserID      int64           `json:"userId"`
	KitchenID   int64           `json:"kitchenId"`
	State       ConnectionState `json:"state"`
	ConnectedAt time.Time       `json:"connectedAt"`
	LastPing    time.Time       `json:"lastPing"`
}

// HubStats provides a snapshot of the hub indices
type HubStats struct {
	TotalConnections     int           `json:"totalConnections"`
	ActiveKitchens       int           `json:"activeKitchens"`
	ConnectedUsers       int           `json:"connectedUsers"`
	ConnectionsByKitchen map[int64]int `json:"connectionsByKitchen"`
}
