package domain

// Socket is one live client connection as seen by the hub.
//
// Implementations must make Send non-blocking: the hub writes to many sockets
// in a single dispatch pass and one slow client must not stall the others.
type Socket interface {
	// Send queues a text frame for delivery to the client
	Send(message []byte) error

	// Ping sends a transport-level ping frame
	Ping() error

	// Close closes the underlying connection. Calling Close more than once
	// is allowed.
	Close() error

	// SetHandler attaches the lifecycle callbacks for this socket
	SetHandler(handler SocketHandler)
}

// SocketHandler receives the lifecycle events of a single socket.
type SocketHandler interface {
	// OnMessage is called for every data frame read from the client
	OnMessage(data []byte)

	// OnPong is called when the client answers a ping
	OnPong()

	// OnClose is called once when the connection ends cleanly
	OnClose()

	// OnError is called once when the connection ends with an error
	OnError(err error)
}
