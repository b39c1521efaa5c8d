package hub

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

// IDGenerator returns a new, never reused connection id
type IDGenerator func() string

// NewConnectionID returns a time-ordered xid followed by a 48-bit random
// suffix, so ids sort by creation time but cannot be guessed.
func NewConnectionID() string {
	var suffix [6]byte
	_, _ = rand.Read(suffix[:])
	return xid.New().String() + "-" + hex.EncodeToString(suffix[:])
}

// Recorder receives hub activity for metrics
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed(reason eventbus.CloseReason)
	MessageSent(messageType domain.MessageType)
	SendFailed(messageType domain.MessageType)
	MessageDropped()
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened()                     {}
func (nopRecorder) ConnectionClosed(eventbus.CloseReason) {}
func (nopRecorder) MessageSent(domain.MessageType)        {}
func (nopRecorder) SendFailed(domain.MessageType)         {}
func (nopRecorder) MessageDropped()                       {}

// Options configures a Hub. Zero values fall back to DefaultOptions.
type Options struct {
	Logger      *logging.Logger
	Clock       clockwork.Clock
	IDGenerator IDGenerator
	Events      eventbus.Publisher
	Recorder    Recorder

	// PingInterval is the period of the ping sweep
	PingInterval time.Duration
	// IdleThreshold is how long a connection may be quiet before it is pinged
	IdleThreshold time.Duration
	// PongTimeout evicts connections quiet for this long
	PongTimeout time.Duration
	// CleanupInterval is the period of the stale-connection sweep
	CleanupInterval time.Duration
	// StaleTimeout evicts connections quiet for this long on the cleanup sweep
	StaleTimeout time.Duration
}

// DefaultOptions returns the production liveness settings
func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		IdleThreshold:   30 * time.Second,
		PongTimeout:     60 * time.Second,
		CleanupInterval: 60 * time.Second,
		StaleTimeout:    5 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()

	if o.Logger == nil {
		o.Logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.IDGenerator == nil {
		o.IDGenerator = NewConnectionID
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = def.IdleThreshold
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = def.PongTimeout
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = def.CleanupInterval
	}
	if o.StaleTimeout <= 0 {
		o.StaleTimeout = def.StaleTimeout
	}

	return o
}
