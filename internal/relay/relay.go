package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/cookiedrop/kitchenhub/internal/config"
	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// Relay forwards back-office events published on a Redis channel to the hub
type Relay struct {
	client     *redis.Client
	channel    string
	dispatcher domain.Dispatcher
	logger     *logging.Logger
	clock      clockwork.Clock
	errors     errors.Handler
}

// New creates a relay for cfg. clock may be nil.
func New(cfg config.RedisConfig, dispatcher domain.Dispatcher, logger *logging.Logger, clock clockwork.Clock) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger = logger.WithFields(map[string]any{"component": "relay", "channel": cfg.Channel})

	return &Relay{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		channel:    cfg.Channel,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      clock,
		errors:     errors.NewDefaultHandler(logger.Logger),
	}
}

// Run subscribes to the channel and dispatches events until ctx is done
func (r *Relay) Run(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "REDIS_UNAVAILABLE", "failed to connect to redis")
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Events published after the confirmation below are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "SUBSCRIBE_FAILED", "failed to subscribe")
	}

	r.logger.Info("relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New(errors.ErrorTypeTransport, "SUBSCRIPTION_CLOSED", "redis subscription closed")
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload []byte) {
	ev, err := Decode(payload)
	if err != nil {
		r.errors.Handle(ctx, err)
		return
	}

	n := Dispatch(r.dispatcher, ev, r.clock.Now())
	r.logger.Debug("relayed event",
		"scope", ev.Scope,
		"message_type", ev.Type,
		"delivered", n,
	)
}

// Publish sends an event to the relay channel
func (r *Relay) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "MARSHAL_FAILED", "failed to encode relay event")
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "PUBLISH_FAILED", "failed to publish relay event")
	}
	return nil
}

// Close releases the Redis client
func (r *Relay) Close() error {
	return r.client.Close()
}
