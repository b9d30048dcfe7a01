package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goevery/presence/internal/realtime"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	envelopeTopic         = "presence:envelopes"
	defaultReconnectDelay = 5 * time.Second
)

// Relay bridges envelope fan-out across process instances through a
// shared redis pub/sub topic. Locally originated envelopes are
// published by the router; envelopes from other origins are replayed
// into the local router. Single-process deployments run without a
// relay and lose nothing.
type Relay struct {
	logger *zap.Logger
	rdb    *redis.Client
	router *realtime.Router

	reconnectDelay time.Duration
}

func NewRelay(
	logger *zap.Logger,
	rdb *redis.Client,
	router *realtime.Router,
) *Relay {
	return &Relay{
		logger:         logger,
		rdb:            rdb,
		router:         router,
		reconnectDelay: defaultReconnectDelay,
	}
}

func (r *Relay) Publish(ctx context.Context, envelope realtime.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	return r.rdb.Publish(ctx, envelopeTopic, data).Err()
}

// Run consumes the relay topic until the context is cancelled. A lost
// subscription is re-established after a delay rather than degrading
// the process to local-only fan-out.
func (r *Relay) Run(ctx context.Context) {
	for {
		r.consume(ctx)

		if ctx.Err() != nil {
			return
		}

		r.logger.Warn("relay subscription lost, reconnecting",
			zap.Duration("delay", r.reconnectDelay))

		select {
		case <-time.After(r.reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) consume(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, envelopeTopic)
	defer pubsub.Close()

	r.logger.Info("relay subscribed",
		zap.String("topic", envelopeTopic),
		zap.String("origin", r.router.Origin()))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			r.logger.Error("relay receive failed", zap.Error(err))

			return
		}

		var envelope realtime.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			r.logger.Warn("relay received malformed envelope", zap.Error(err))

			continue
		}

		if envelope.Origin == r.router.Origin() {
			continue
		}

		if _, err := r.router.Deliver(ctx, envelope); err != nil {
			r.logger.Warn("relay delivery failed",
				zap.String("envelopeId", envelope.Id),
				zap.Error(err))
		}
	}
}
