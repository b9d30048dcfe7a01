package realtime

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// Delivery reports how a fan-out went: how many live connections were
// resolved as targets and how many accepted the push. Zero targets is a
// normal outcome, never an error.
type Delivery struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
}

func (d Delivery) Reached() bool {
	return d.Delivered > 0
}

// Publisher forwards locally originated envelopes to other process
// instances. Optional; single-process deployments run without one.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) error
}

// Router resolves an envelope's addressing mode to live connections and
// pushes the payload to each. Delivery is at-most-once and best-effort:
// durable state was written by the caller before the router is invoked.
type Router struct {
	logger   *zap.Logger
	registry *Registry
	rooms    *RoomIndex

	origin    string
	publisher Publisher
}

func NewRouter(
	logger *zap.Logger,
	registry *Registry,
	rooms *RoomIndex,
) *Router {
	return &Router{
		logger:   logger,
		registry: registry,
		rooms:    rooms,
		origin:   gonanoid.Must(),
	}
}

// Origin identifies this process instance on the relay topic.
func (r *Router) Origin() string {
	return r.origin
}

// SetPublisher wires the cross-process relay in after construction.
func (r *Router) SetPublisher(publisher Publisher) {
	r.publisher = publisher
}

// Deliver fans an envelope out to its resolved targets. A malformed
// envelope fails fast; an empty target set returns a zero Delivery.
func (r *Router) Deliver(ctx context.Context, envelope Envelope) (Delivery, error) {
	if err := envelope.Validate(); err != nil {
		return Delivery{}, err
	}

	if envelope.Origin == "" {
		envelope.Origin = r.origin

		if r.publisher != nil {
			if err := r.publisher.Publish(ctx, envelope); err != nil {
				r.logger.Warn("failed to publish envelope to relay",
					zap.String("envelopeId", envelope.Id),
					zap.Error(err))
			}
		}
	}

	targets := r.resolve(envelope)

	var delivery Delivery
	var staleConnectionIds []string

	for _, conn := range targets {
		delivery.Attempted++

		select {
		case <-conn.Done():
			// Torn down while the fan-out was resolving.
		case conn.Send <- envelope:
			delivery.Delivered++
		default:
			r.logger.Warn("connection send channel is full, closing connection",
				zap.String("connectionId", conn.Id))

			staleConnectionIds = append(staleConnectionIds, conn.Id)
		}
	}

	// A stale connection never aborts delivery to the rest of the set;
	// it is pruned after the fan-out completes.
	for _, connectionId := range staleConnectionIds {
		r.rooms.LeaveAll(connectionId)
		r.registry.Disconnect(connectionId)
	}

	return delivery, nil
}

func (r *Router) resolve(envelope Envelope) []*Connection {
	switch {
	case envelope.UserId != "":
		return r.registry.ConnectionsFor(envelope.UserId)
	case envelope.RoomId != "":
		memberIds := r.rooms.MembersOf(envelope.RoomId)

		connections := make([]*Connection, 0, len(memberIds))
		for _, connectionId := range memberIds {
			if conn, ok := r.registry.Connection(connectionId); ok {
				connections = append(connections, conn)
			}
		}

		return connections
	default:
		return r.registry.AllConnections()
	}
}
