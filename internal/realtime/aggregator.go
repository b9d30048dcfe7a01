package realtime

import (
	"context"
	"time"

	"github.com/goevery/presence/internal/presence"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

// Aggregator maintains the global "who is online" view. It observes the
// registry's edge-triggered transitions, rebroadcasts the full online
// set on every boundary crossing, and records last-seen timestamps when
// a user drops offline.
type Aggregator struct {
	logger   *zap.Logger
	registry *Registry
	router   *Router
	store    presence.LastSeenStore

	now func() time.Time
}

func NewAggregator(
	logger *zap.Logger,
	registry *Registry,
	router *Router,
	store presence.LastSeenStore,
) *Aggregator {
	return &Aggregator{
		logger:   logger,
		registry: registry,
		router:   router,
		store:    store,
		now:      time.Now,
	}
}

// HandleTransition is the registry's transition listener. Opening a
// second tab while already online never reaches this point, so there is
// no broadcast storm under multi-device churn.
func (a *Aggregator) HandleTransition(userId string, online bool) {
	now := a.now()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	kind := KindUserOnline
	if !online {
		kind = KindUserOffline

		if err := a.store.Record(ctx, userId, now); err != nil {
			a.logger.Warn("failed to record last seen",
				zap.String("userId", userId),
				zap.Error(err))
		}
	}

	envelope := Envelope{
		Id:         gonanoid.Must(),
		Kind:       kind,
		CreateTime: now,
		Broadcast:  true,
		Payload: PresencePayload{
			UserId: userId,
			Online: a.registry.OnlineUserIds(),
		},
	}

	if _, err := a.router.Deliver(ctx, envelope); err != nil {
		a.logger.Error("failed to broadcast presence change",
			zap.String("userId", userId),
			zap.Error(err))
	}
}

// LastSeen reports when a user last dropped offline. A user that was
// never seen yields ok=false.
func (a *Aggregator) LastSeen(ctx context.Context, userId string) (time.Time, bool, error) {
	return a.store.Get(ctx, userId)
}
