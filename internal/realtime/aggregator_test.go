package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/goevery/presence/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAggregator_PresenceBroadcast(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	setup := func() (*Registry, *RoomIndex, *Router, *Aggregator) {
		registry := NewRegistry(logger)
		rooms := NewRoomIndex()
		router := NewRouter(logger, registry, rooms)
		store := presence.NewMemoryStore()
		aggregator := NewAggregator(logger, registry, router, store)
		aggregator.now = func() time.Time { return now }
		registry.SetTransitionListener(aggregator.HandleTransition)

		return registry, rooms, router, aggregator
	}

	presenceOf := func(t *testing.T, envelope Envelope) PresencePayload {
		t.Helper()

		payload, ok := envelope.Payload.(PresencePayload)
		require.True(t, ok)

		return payload
	}

	t.Run("broadcast fires once per boundary crossing", func(t *testing.T) {
		registry, _, _, _ := setup()

		c1 := NewConnection("c1", 8)
		c2 := NewConnection("c2", 8)
		registry.Register(c1)
		registry.Register(c2)

		require.NoError(t, registry.Announce("c1", "alice"))

		envelopes := drainSend(c2)
		require.Len(t, envelopes, 1)
		assert.Equal(t, KindUserOnline, envelopes[0].Kind)
		assert.Equal(t, PresencePayload{UserId: "alice", Online: []string{"alice"}}, presenceOf(t, envelopes[0]))

		// Second tab: no broadcast.
		require.NoError(t, registry.Announce("c2", "alice"))
		assert.Empty(t, drainSend(c2))

		registry.Disconnect("c1")
		assert.Empty(t, drainSend(c2))

		registry.Disconnect("c2")
	})

	t.Run("offline transition records last seen", func(t *testing.T) {
		registry, _, _, aggregator := setup()

		c1 := NewConnection("c1", 8)
		registry.Register(c1)
		require.NoError(t, registry.Announce("c1", "alice"))

		_, seen, err := aggregator.LastSeen(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, seen)

		registry.Disconnect("c1")

		lastSeenAt, seen, err := aggregator.LastSeen(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, seen)
		assert.Equal(t, now, lastSeenAt)
	})

	t.Run("end to end room and presence scenario", func(t *testing.T) {
		registry, rooms, router, _ := setup()

		c1 := NewConnection("c1", 16)
		c2 := NewConnection("c2", 16)
		registry.Register(c1)
		registry.Register(c2)

		require.NoError(t, registry.Announce("c1", "alice"))
		require.NoError(t, registry.Announce("c2", "bob"))
		rooms.Join("c1", "channel-42")
		rooms.Join("c2", "channel-42")
		drainSend(c1)
		drainSend(c2)

		delivery, err := router.Deliver(ctx, Envelope{
			Id:     "e1",
			Kind:   KindNewMessage,
			RoomId: "channel-42",
		})
		require.NoError(t, err)
		assert.Equal(t, Delivery{Attempted: 2, Delivered: 2}, delivery)
		assert.Len(t, drainSend(c1), 1)
		assert.Len(t, drainSend(c2), 1)

		rooms.LeaveAll("c1")
		registry.Disconnect("c1")

		offline := drainSend(c2)
		require.Len(t, offline, 1)
		assert.Equal(t, KindUserOffline, offline[0].Kind)
		payload := presenceOf(t, offline[0])
		assert.Equal(t, "alice", payload.UserId)
		assert.Equal(t, []string{"bob"}, payload.Online)

		delivery, err = router.Deliver(ctx, Envelope{
			Id:     "e2",
			Kind:   KindNewMessage,
			RoomId: "channel-42",
		})
		require.NoError(t, err)
		assert.Equal(t, Delivery{Attempted: 1, Delivered: 1}, delivery)
		assert.Len(t, drainSend(c2), 1)
	})
}
