package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIndex(t *testing.T) {
	t.Run("join then leave restores membership", func(t *testing.T) {
		rooms := NewRoomIndex()

		rooms.Join("c1", "channel-42")
		before := rooms.MembersOf("channel-42")

		rooms.Join("c2", "channel-42")
		assert.ElementsMatch(t, []string{"c1", "c2"}, rooms.MembersOf("channel-42"))

		rooms.Leave("c2", "channel-42")
		assert.ElementsMatch(t, before, rooms.MembersOf("channel-42"))
	})

	t.Run("join is idempotent", func(t *testing.T) {
		rooms := NewRoomIndex()

		rooms.Join("c1", "channel-42")
		rooms.Join("c1", "channel-42")

		assert.Equal(t, []string{"c1"}, rooms.MembersOf("channel-42"))
	})

	t.Run("leave of absent membership is a no-op", func(t *testing.T) {
		rooms := NewRoomIndex()

		assert.NotPanics(t, func() {
			rooms.Leave("c1", "channel-42")
		})
		assert.Empty(t, rooms.MembersOf("channel-42"))
	})

	t.Run("leave all clears every membership", func(t *testing.T) {
		rooms := NewRoomIndex()

		rooms.Join("c1", "channel-42")
		rooms.Join("c1", "user-alice")
		rooms.Join("c2", "channel-42")

		rooms.LeaveAll("c1")

		assert.Empty(t, rooms.RoomsOf("c1"))
		assert.Equal(t, []string{"c2"}, rooms.MembersOf("channel-42"))
		assert.Empty(t, rooms.MembersOf("user-alice"))
	})

	t.Run("similarly named rooms stay distinct", func(t *testing.T) {
		rooms := NewRoomIndex()

		rooms.Join("c1", "channel-42")
		rooms.Join("c2", "channel-422")

		assert.Equal(t, []string{"c1"}, rooms.MembersOf("channel-42"))
		assert.Equal(t, []string{"c2"}, rooms.MembersOf("channel-422"))
	})
}
