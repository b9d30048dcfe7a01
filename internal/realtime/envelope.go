package realtime

import (
	"errors"
	"time"

	"github.com/goevery/presence/internal/ierr"
)

// Well-known envelope kinds. The router treats every payload as opaque;
// these constants only exist so producers and tests agree on spelling.
const (
	KindNewMessage        = "new-message"
	KindMessageEdited     = "message-edited"
	KindMessageDeleted    = "message-deleted"
	KindReactionUpdated   = "reaction-updated"
	KindNotification      = "notification"
	KindChannelAssignment = "channel-assignment"
	KindBuzz              = "buzz"
	KindUserOnline        = "user-online"
	KindUserOffline       = "user-offline"
)

// Envelope is the unit of delivery. Exactly one addressing mode must be
// set: UserId, RoomId or Broadcast. Origin identifies the process that
// first accepted the envelope and is only used by the relay to avoid
// re-publishing envelopes it received from another process.
type Envelope struct {
	Id         string    `json:"id"`
	Kind       string    `json:"kind"`
	CreateTime time.Time `json:"createTime"`
	Payload    any       `json:"payload"`

	UserId    string `json:"userId,omitempty"`
	RoomId    string `json:"roomId,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`

	Origin string `json:"origin,omitempty"`
}

func (e Envelope) Validate() error {
	if e.Kind == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("envelope kind is required"))
	}

	modes := 0
	if e.UserId != "" {
		modes++
	}
	if e.RoomId != "" {
		modes++
	}
	if e.Broadcast {
		modes++
	}

	if modes != 1 {
		return ierr.New(ierr.ErrorCodeInvalidArgument,
			errors.New("envelope must have exactly one addressing mode"))
	}

	return nil
}

// PresencePayload is the body of user-online and user-offline envelopes.
// Online always carries the full current online-user-id list so clients
// can replace their view instead of patching it.
type PresencePayload struct {
	UserId string   `json:"userId"`
	Online []string `json:"online"`
}

// UserRoom names the private per-user room used for direct pushes. The
// convention is shared with the application layer and must not change.
func UserRoom(userId string) string {
	return "user-" + userId
}

// ChannelRoom names the shared room for a channel.
func ChannelRoom(channelId string) string {
	return "channel-" + channelId
}
