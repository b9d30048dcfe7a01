package handler

import (
	"context"
	"errors"
	"time"

	"github.com/goevery/presence/internal/ierr"
	"github.com/goevery/presence/internal/realtime"
)

type JoinRequest struct {
	RoomId string `json:"roomId"`
}

type JoinResponse struct {
	RoomId    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

type JoinHandlerInterface interface {
	Handle(ctx context.Context, req JoinRequest) (JoinResponse, error)
}

// JoinHandler subscribes the calling connection to a room. Whether the
// user may see the room was decided by the application layer before it
// handed out the room id; the gateway trusts its caller.
type JoinHandler struct {
	roomIdValidator *RoomIdValidator
	rooms           *realtime.RoomIndex
}

func NewJoinHandler(
	roomIdValidator *RoomIdValidator,
	rooms *realtime.RoomIndex,
) *JoinHandler {
	return &JoinHandler{
		roomIdValidator,
		rooms,
	}
}

func (h *JoinHandler) Handle(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	err := h.roomIdValidator.Validate(req.RoomId)
	if err != nil {
		return JoinResponse{}, err
	}

	connection, ok := realtime.ConnectionFromContext(ctx)
	if !ok {
		return JoinResponse{}, errors.New("connection not found in context")
	}

	if connection.UserId() == "" {
		return JoinResponse{},
			ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("connection must announce before joining rooms"))
	}

	h.rooms.Join(connection.Id, req.RoomId)

	return JoinResponse{
		RoomId:    req.RoomId,
		Timestamp: time.Now(),
	}, nil
}
