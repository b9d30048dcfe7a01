package handler

import (
	"context"
	"errors"

	"github.com/goevery/presence/internal/realtime"
)

type LeaveRequest struct {
	RoomId string `json:"roomId"`
}

type LeaveResponse struct {
	Success bool `json:"success"`
}

type LeaveHandlerInterface interface {
	Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error)
}

type LeaveHandler struct {
	roomIdValidator *RoomIdValidator
	rooms           *realtime.RoomIndex
}

func NewLeaveHandler(
	roomIdValidator *RoomIdValidator,
	rooms *realtime.RoomIndex,
) *LeaveHandler {
	return &LeaveHandler{
		roomIdValidator,
		rooms,
	}
}

// Leaving a room the connection never joined is a no-op, not an error.
func (h *LeaveHandler) Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error) {
	err := h.roomIdValidator.Validate(req.RoomId)
	if err != nil {
		return LeaveResponse{}, err
	}

	connection, ok := realtime.ConnectionFromContext(ctx)
	if !ok {
		return LeaveResponse{}, errors.New("connection not found in context")
	}

	h.rooms.Leave(connection.Id, req.RoomId)

	return LeaveResponse{
		Success: true,
	}, nil
}
