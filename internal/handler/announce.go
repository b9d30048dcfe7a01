package handler

import (
	"context"
	"errors"
	"time"

	"github.com/goevery/presence/internal/auth"
	"github.com/goevery/presence/internal/realtime"
)

type AnnounceRequest struct {
	Token string `json:"token"`
}

type AnnounceResponse struct {
	UserId    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type AnnounceHandlerInterface interface {
	Handle(ctx context.Context, req AnnounceRequest) (AnnounceResponse, error)
}

// AnnounceHandler binds a connection to the user identity carried by
// the announce token, and auto-joins the user's private room so direct
// pushes reach every one of their tabs.
type AnnounceHandler struct {
	authenticator *auth.Authenticator
	registry      *realtime.Registry
	rooms         *realtime.RoomIndex
}

func NewAnnounceHandler(
	authenticator *auth.Authenticator,
	registry *realtime.Registry,
	rooms *realtime.RoomIndex,
) *AnnounceHandler {
	return &AnnounceHandler{
		authenticator,
		registry,
		rooms,
	}
}

func (h *AnnounceHandler) Handle(ctx context.Context, req AnnounceRequest) (AnnounceResponse, error) {
	authentication, err := h.authenticator.AuthenticateToken(req.Token)
	if err != nil {
		return AnnounceResponse{}, err
	}

	connection, ok := realtime.ConnectionFromContext(ctx)
	if !ok {
		return AnnounceResponse{}, errors.New("connection not found in context")
	}

	err = h.registry.Announce(connection.Id, authentication.Subject)
	if err != nil {
		return AnnounceResponse{}, err
	}

	h.rooms.Join(connection.Id, realtime.UserRoom(authentication.Subject))

	return AnnounceResponse{
		UserId:    authentication.Subject,
		Timestamp: time.Now(),
	}, nil
}
