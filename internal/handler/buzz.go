package handler

import (
	"context"
	"errors"
	"time"

	"github.com/goevery/presence/internal/ierr"
	"github.com/goevery/presence/internal/realtime"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type BuzzRequest struct {
	UserId  string `json:"userId"`
	Payload any    `json:"payload,omitempty"`

	// From identifies the acting user when the request arrives over the
	// REST ingress. Over a websocket the announced identity of the
	// connection wins and From is ignored.
	From string `json:"from,omitempty"`
}

type BuzzPayload struct {
	From    string `json:"from"`
	Payload any    `json:"payload,omitempty"`
}

type BuzzResponse struct {
	Accepted  bool `json:"accepted"`
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
}

type BuzzHandlerInterface interface {
	Handle(ctx context.Context, req BuzzRequest) (BuzzResponse, error)
}

// BuzzHandler fans the ad-hoc buzz alert out to a target user, bounded
// per acting identity by a fixed-window limiter. A denied buzz is a
// normal outcome (Accepted=false), not an error, so the HTTP layer can
// answer with a rate-limit status instead of a generic failure.
type BuzzHandler struct {
	limiter *realtime.Limiter
	router  *realtime.Router
}

func NewBuzzHandler(
	limiter *realtime.Limiter,
	router *realtime.Router,
) *BuzzHandler {
	return &BuzzHandler{
		limiter,
		router,
	}
}

func (h *BuzzHandler) Handle(ctx context.Context, req BuzzRequest) (BuzzResponse, error) {
	if req.UserId == "" {
		return BuzzResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("userId is required"))
	}

	actorId := req.From
	if connection, ok := realtime.ConnectionFromContext(ctx); ok {
		actorId = connection.UserId()
	}

	if actorId == "" {
		return BuzzResponse{},
			ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("acting user is unknown"))
	}

	if !h.limiter.TryConsume(actorId) {
		return BuzzResponse{
			Accepted: false,
		}, nil
	}

	envelope := realtime.Envelope{
		Id:         gonanoid.Must(),
		Kind:       realtime.KindBuzz,
		CreateTime: time.Now(),
		UserId:     req.UserId,
		Payload: BuzzPayload{
			From:    actorId,
			Payload: req.Payload,
		},
	}

	delivery, err := h.router.Deliver(ctx, envelope)
	if err != nil {
		return BuzzResponse{}, err
	}

	return BuzzResponse{
		Accepted:  true,
		Attempted: delivery.Attempted,
		Delivered: delivery.Delivered,
	}, nil
}
