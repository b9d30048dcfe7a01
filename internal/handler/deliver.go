package handler

import (
	"context"
	"time"

	"github.com/goevery/presence/internal/realtime"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type DeliverRequest struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`

	UserId    string `json:"userId,omitempty"`
	RoomId    string `json:"roomId,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`
}

type DeliverResponse struct {
	Id        string `json:"id"`
	Attempted int    `json:"attempted"`
	Delivered int    `json:"delivered"`
}

type DeliverHandlerInterface interface {
	Handle(ctx context.Context, req DeliverRequest) (DeliverResponse, error)
}

// DeliverHandler is the collaborator write contract: the application
// layer calls it after it has durably persisted whatever the event
// represents. Nobody-online comes back as zero counts, never an error.
type DeliverHandler struct {
	router *realtime.Router
}

func NewDeliverHandler(router *realtime.Router) *DeliverHandler {
	return &DeliverHandler{
		router,
	}
}

func (h *DeliverHandler) Handle(ctx context.Context, req DeliverRequest) (DeliverResponse, error) {
	envelope := realtime.Envelope{
		Id:         gonanoid.Must(),
		Kind:       req.Kind,
		CreateTime: time.Now(),
		Payload:    req.Payload,
		UserId:     req.UserId,
		RoomId:     req.RoomId,
		Broadcast:  req.Broadcast,
	}

	delivery, err := h.router.Deliver(ctx, envelope)
	if err != nil {
		return DeliverResponse{}, err
	}

	return DeliverResponse{
		Id:        envelope.Id,
		Attempted: delivery.Attempted,
		Delivered: delivery.Delivered,
	}, nil
}
