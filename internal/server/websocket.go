package server

import (
	"net/http"
	"time"

	"github.com/goevery/presence/internal/handler"
	"github.com/goevery/presence/internal/realtime"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	readLimit      = 4096
	sendBufferSize = 256
	replyBuffer    = 32
)

type WebSocketServer struct {
	logger   *zap.Logger
	upgrader *websocket.Upgrader

	registry *realtime.Registry
	rooms    *realtime.RoomIndex
	router   *Router
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	registry *realtime.Registry,
	rooms *realtime.RoomIndex,
	router *Router,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		registry,
		rooms,
		router,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/websocket", s.serve)
}

func (s *WebSocketServer) serve(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))

		return
	}

	wsConn.SetReadLimit(readLimit)

	connection := realtime.NewConnection(gonanoid.Must(), sendBufferSize)
	s.registry.Register(connection)

	s.logger.Info("websocket connection established",
		zap.String("connectionId", connection.Id))

	ctx := realtime.WithConnection(r.Context(), connection)

	replies := make(chan handler.Response, replyBuffer)
	writeDone := make(chan struct{})

	go s.writePump(wsConn, connection, replies, writeDone)

	for {
		var request handler.Request
		if err := wsConn.ReadJSON(&request); err != nil {
			break
		}

		response := s.router.RouteRequest(ctx, request)
		if response == nil {
			continue
		}

		select {
		case replies <- *response:
		case <-writeDone:
		}
	}

	// Disconnect marks the connection done, which stops the write pump.
	s.rooms.LeaveAll(connection.Id)
	s.registry.Disconnect(connection.Id)

	<-writeDone

	s.logger.Info("websocket connection closed",
		zap.String("connectionId", connection.Id))
}

type eventBody struct {
	Id         string    `json:"id"`
	Kind       string    `json:"kind"`
	CreateTime time.Time `json:"createTime"`
	Payload    any       `json:"payload,omitempty"`
}

// writePump is the sole writer on the websocket: replies to client
// requests and server-initiated event pushes are serialized here.
func (s *WebSocketServer) writePump(
	wsConn *websocket.Conn,
	connection *realtime.Connection,
	replies <-chan handler.Response,
	writeDone chan<- struct{},
) {
	defer close(writeDone)
	defer wsConn.Close()

	for {
		select {
		case <-connection.Done():
			return
		case envelope := <-connection.Send:
			notification, err := handler.NewNotification(methodFor(envelope), eventBody{
				Id:         envelope.Id,
				Kind:       envelope.Kind,
				CreateTime: envelope.CreateTime,
				Payload:    envelope.Payload,
			})
			if err != nil {
				s.logger.Error("failed to encode event notification",
					zap.String("connectionId", connection.Id),
					zap.Error(err))

				continue
			}

			if err := wsConn.WriteJSON(notification); err != nil {
				s.logger.Warn("failed to push event to connection",
					zap.String("connectionId", connection.Id),
					zap.Error(err))

				return
			}
		case response := <-replies:
			if err := wsConn.WriteJSON(response); err != nil {
				s.logger.Warn("failed to write response to connection",
					zap.String("connectionId", connection.Id),
					zap.Error(err))

				return
			}
		}
	}
}

// Presence changes are first-class notifications; every other kind is
// an opaque domain event.
func methodFor(envelope realtime.Envelope) string {
	switch envelope.Kind {
	case realtime.KindUserOnline, realtime.KindUserOffline:
		return envelope.Kind
	default:
		return "event"
	}
}
