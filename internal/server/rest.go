package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goevery/presence/internal/auth"
	"github.com/goevery/presence/internal/handler"
	"github.com/goevery/presence/internal/ierr"
	"github.com/goevery/presence/internal/realtime"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RESTServer is the collaborator ingress: the application layer calls
// it after persisting a domain event, to trigger fan-out and to answer
// "is anyone online" questions.
type RESTServer struct {
	logger *zap.Logger

	deliverHandler handler.DeliverHandlerInterface
	buzzHandler    handler.BuzzHandlerInterface
	registry       *realtime.Registry
	aggregator     *realtime.Aggregator
	authenticator  *auth.Authenticator
}

func NewRESTServer(
	logger *zap.Logger,
	deliverHandler handler.DeliverHandlerInterface,
	buzzHandler handler.BuzzHandlerInterface,
	registry *realtime.Registry,
	aggregator *realtime.Aggregator,
	authenticator *auth.Authenticator,
) *RESTServer {
	return &RESTServer{
		logger,
		deliverHandler,
		buzzHandler,
		registry,
		aggregator,
		authenticator,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/deliver", s.authenticated(s.deliver)).Methods("POST")
	router.HandleFunc("/buzz", s.authenticated(s.buzz)).Methods("POST")
	router.HandleFunc("/online", s.authenticated(s.online)).Methods("GET")
	router.HandleFunc("/online/{userId}", s.authenticated(s.onlineUser)).Methods("GET")
}

func (s *RESTServer) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		_, err := s.authenticator.AuthenticateAPIKey(apiKey)
		if err != nil {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func (s *RESTServer) deliver(w http.ResponseWriter, r *http.Request) {
	var deliverRequest handler.DeliverRequest
	err := json.NewDecoder(r.Body).Decode(&deliverRequest)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deliverResponse, err := s.deliverHandler.Handle(r.Context(), deliverRequest)
	if err != nil {
		s.writeError(w, "failed to handle deliver request", err)
		return
	}

	s.writeJSON(w, deliverResponse)
}

func (s *RESTServer) buzz(w http.ResponseWriter, r *http.Request) {
	var buzzRequest handler.BuzzRequest
	err := json.NewDecoder(r.Body).Decode(&buzzRequest)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	buzzResponse, err := s.buzzHandler.Handle(r.Context(), buzzRequest)
	if err != nil {
		s.writeError(w, "failed to handle buzz request", err)
		return
	}

	if !buzzResponse.Accepted {
		s.writeJSONStatus(w, http.StatusTooManyRequests, buzzResponse)
		return
	}

	s.writeJSON(w, buzzResponse)
}

type onlineResponse struct {
	Online []string `json:"online"`
}

func (s *RESTServer) online(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, onlineResponse{
		Online: s.registry.OnlineUserIds(),
	})
}

type onlineUserResponse struct {
	UserId     string     `json:"userId"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

func (s *RESTServer) onlineUser(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["userId"]

	response := onlineUserResponse{
		UserId: userId,
		Online: s.registry.IsOnline(userId),
	}

	lastSeenAt, ok, err := s.aggregator.LastSeen(r.Context(), userId)
	if err != nil {
		s.logger.Error("failed to read last seen",
			zap.String("userId", userId),
			zap.Error(err))
		http.Error(w, "failed to read last seen", http.StatusInternalServerError)
		return
	}
	if ok {
		response.LastSeenAt = &lastSeenAt
	}

	s.writeJSON(w, response)
}

func (s *RESTServer) writeError(w http.ResponseWriter, message string, err error) {
	var coded ierr.Error
	if errors.As(err, &coded) {
		switch coded.Code {
		case ierr.ErrorCodeInvalidArgument:
			http.Error(w, coded.Message, http.StatusBadRequest)
			return
		case ierr.ErrorCodeUnauthenticated:
			http.Error(w, coded.Message, http.StatusUnauthorized)
			return
		case ierr.ErrorCodeResourceExhausted:
			http.Error(w, coded.Message, http.StatusTooManyRequests)
			return
		}
	}

	s.logger.Error(message, zap.Error(err))
	http.Error(w, message, http.StatusInternalServerError)
}

func (s *RESTServer) writeJSON(w http.ResponseWriter, v any) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *RESTServer) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
