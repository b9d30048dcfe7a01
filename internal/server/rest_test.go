package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goevery/presence/internal/auth"
	"github.com/goevery/presence/internal/handler"
	"github.com/goevery/presence/internal/ierr"
	"github.com/goevery/presence/internal/presence"
	"github.com/goevery/presence/internal/realtime"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDeliverHandler struct {
	mock.Mock
}

func (m *MockDeliverHandler) Handle(ctx context.Context, req handler.DeliverRequest) (handler.DeliverResponse, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(handler.DeliverResponse), args.Error(1)
}

type restStack struct {
	registry       *realtime.Registry
	server         *httptest.Server
	deliverHandler *MockDeliverHandler
}

func newRESTStack(t *testing.T) *restStack {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	authenticator := auth.NewAuthenticator("test-secret", []string{"test-api-key"})

	registry := realtime.NewRegistry(logger)
	rooms := realtime.NewRoomIndex()
	rtRouter := realtime.NewRouter(logger, registry, rooms)
	aggregator := realtime.NewAggregator(logger, registry, rtRouter, presence.NewMemoryStore())
	registry.SetTransitionListener(aggregator.HandleTransition)

	buzzHandler := handler.NewBuzzHandler(realtime.NewLimiter(3, time.Minute), rtRouter)
	deliverHandler := &MockDeliverHandler{}

	restServer := NewRESTServer(
		logger,
		deliverHandler,
		buzzHandler,
		registry,
		aggregator,
		authenticator,
	)

	router := mux.NewRouter()
	restServer.Register(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &restStack{
		registry:       registry,
		server:         server,
		deliverHandler: deliverHandler,
	}
}

func doJSON(t *testing.T, method string, url string, apiKey string, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestRESTServer_Deliver(t *testing.T) {
	t.Run("valid api key delegates to the deliver handler", func(t *testing.T) {
		stack := newRESTStack(t)

		stack.deliverHandler.On("Handle", mock.Anything, mock.MatchedBy(func(req handler.DeliverRequest) bool {
			return req.Kind == realtime.KindNewMessage && req.RoomId == "channel-42"
		})).Return(handler.DeliverResponse{Id: "e1", Attempted: 2, Delivered: 2}, nil).Once()

		resp := doJSON(t, "POST", stack.server.URL+"/deliver", "test-api-key",
			`{"kind":"new-message","roomId":"channel-42","payload":{"text":"hi"}}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var deliverResponse handler.DeliverResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&deliverResponse))
		assert.Equal(t, 2, deliverResponse.Delivered)

		stack.deliverHandler.AssertExpectations(t)
	})

	t.Run("invalid api key", func(t *testing.T) {
		stack := newRESTStack(t)

		resp := doJSON(t, "POST", stack.server.URL+"/deliver", "invalid-api-key",
			`{"kind":"new-message","roomId":"channel-42"}`)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing api key", func(t *testing.T) {
		stack := newRESTStack(t)

		resp := doJSON(t, "POST", stack.server.URL+"/deliver", "",
			`{"kind":"new-message","roomId":"channel-42"}`)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed envelope maps to bad request", func(t *testing.T) {
		stack := newRESTStack(t)

		stack.deliverHandler.On("Handle", mock.Anything, mock.Anything).
			Return(handler.DeliverResponse{},
				ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("envelope must have exactly one addressing mode"))).
			Once()

		resp := doJSON(t, "POST", stack.server.URL+"/deliver", "test-api-key",
			`{"kind":"new-message"}`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRESTServer_Online(t *testing.T) {
	stack := newRESTStack(t)

	c1 := realtime.NewConnection("c1", 8)
	stack.registry.Register(c1)
	require.NoError(t, stack.registry.Announce("c1", "bob"))

	c2 := realtime.NewConnection("c2", 8)
	stack.registry.Register(c2)
	require.NoError(t, stack.registry.Announce("c2", "alice"))
	stack.registry.Disconnect("c2")

	t.Run("list online users", func(t *testing.T) {
		resp := doJSON(t, "GET", stack.server.URL+"/online", "test-api-key", "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Online []string `json:"online"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, []string{"bob"}, body.Online)
	})

	t.Run("online user detail", func(t *testing.T) {
		resp := doJSON(t, "GET", stack.server.URL+"/online/bob", "test-api-key", "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			UserId     string     `json:"userId"`
			Online     bool       `json:"online"`
			LastSeenAt *time.Time `json:"lastSeenAt"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "bob", body.UserId)
		assert.True(t, body.Online)
		assert.Nil(t, body.LastSeenAt)
	})

	t.Run("offline user carries last seen", func(t *testing.T) {
		resp := doJSON(t, "GET", stack.server.URL+"/online/alice", "test-api-key", "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Online     bool       `json:"online"`
			LastSeenAt *time.Time `json:"lastSeenAt"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Online)
		assert.NotNil(t, body.LastSeenAt)
	})

	t.Run("never seen user has no last seen", func(t *testing.T) {
		resp := doJSON(t, "GET", stack.server.URL+"/online/carol", "test-api-key", "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Online     bool       `json:"online"`
			LastSeenAt *time.Time `json:"lastSeenAt"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Online)
		assert.Nil(t, body.LastSeenAt)
	})
}

func TestRESTServer_Buzz(t *testing.T) {
	stack := newRESTStack(t)

	body := `{"userId":"bob","from":"alice"}`

	for i := 0; i < 3; i++ {
		resp := doJSON(t, "POST", stack.server.URL+"/buzz", "test-api-key", body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var buzzResponse handler.BuzzResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&buzzResponse))
		assert.True(t, buzzResponse.Accepted)
	}

	resp := doJSON(t, "POST", stack.server.URL+"/buzz", "test-api-key", body)

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var buzzResponse handler.BuzzResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&buzzResponse))
	assert.False(t, buzzResponse.Accepted)
}
