package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goevery/presence/internal/auth"
	"github.com/goevery/presence/internal/bus"
	"github.com/goevery/presence/internal/handler"
	"github.com/goevery/presence/internal/presence"
	presencemongo "github.com/goevery/presence/internal/presence/mongodb"
	"github.com/goevery/presence/internal/realtime"
	"github.com/goevery/presence/internal/server"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger          *zap.Logger
	settings        Settings
	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
	relay           *bus.Relay
}

func NewApp(ctx context.Context, logger *zap.Logger, settings Settings) (*App, error) {
	originChecker := server.NewOriginChecker(settings.AllowedOrigins)
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	authenticator := auth.NewAuthenticator(settings.JWTSecret, settings.APIKeys)

	registry := realtime.NewRegistry(logger)
	rooms := realtime.NewRoomIndex()
	router := realtime.NewRouter(logger, registry, rooms)

	lastSeenStore, err := buildLastSeenStore(ctx, settings)
	if err != nil {
		return nil, err
	}

	aggregator := realtime.NewAggregator(logger, registry, router, lastSeenStore)
	registry.SetTransitionListener(aggregator.HandleTransition)

	var relay *bus.Relay
	if settings.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: settings.RedisAddr,
		})

		relay = bus.NewRelay(logger, rdb, router)
		router.SetPublisher(relay)
	}

	buzzLimiter := realtime.NewLimiter(
		settings.BuzzLimit,
		time.Duration(settings.BuzzWindowMs)*time.Millisecond,
	)

	roomIdValidator := handler.NewRoomIdValidator()

	heartbeatHandler := handler.NewHeartbeatHandler()
	announceHandler := handler.NewAnnounceHandler(authenticator, registry, rooms)
	joinHandler := handler.NewJoinHandler(roomIdValidator, rooms)
	leaveHandler := handler.NewLeaveHandler(roomIdValidator, rooms)
	buzzHandler := handler.NewBuzzHandler(buzzLimiter, router)
	deliverHandler := handler.NewDeliverHandler(router)

	methodRouter := server.NewRouter(
		logger,
		heartbeatHandler,
		announceHandler,
		joinHandler,
		leaveHandler,
		buzzHandler,
	)

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		registry,
		rooms,
		methodRouter,
	)
	restServer := server.NewRESTServer(
		logger,
		deliverHandler,
		buzzHandler,
		registry,
		aggregator,
		authenticator,
	)

	return &App{
		logger,
		settings,
		websocketServer,
		restServer,
		relay,
	}, nil
}

func buildLastSeenStore(ctx context.Context, settings Settings) (presence.LastSeenStore, error) {
	if settings.MongoDBURI == "" {
		return presence.NewMemoryStore(), nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(settings.MongoDBURI))
	if err != nil {
		return nil, err
	}

	store := presencemongo.NewStore(client)

	err = store.Setup(ctx)
	if err != nil {
		return nil, err
	}

	return store, nil
}

func (a *App) run(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	if a.relay != nil {
		go a.relay.Run(notifyCtx)
	}

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: router,
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		panic(err)
	}

	logger, err := buildZapLogger(settings.LogEncoding)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	app, err := NewApp(ctx, logger, settings)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}

	app.run(ctx)
}
