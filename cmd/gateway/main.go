package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/illmade-knight/message-gateway/app"
	"github.com/illmade-knight/message-gateway/internal/auth"
	"github.com/illmade-knight/message-gateway/internal/clients"
	"github.com/illmade-knight/message-gateway/internal/config"
	internalnotify "github.com/illmade-knight/message-gateway/internal/notify"
	"github.com/illmade-knight/message-gateway/internal/server"
	"github.com/illmade-knight/message-gateway/internal/storage/redisstore"
	"github.com/illmade-knight/message-gateway/pkg/call"
	"github.com/illmade-knight/message-gateway/pkg/notify"
	"github.com/illmade-knight/message-gateway/pkg/offline"
	"github.com/illmade-knight/message-gateway/pkg/profile"
	"github.com/illmade-knight/message-gateway/pkg/route"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = logger.With().Str("pod", cfg.Pod.Name).Logger()

	// 2. Initialize Shared Infrastructure (Redis)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
	}

	// 3. Instantiate Storage Adapters
	directory := redisstore.NewPresenceDirectory(redisClient, logger)
	store := redisstore.NewOfflineStore(redisClient, offline.Retention(cfg.Offline.TTLDays), logger)
	bus := redisstore.NewRelayBus(redisClient, cfg.Redis.RelayChannel, logger)
	logger.Info().Msg("Redis storage adapters initialized")

	// 4. Instantiate the Notification Publisher
	publisher, cleanup, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create notification publisher")
	}
	defer cleanup()
	notifier := notify.NewService(
		publisher,
		notify.Channel(cfg.Offline.NotificationChannel),
		cfg.Notify.SampleTopic,
		cfg.Notify.OfflineTopic,
		logger,
	)

	// 5. Instantiate the Profile Cache
	profileClient := clients.NewProfileServiceClient(cfg.Profile.ServiceURL, logger)
	profiles, err := profile.NewService(profileClient, cfg.Profile.CacheSize, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create profile cache")
	}

	// 6. Instantiate the Application Orchestrator
	flags := route.Flags{
		OfflineMessaging:     cfg.Offline.MessagingEnabled,
		OfflineStorage:       cfg.Offline.StorageEnabled,
		OfflineNotifications: cfg.Offline.NotificationsEnabled,
	}
	application := app.New(
		cfg.Pod.Name,
		directory,
		bus,
		store,
		notifier,
		profiles,
		flags,
		call.DefaultCleanupDelay,
		app.DefaultHeartbeatInterval,
		logger,
	)

	// 7. Start Background Loops
	go func() {
		if err := application.ConsumeRelay(ctx); err != nil {
			logger.Error().Err(err).Msg("Relay consumer stopped")
			stop()
		}
	}()
	go application.RunHeartbeat(ctx)

	// 8. Assemble and Start the HTTP Server
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	wsHandler := server.NewWebSocketHandler(
		verifier,
		application.Sessions,
		directory,
		application.Dispatcher,
		cfg.Pod.Name,
		cfg.Server.MaxFrameBytes,
		logger,
	)
	restHandlers := server.NewRestHandlers(verifier, directory, store, application.Router, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewMux(wsHandler, restHandlers),
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("Gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	logger.Info().Msg("Gateway stopped")
}

// buildPublisher selects the configured notification backend.
func buildPublisher(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notify.Publisher, func(), error) {
	switch cfg.Notify.Backend {
	case config.BackendPubSub:
		psClient, err := pubsub.NewClient(ctx, cfg.Notify.PubSubProject)
		if err != nil {
			return nil, nil, err
		}
		pub := internalnotify.NewPubSubPublisher(psClient, logger)
		return pub, func() {
			_ = pub.Close()
			_ = psClient.Close()
		}, nil
	default:
		pub := internalnotify.NewKafkaPublisher(cfg.Notify.KafkaBrokers, logger)
		return pub, func() { _ = pub.Close() }, nil
	}
}
