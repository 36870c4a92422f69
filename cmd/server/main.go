package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wagl-backend/infrastructure/relay"
	"wagl-backend/infrastructure/search"
	"wagl-backend/infrastructure/storage"
	"wagl-backend/internal"
	"wagl-backend/moderation"
	"wagl-backend/projection"
	"wagl-backend/runtime"
	"wagl-backend/runtime/workers"
	"wagl-backend/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run builds every component and blocks until a shutdown signal.
// Returning instead of exiting lets the deferred closes flush Badger and bluge.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env is fine: the variables may come from the environment
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	roomPool, err := internal.RoomPool(config.RelayRoomPool)
	if err != nil {
		return exitConfig, err
	}
	if roomPool == nil {
		roomPool = relay.DefaultRoomPool
	}
	addressing, err := relay.NewAddressing(roomPool, config.RelayHealthRoom)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB) and search index (bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, EntityMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Moderation
	censored, err := moderation.NewEmbeddedLoader().LoadAll("censored")
	if err != nil {
		return exitConfig, fmt.Errorf("failed to load censored words: %w", err)
	}
	logger.Info("Censored dictionaries loaded", "languages", censored.Languages, "words", len(censored.Words))
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, logger)
	if err != nil {
		return exitConfig, err
	}

	// 4. Relay
	breaker := relay.NewCircuitBreaker(config.BreakerThreshold, config.BreakerCooldown, nil)
	relayClient := relay.NewClient(relay.ClientConfig{
		BaseURL: config.RelayBaseURL,
		APIKey:  config.RelayAPIKey,
		Timeout: config.RelayTimeout,
	}, &http.Client{}, breaker, addressing, logger)

	// 5. Services
	bus := runtime.NewEventBus(logger, config.BufferSize)
	dispatcher := runtime.NewRelayDispatcher(logger, addressing, config.RelayQueueSize)
	store := storage.NewStore(db, logger, config.StoreMaxRetries)
	index := search.NewMessageIndex(blugeWriter, logger, config.SearchPageSize)

	chat := services.NewChat(services.Dependencies{
		Store:      store,
		Publisher:  bus,
		Relay:      dispatcher,
		Censor:     moderator,
		Index:      index,
		Addressing: addressing,
		Log:        logger,
		Now:        services.UTCNow,
	})

	// 6. Supervision & Orchestration
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(logger, supervisor, registry, chat.Participants, bus, dispatcher,
		relayClient, chat.Janitor, runtime.Config{
			RelayWorkers:   config.RelayWorkers,
			SinkTimeout:    config.SinkTimeout,
			SweepInterval:  config.SweepInterval,
			HealthInterval: config.HealthInterval,
		})
	orchestrator.Add(projection.NewTimeline(config.TimelineSize))

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("Starting orchestrator...")
		orchestrator.Start(ctx)
	}()

	// 8. Wait for Stop, then drain the workers
	<-ctx.Done()
	logger.Info("Shutdown signal received, shutting down gracefully...")
	orchestrator.Stop()
	<-done
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// EntityMapper renders chat entities in the debug inspector.
func EntityMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	entry := storage.Describe(key, val)
	row.Type = entry.Kind
	row.Detail = entry.Detail
	return row
}
