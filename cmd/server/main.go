package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"youth-hub/auth"
	"youth-hub/internal"
	"youth-hub/moderation"
	"youth-hub/observability"
	"youth-hub/repositories"
	"youth-hub/runtime"
	"youth-hub/runtime/workers"
	"youth-hub/search"
	"youth-hub/server"
	"youth-hub/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// The pattern keeps every defer (database close, index close) on the exit path
// and keeps the wiring testable, unlike direct os.Exit calls.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.NewMessageIndex(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	// 3. Moderation
	censored, err := moderation.NewCensoredLoader().LoadAll()
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to load censored words: %w", err)
	}
	logger.Info("Moderation dictionaries loaded",
		"words", len(censored.Words), "languages", censored.Languages)

	moderator, err := moderation.NewModerator(censored.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to build moderator: %w", err)
	}

	// 4. Repositories & Relay
	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = messageRepository.Close()
	}()

	roomRepository := repositories.NewRoomRepository(db)
	userRepository := repositories.NewUserRepository(db)
	registry := runtime.NewRegistry(logger)
	metrics := observability.NewMetrics()

	chatService := services.NewChatService(
		logger, messageRepository, roomRepository, registry,
		&moderator, index, metrics, config.SearchLimit,
	)
	authService := services.NewAuthService(logger, userRepository, config.AuthTokenDuration)
	verifier := auth.NewVerifier(logger)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers
	sup := workers.NewSupervisor(logger)
	sup.Add(
		workers.NewBadgerGCWorker(logger, db, config.BadgerGCInterval),
		workers.NewHealthReportWorker(logger, metrics, config.MetricInterval),
	).Run(ctx)
	defer sup.Stop()

	// 7. Optional debug surface (localhost only)
	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
			stats := metrics.Snapshot()
			return map[string]any{
				"active_connections": stats.ActiveConnections,
				"messages_persisted": stats.MessagesPersisted,
				"messages_broadcast": stats.MessagesBroadcast,
				"joins_denied":       stats.JoinsDenied,
				"dropped_deliveries": stats.DroppedDeliveries,
				"alloc_mem_mb":       stats.AllocMemMb,
			}
		})
		logger.Info("Debug inspector enabled", "url",
			fmt.Sprintf("http://127.0.0.1:%d/inspect", config.DebugPort))
	}

	// 8. HTTP server
	router := server.NewRouter(logger, verifier, authService, chatService, metrics, config.ConnectionBufferSize)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 10. Final Cleanup (Graceful Shutdown)
	// Active connections get ShutdownTimeout to drain before being cut.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Forced shutdown", "error", err)
	}
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
