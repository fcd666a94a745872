// ChatGlass - on-screen chat translation reconciler
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evgray/chatglass/internal/api"
	"github.com/evgray/chatglass/internal/capture"
	"github.com/evgray/chatglass/internal/chats"
	"github.com/evgray/chatglass/internal/config"
	"github.com/evgray/chatglass/internal/middleware"
	"github.com/evgray/chatglass/internal/reconcile"
	"github.com/evgray/chatglass/internal/recognize"
	"github.com/evgray/chatglass/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Load persisted history. A failed load is non-fatal: the engine
	// starts with an empty collection and the next save rewrites state.
	list := chats.NewList()
	records, err := repo.LoadChats(context.Background())
	if err != nil {
		slog.Warn("Failed to load persisted chats, starting empty", "error", err)
	} else {
		list.Load(records)
		slog.Info("Chat history loaded", "chats", len(records))
	}

	// External daemons. Probe failures are warnings: a cycle triggered
	// while a daemon is down fails on its own terms.
	captureClient := capture.NewClient(cfg.CaptureAddr, logger)
	if err := captureClient.Probe(context.Background()); err != nil {
		slog.Warn("Capture daemon not reachable yet", "error", err)
	} else {
		slog.Info("Capture daemon connected", "address", cfg.CaptureAddr)
	}

	recognizerClient := recognize.NewClient(cfg.RecognizerAddr, logger)
	if err := recognizerClient.Probe(context.Background()); err != nil {
		slog.Warn("Recognition service not reachable yet", "error", err)
	} else {
		slog.Info("Recognition service connected", "address", cfg.RecognizerAddr)
	}

	reconciler := reconcile.New(captureClient, recognizerClient, list, repo, reconcile.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		Lookback:            cfg.DedupeLookback,
	}, logger)

	// Initialize handlers.
	chatHandler := api.NewChatHandler(list, reconciler, repo)
	healthHandler := api.NewHealthHandler(repo, captureClient, recognizerClient)
	feedHandler := api.NewStateFeedHandler(list, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)

	// WebSocket state feed for UI consumers.
	r.Get("/ws/chats", feedHandler.ServeHTTP)

	// Create server. No WriteTimeout: the state feed holds connections
	// open indefinitely.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
