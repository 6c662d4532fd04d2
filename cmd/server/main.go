// Lookout - Marketplace Listing Evaluation Server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/lookoutdev/lookout/internal/agent"
	"github.com/lookoutdev/lookout/internal/api"
	"github.com/lookoutdev/lookout/internal/config"
	"github.com/lookoutdev/lookout/internal/events"
	"github.com/lookoutdev/lookout/internal/identity"
	"github.com/lookoutdev/lookout/internal/middleware"
	"github.com/lookoutdev/lookout/internal/orchestrator"
	"github.com/lookoutdev/lookout/internal/store"
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
	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := st.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	hub := events.NewHub()
	memory := agent.NewMemory(st)
	responder := agent.NewOpenAIResponder(agent.ResponderConfig{
		APIKey:      cfg.Agent.APIKey,
		BaseURL:     cfg.Agent.BaseURL,
		Model:       cfg.Agent.Model,
		MaxTokens:   cfg.Agent.MaxTokens,
		Temperature: cfg.Agent.Temperature,
		Timeout:     cfg.Agent.Timeout,
	}, memory)
	clarifier := orchestrator.NewClarifier(st, hub)
	orch := orchestrator.New(st, responder, clarifier, hub)

	transcript, err := orchestrator.NewTranscript(orchestrator.TranscriptConfig{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	})
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer transcript.Close()
	orch.SetTranscript(transcript)

	// Initialize handlers.
	baseHandler := api.NewHandler(st)
	healthHandler := api.NewHealthHandler(st)
	meHandler := api.NewMeHandler(baseHandler)
	sessionHandler := api.NewSessionHandler(baseHandler, memory)
	listingHandler := api.NewListingHandler(baseHandler, hub)
	messageHandler := api.NewMessageHandler(baseHandler, orch)
	eventsHandler := api.NewEventsHandler(baseHandler, hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(corsOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Identified routes (anonymous cookie identity, no auth needed).
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(st, cfg.IsDevelopment()))
		meHandler.RegisterRoutes(r)
		sessionHandler.RegisterRoutes(r)
		listingHandler.RegisterRoutes(r)
		messageHandler.RegisterRoutes(r)
		eventsHandler.RegisterRoutes(r)
	})

	// Create server. Agent passes can take a while, so the write timeout
	// must comfortably exceed the responder timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Agent.Timeout + 30*time.Second,
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

func corsOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
