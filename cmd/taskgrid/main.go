package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taskgrid/taskgrid/internal/adapter/heuristic"
	tghttp "github.com/taskgrid/taskgrid/internal/adapter/http"
	"github.com/taskgrid/taskgrid/internal/adapter/mcp"
	tgnats "github.com/taskgrid/taskgrid/internal/adapter/nats"
	"github.com/taskgrid/taskgrid/internal/adapter/otel"
	"github.com/taskgrid/taskgrid/internal/adapter/postgres"
	"github.com/taskgrid/taskgrid/internal/adapter/ristretto"
	"github.com/taskgrid/taskgrid/internal/adapter/ws"
	"github.com/taskgrid/taskgrid/internal/config"
	"github.com/taskgrid/taskgrid/internal/logger"
	"github.com/taskgrid/taskgrid/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer func() { _ = logCloser.Close() }()

	// MCP mode: serve tools over stdio instead of running the HTTP server.
	mcpMode := len(os.Args) > 1 && os.Args[1] == "mcp"

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"mcp_mode", mcpMode,
	)

	ctx := context.Background()

	// --- Observability ---

	otelShutdown, err := otel.Init(ctx, cfg.Logging.Service, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := tgnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	detailCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	taskSvc := service.NewTaskService(store, detailCache, cfg.Cache.TTL, queue, hub, metrics)
	plannerSvc := service.NewPlannerService(taskSvc, heuristic.New(), queue, cfg.Planner, metrics)

	if mcpMode {
		return mcp.NewServer(taskSvc, plannerSvc).ServeStdio()
	}

	// --- HTTP ---

	handlers := &tghttp.Handlers{
		Tasks:   taskSvc,
		Planner: plannerSvc,
	}

	r := chi.NewRouter()

	r.Use(tghttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tghttp.Logger)
	r.Use(tghttp.SecurityHeaders)
	r.Use(otel.HTTPMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler(queue, hub))
	r.Get("/ws", hub.HandleWS)

	tghttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports service health including queue connectivity.
func healthHandler(queue *tgnats.Queue, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status        string `json:"status"`
		NATSConnected bool   `json:"natsConnected"`
		WSConnections int    `json:"wsConnections"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:        "ok",
			NATSConnected: queue.IsConnected(),
			WSConnections: hub.ConnectionCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
