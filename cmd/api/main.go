// Package main is the entry point for the Flockr API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
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
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vikaShenoy/Flockr-sub001/internal/auth"
	"github.com/vikaShenoy/Flockr-sub001/internal/config"
	"github.com/vikaShenoy/Flockr-sub001/internal/handler"
	"github.com/vikaShenoy/Flockr-sub001/internal/metrics"
	"github.com/vikaShenoy/Flockr-sub001/internal/middleware"
	"github.com/vikaShenoy/Flockr-sub001/internal/notify"
	"github.com/vikaShenoy/Flockr-sub001/internal/presence"
	"github.com/vikaShenoy/Flockr-sub001/internal/realtime"
	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
	"github.com/vikaShenoy/Flockr-sub001/internal/service"
	"github.com/vikaShenoy/Flockr-sub001/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run owns every long-lived resource. It returns when a shutdown signal
// arrives or one of the background loops fails.
func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the ping below does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connection established")

	if err := migrate(ctx, pool, logger); err != nil {
		return err
	}

	// --- Realtime ---------------------------------------------------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := presence.New(m)
	// Connections are torn down with the HTTP server; forget them afterwards.
	defer registry.Clear()

	engine := notify.New(registry, notify.Options{
		Workers:   cfg.FanoutWorkers,
		QueueSize: cfg.FanoutQueue,
		Logger:    logger,
		Metrics:   m,
	})

	// --- Services ---------------------------------------------------------
	nodes := repo.NewTripNodeRepo(pool)
	users := repo.NewUserRepo(pool)
	dests := repo.NewDestinationRepo(pool)
	chats := repo.NewChatRepo(pool)

	issuer := auth.NewIssuer(cfg.JWTSecret)
	sweeper := service.NewSweeper(nodes, cfg.SweepInterval, logger)

	server := handler.NewServer(handler.Services{
		Trips:     service.NewTripService(nodes, users, dests, engine, cfg.TripDeleteGrace),
		Itinerary: service.NewItineraryService(nodes),
		Maps:      service.NewMapService(nodes, engine),
		Chats:     service.NewChatService(chats, users, engine, registry),
		Presence:  service.NewPresenceService(registry, nodes, engine, logger),
	}, handler.Options{
		Realtime: realtime.Options{AllowedOrigins: cfg.CORSOrigins, Logger: logger},
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:   logger,
	})

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → MaxBodySize. Authentication is applied per route group inside
	// server.Routes so /healthz and /metrics stay public.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Mount("/", server.Routes(middleware.NewAuthHandler(issuer, users, logger)))

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout stays zero: it would also cut off long-lived websocket
	// connections, which set their own per-frame write deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Give in-flight requests up to 15 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// migrate applies pending goose migrations through a database/sql handle
// borrowed from the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied", "count", len(results))
	return nil
}
