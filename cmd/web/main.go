package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"posto-dashboard/internal/cache"
	"posto-dashboard/internal/chat"
	"posto-dashboard/internal/config"
	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/middleware"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/server"
	"posto-dashboard/internal/services"
	"posto-dashboard/internal/session"
	"posto-dashboard/internal/upstream"
)

const version = "1.0.0"

// application is everything main needs to serve and later tear down.
type application struct {
	handler http.Handler
	goals   *goals.Service
	cache   *cache.Cache
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"config", cfg.Summary(),
	)

	app, err := build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      app.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	app.registerHooks(gracefulServer)

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	metrics := observability.NewMetrics()

	var responses *cache.Cache
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return nil, err
		}
		responses = cache.New(client, cfg.Cache.TTL, metrics)
		logger.Info("response cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	store, err := goals.Open(cfg.Goals.Store)
	if err != nil {
		_ = responses.Close()
		return nil, fmt.Errorf("open goal store: %w", err)
	}
	goalSvc := goals.NewService(store)

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		_ = responses.Close()
		_ = goalSvc.Close()
		return nil, fmt.Errorf("session manager: %w", err)
	}

	client := upstream.New(cfg.Upstream, responses, metrics, logger)
	dashboard := services.NewDashboard(client, goalSvc, logger)

	var model chat.Completer
	if o := chat.NewOpenAI(cfg.Chat); o != nil {
		model = o
		logger.Info("chat fallback enabled", "model", cfg.Chat.OpenAIModel)
	}

	srv := server.NewServer(cfg, server.Deps{
		Views:     dashboard,
		Goals:     goalSvc,
		Assistant: chat.NewAssistant(model, logger),
		Auth:      client,
		Refresher: client,
		Sessions:  sessions,
		Metrics:   metrics,
	}, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(cfg.Security),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return &application{
		handler: middlewareChain(srv),
		goals:   goalSvc,
		cache:   responses,
	}, nil
}

func (a *application) registerHooks(gs *server.GracefulServer) {
	gs.RegisterShutdownHook("goal store", func(context.Context) error {
		return a.goals.Close()
	})
	gs.RegisterShutdownHook("cache", func(context.Context) error {
		return a.cache.Close()
	})
}
