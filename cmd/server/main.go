package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/edubot/edubot/internal/ai"
	"github.com/edubot/edubot/internal/content"
	"github.com/edubot/edubot/internal/flow"
	"github.com/edubot/edubot/internal/httpapi"
	"github.com/edubot/edubot/internal/platform/cache"
	"github.com/edubot/edubot/internal/platform/config"
	"github.com/edubot/edubot/internal/platform/database"
	"github.com/edubot/edubot/internal/report"
)

func main() {
	// .env is optional, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// buildServer wires the content store, session store, AI router, and flow
// controller into the HTTP layer. The returned cleanup closes the database
// and cache connections.
func buildServer(ctx context.Context, cfg *config.Config) (*httpapi.Server, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	router := ai.NewRouter(cfg.Flow.GenTimeout)
	if cfg.AI.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.AI.Google.APIKey))
	}
	if cfg.AI.OpenAI.APIKey != "" {
		var opts []ai.OpenAIOption
		if cfg.AI.OpenAI.BaseURL != "" {
			opts = append(opts, ai.WithBaseURL(cfg.AI.OpenAI.BaseURL))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey, opts...))
	}

	var provider content.Provider
	fsProvider, err := content.NewFSProvider(cfg.ContentPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("loading content from %s: %w", cfg.ContentPath, err)
	}
	provider = fsProvider

	srvChecks := map[string]httpapi.HealthCheck{}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to cache: %w", err)
		}
		closers = append(closers, func() {
			if err := c.Close(); err != nil {
				slog.Warn("closing cache", "error", err)
			}
		})
		provider = content.NewCachedProvider(provider, c, cfg.Cache.TTL)
		srvChecks["cache"] = c.HealthCheck
		slog.Info("content cache enabled", "ttl", cfg.Cache.TTL)
	}

	var store flow.Store
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, database.Config{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.ConnLifetime,
			MaxConnIdleTime: cfg.Database.ConnIdleTime,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		closers = append(closers, db.Close)
		pgStore := flow.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		store = pgStore
		srvChecks["database"] = db.HealthCheck
	} else {
		slog.Warn("no database configured, sessions will not survive restarts")
		store = flow.NewMemoryStore()
	}

	ctrl := flow.NewController(router, provider, store, flow.Config{
		ExplanationSteps: cfg.Flow.ExplanationSteps,
		PassThreshold:    cfg.Flow.PassThreshold,
		MinConversations: cfg.Flow.MinConversations,
		MaxConversations: cfg.Flow.MaxConversations,
		MinQuizInterval:  cfg.Flow.MinQuizInterval,
		MaxQuizInterval:  cfg.Flow.MaxQuizInterval,
		AutoQuiz:         cfg.Flow.AutoQuiz,
	}, slog.Default())

	srv := httpapi.New(ctrl, provider, report.NewGenerator(store), slog.Default())
	for name, check := range srvChecks {
		srv.AddCheck(name, check)
	}
	return srv, cleanup, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
