package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yalublugerbl4/shop/internal/api"
	"github.com/yalublugerbl4/shop/internal/config"
	"github.com/yalublugerbl4/shop/internal/crawler"
	"github.com/yalublugerbl4/shop/internal/events"
	"github.com/yalublugerbl4/shop/internal/extract"
	"github.com/yalublugerbl4/shop/internal/fetch"
	"github.com/yalublugerbl4/shop/internal/jobs"
	"github.com/yalublugerbl4/shop/internal/queue"
	"github.com/yalublugerbl4/shop/internal/ratelimit"
	"github.com/yalublugerbl4/shop/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Events are best effort; the pipeline runs without them.
		logger.Warn("redis unavailable, ingest events disabled", "error", err)
	}

	client := fetch.NewClient(fetch.Options{
		BaseDomain:   cfg.Scraper.BaseDomain,
		UserAgent:    cfg.Scraper.UserAgent,
		Timeout:      cfg.Scraper.FetchTimeout,
		ImageTimeout: cfg.Scraper.ImageTimeout,
	})

	extractor := extract.New(client, extract.Options{
		Money:        extract.Money{Rate: cfg.Scraper.ExchangeRateCNYRUB},
		ImageTimeout: cfg.Scraper.ImageTimeout,
		MaxImages:    cfg.Scraper.MaxImages,
	}, logger)

	limiter := ratelimit.NewAdaptiveLimiter(cfg.Scraper.CrawlDelayMin, cfg.Scraper.CrawlDelayMax)
	linkCrawler := crawler.New(client, limiter, crawler.Options{}, logger)

	products := store.NewProductStore(db)
	publisher := events.NewPublisher(redisClient, cfg.Redis.Stream, logger)
	manager := jobs.NewManager()
	taskQueue := queue.NewInMemoryQueue()

	worker := jobs.NewWorker(taskQueue, limiter, extractor, products, publisher, manager, logger)
	go func() {
		if err := worker.Run(ctx); err != nil {
			logger.Error("ingest worker stopped", "error", err)
		}
	}()

	server := api.NewServer(cfg, products, linkCrawler, worker, manager, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	taskQueue.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
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
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
