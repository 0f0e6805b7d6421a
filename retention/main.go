package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shDupont/merculy/internal/config"
	"github.com/shDupont/merculy/internal/elasticsearch"
	"github.com/shDupont/merculy/internal/logger"
)

type expirer interface {
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (articles, related int64, err error)
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.IndexPrefix, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := esClient.WaitReady(ctx, 10, 2*time.Second); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("connect elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("connected to elasticsearch")

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
		slog.String("articles_index", esClient.Indices().Articles),
	)
	loop(ctx, log, esClient, cfg)
}

// loop runs once immediately and then on every tick until ctx is done.
func loop(ctx context.Context, log *slog.Logger, store expirer, cfg *config.Retention) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runOnce(ctx, log, store, cfg)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, store, cfg)
		}
	}
}

func runOnce(ctx context.Context, log *slog.Logger, store expirer, cfg *config.Retention) {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	articles, related, err := store.DeleteOlderThan(subCtx, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)",
			slog.Any("err", err),
			slog.Int64("articles_deleted", articles),
			slog.Int64("related_deleted", related),
		)
		return
	}

	if articles > 0 || related > 0 {
		log.Info("retention run completed",
			slog.Int64("articles_deleted", articles),
			slog.Int64("related_deleted", related),
		)
	} else {
		log.Debug("retention run completed, no expired articles found")
	}
}
