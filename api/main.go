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

	"github.com/shDupont/merculy/internal/accounts"
	"github.com/shDupont/merculy/internal/app"
	"github.com/shDupont/merculy/internal/config"
	"github.com/shDupont/merculy/internal/corroboration"
	"github.com/shDupont/merculy/internal/logger"
	"github.com/shDupont/merculy/internal/queue"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	comps, err := app.Build(cfg.Common, cfg.Curation, log)
	if err != nil {
		log.Error("build components", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := comps.Store.EnsureIndices(initCtx); err != nil {
		log.Warn("ensure indices", slog.Any("err", err))
	}
	cancel()

	var (
		dispatcher corroboration.Dispatcher
		executor   *corroboration.Executor
	)
	switch cfg.CorroborationMode {
	case config.ModeKafka:
		publisher := queue.NewPublisher(cfg.Brokers, cfg.Topic, log)
		defer publisher.Close()
		dispatcher = publisher
	default:
		executor = corroboration.NewExecutor(cfg.CorroborationWorkers, log)
		dispatcher = corroboration.NewLocalDispatcher(executor, comps.CorroborationWorker())
	}

	srv := &server{
		log:             log,
		curator:         comps.Curation(dispatcher),
		store:           comps.Store,
		sources:         comps.Resolver,
		topics:          comps.Topics.Names(),
		curationTimeout: 3 * time.Minute,
	}
	if cfg.AccountsDSN != "" {
		users, err := accounts.Open(ctx, cfg.AccountsDSN)
		if err != nil {
			log.Error("open accounts", slog.Any("err", err))
			os.Exit(1)
		}
		defer users.Close()
		srv.users = users
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      srv.curationTimeout + 30*time.Second,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("corroboration_mode", cfg.CorroborationMode),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
	if executor != nil {
		if err := executor.Shutdown(shutdownCtx); err != nil {
			log.Warn("corroboration tasks still running at exit",
				slog.Int64("pending", executor.Pending()),
				slog.Any("err", err),
			)
		}
	}
}
