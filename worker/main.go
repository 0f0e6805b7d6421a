package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shDupont/merculy/internal/app"
	"github.com/shDupont/merculy/internal/config"
	"github.com/shDupont/merculy/internal/dedupe"
	"github.com/shDupont/merculy/internal/logger"
	"github.com/shDupont/merculy/internal/models"
	"github.com/shDupont/merculy/internal/queue"
)

type articleGetter interface {
	GetArticle(ctx context.Context, id string) (models.Article, error)
}

type corroborator interface {
	Run(ctx context.Context, a models.Article) models.CorroborationStatus
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	comps, err := app.Build(cfg.Common, cfg.Curation, log)
	if err != nil {
		log.Error("build components", slog.Any("err", err))
		os.Exit(1)
	}
	worker := comps.CorroborationWorker()
	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.DLQTopic(),
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.Topic),
		slog.String("group", cfg.ConsumerGroup),
		slog.String("dlq_topic", cfg.DLQTopic()),
		slog.Int("consumers", cfg.Workers),
	)

	// One reader per consumer: the group spreads partitions across them.
	var wg sync.WaitGroup
	for i := range cfg.Workers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.ConsumerGroup,
			QueueCapacity:  cfg.BatchSize,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // manual commit only
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			consume(ctx, log.With("consumer", i), reader, dlqWriter, func(ctx context.Context, msg kafka.Message) error {
				return processMessage(ctx, log, comps.Store, worker, cache, msg)
			})
		}()
	}
	wg.Wait()
	log.Info("worker stopped")
}

func consume(ctx context.Context, log *slog.Logger, reader messageReader, dlq messageWriter, handle func(context.Context, kafka.Message) error) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := handle(ctx, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if !deadLetter(ctx, log, dlq, msg, err) {
				if ctx.Err() != nil {
					return
				}
				// Leave uncommitted so the job is redelivered after a restart.
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// deadLetter copies msg to the DLQ with error context, retrying with exponential backoff.
func deadLetter(ctx context.Context, log *slog.Logger, dlq messageWriter, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(slices.Clone(msg.Headers),
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range 5 {
		dlqErr := dlq.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}

	log.Error("DLQ write exhausted retries",
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return false
}

// processMessage runs corroboration for one job. A job whose article is in flight in
// this process is skipped. Corroboration outcomes, including the error status,
// are recorded on the article and are not failures of the message.
func processMessage(ctx context.Context, log *slog.Logger, store articleGetter, worker corroborator, cache *dedupe.Cache, msg kafka.Message) error {
	job, err := queue.DecodeJob(msg.Value)
	if err != nil {
		return err
	}

	if !cache.Claim(job.ArticleID) {
		log.Debug("duplicate corroboration job", slog.String("article_id", job.ArticleID))
		return nil
	}
	defer cache.Forget(job.ArticleID)

	article, err := store.GetArticle(ctx, job.ArticleID)
	if err != nil {
		return fmt.Errorf("load article %s: %w", job.ArticleID, err)
	}

	status := worker.Run(ctx, article)
	log.Info("corroboration finished",
		slog.String("article_id", job.ArticleID),
		slog.String("status", string(status)),
		slog.Duration("queued_for", time.Since(job.RequestedAt).Round(time.Second)),
	)
	return nil
}
