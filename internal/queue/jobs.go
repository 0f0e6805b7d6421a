// Package queue carries corroboration jobs over Kafka from the API to the worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shDupont/merculy/internal/models"
)

// ErrInvalidJob marks payloads that can never be processed.
var ErrInvalidJob = errors.New("invalid corroboration job")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher enqueues corroboration jobs.
type Publisher struct {
	writer messageWriter
	topic  string
	log    *slog.Logger
	now    func() time.Time
}

// NewPublisher writes to topic on the given brokers, keyed by article ID.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
	}
	return &Publisher{writer: w, topic: topic, log: logger.With("component", "queue"), now: time.Now}
}

// Dispatch publishes a job for a persisted article. It returns once Kafka acknowledged the
// message; processing happens later in the worker.
func (p *Publisher) Dispatch(ctx context.Context, a models.Article) error {
	payload, err := EncodeJob(models.CorroborationJob{ArticleID: a.ID, RequestedAt: p.now().UTC()})
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(a.ID), Value: payload}); err != nil {
		return fmt.Errorf("publish corroboration job: %w", err)
	}
	p.log.Debug("corroboration job published", slog.String("article_id", a.ID), slog.String("topic", p.topic))
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// EncodeJob serializes a job, rejecting ones without an article ID.
func EncodeJob(job models.CorroborationJob) ([]byte, error) {
	if strings.TrimSpace(job.ArticleID) == "" {
		return nil, fmt.Errorf("%w: missing article_id", ErrInvalidJob)
	}
	return json.Marshal(job)
}

// DecodeJob parses a job payload.
func DecodeJob(data []byte) (models.CorroborationJob, error) {
	var job models.CorroborationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return models.CorroborationJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	job.ArticleID = strings.TrimSpace(job.ArticleID)
	if job.ArticleID == "" {
		return models.CorroborationJob{}, fmt.Errorf("%w: missing article_id", ErrInvalidJob)
	}
	return job, nil
}
