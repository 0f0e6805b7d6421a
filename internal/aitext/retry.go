package aitext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"
)

type retrying struct {
	inner      Generator
	maxRetries int
	baseDelay  time.Duration
	log        *slog.Logger
}

func withRetry(g Generator, maxRetries int, logger *slog.Logger) Generator {
	if maxRetries <= 1 {
		return g
	}
	return &retrying{inner: g, maxRetries: maxRetries, baseDelay: 500 * time.Millisecond, log: logger}
}

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		out, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.maxRetries-1 {
			break
		}

		delay := r.backoff(attempt)
		r.log.Warn("ai request failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", r.maxRetries),
			slog.Duration("delay", delay),
			slog.Any("err", err),
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("generate after retries: %w", lastErr)
}

func (r *retrying) backoff(attempt int) time.Duration {
	delay := r.baseDelay << uint(attempt)
	if delay > 30*time.Second {
		return 30 * time.Second
	}
	return delay
}

// retryable matches rate limits, server errors and transient network failures.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
