// Package aitext wraps hosted text-generation APIs behind a single prompt-in, text-out call.
package aitext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ErrUnavailable is returned when the service is not configured.
var ErrUnavailable = errors.New("ai text service unavailable")

// APIError is a non-success answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s api error (%d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

// New returns a Generator for cfg. Without an API key every call fails with ErrUnavailable.
func New(cfg Config, logger *slog.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return Unavailable{}, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var g Generator
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		g = newGemini(cfg)
	case ProviderOpenAI:
		g = newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return withRetry(g, cfg.MaxRetries, logger.With("component", "aitext")), nil
}

// Unavailable is the Generator used when no provider is configured.
type Unavailable struct{}

// Generate always fails with ErrUnavailable.
func (Unavailable) Generate(context.Context, string) (string, error) {
	return "", ErrUnavailable
}
