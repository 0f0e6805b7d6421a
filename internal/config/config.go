package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shDupont/merculy/internal/aitext"
	"github.com/shDupont/merculy/internal/newsapi"
)

// Corroboration modes.
const (
	ModeLocal = "local"
	ModeKafka = "kafka"
)

// Common contains Elasticsearch and topic parameters shared by every service.
type Common struct {
	ElasticsearchAddr string
	IndexPrefix       string
	// TopicsFile optionally overrides the built-in keyword table.
	TopicsFile string
}

// Kafka addresses the corroboration job topic.
type Kafka struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// DLQTopic is the dead-letter topic for failed jobs.
func (k Kafka) DLQTopic() string {
	return k.Topic + "_dlq"
}

// Curation configures the fetch and enrichment pipeline.
type Curation struct {
	News         newsapi.Config
	AI           aitext.Config
	EnrichDelay  time.Duration
	TopicWindow  time.Duration
	SearchWindow time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Curation
	Kafka
	BindAddr             string
	AccountsDSN          string
	CorroborationMode    string
	CorroborationWorkers int
	ShutdownTimeout      time.Duration
}

// Worker holds configuration for the Kafka corroboration worker.
type Worker struct {
	Common
	Curation
	Kafka
	Workers        int
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// Curator configures the newsletter CLI.
type Curator struct {
	Common
	Curation
	AccountsDSN string
	Interval    time.Duration
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:               loadCommon(),
		Curation:             loadCuration(),
		Kafka:                loadKafka(),
		BindAddr:             getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		AccountsDSN:          getEnv("ACCOUNTS_DSN", ""),
		CorroborationMode:    strings.ToLower(getEnv("CORROBORATION_MODE", ModeLocal)),
		CorroborationWorkers: getInt("CORROBORATION_WORKERS", 4),
		ShutdownTimeout:      getDuration("API_SHUTDOWN_TIMEOUT", "15s"),
	}

	switch c.CorroborationMode {
	case ModeLocal:
		if c.CorroborationWorkers <= 0 {
			return nil, fmt.Errorf("CORROBORATION_WORKERS must be positive")
		}
	case ModeKafka:
		if len(c.Brokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
		}
	default:
		return nil, fmt.Errorf("CORROBORATION_MODE must be %q or %q", ModeLocal, ModeKafka)
	}
	if err := c.Curation.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		Curation:       loadCuration(),
		Kafka:          loadKafka(),
		Workers:        getInt("CORROBORATION_WORKERS", 4),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "10m"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.Workers <= 0 {
		return nil, fmt.Errorf("CORROBORATION_WORKERS must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if err := c.Curation.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

// LoadCurator builds a Curator config from environment variables.
func LoadCurator() (*Curator, error) {
	c := &Curator{
		Common:      loadCommon(),
		Curation:    loadCuration(),
		AccountsDSN: getEnv("ACCOUNTS_DSN", "merculy.db"),
		Interval:    getDuration("CURATOR_INTERVAL", "24h"),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("CURATOR_INTERVAL must be positive")
	}
	if err := c.Curation.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr: getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		IndexPrefix:       getEnv("ELASTICSEARCH_INDEX", "merculy"),
		TopicsFile:        getEnv("TOPICS_FILE", ""),
	}
}

func loadKafka() Kafka {
	return Kafka{
		Brokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		Topic:         getEnv("KAFKA_TOPIC", "corroboration_jobs"),
		ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "corroboration-worker"),
	}
}

func loadCuration() Curation {
	return Curation{
		News: newsapi.Config{
			BaseURL:  getEnv("NEWS_API_URL", "https://newsapi.org/v2"),
			APIKey:   getEnv("NEWS_API_KEY", ""),
			Language: getEnv("NEWS_LANGUAGE", "pt"),
			Country:  getEnv("NEWS_COUNTRY", "br"),
			Timeout:  getDuration("NEWS_HTTP_TIMEOUT", "30s"),
		},
		AI: aitext.Config{
			Provider:    strings.ToLower(getEnv("AI_PROVIDER", aitext.ProviderGemini)),
			APIKey:      getEnv("AI_API_KEY", ""),
			Model:       getEnv("AI_MODEL", ""),
			BaseURL:     getEnv("AI_BASE_URL", ""),
			Timeout:     getDuration("AI_TIMEOUT", "30s"),
			MaxRetries:  getInt("AI_MAX_RETRIES", 2),
			MaxTokens:   getInt("AI_MAX_TOKENS", 512),
			Temperature: getFloat("AI_TEMPERATURE", 0.3),
		},
		EnrichDelay:  getDuration("ENRICH_DELAY", "500ms"),
		TopicWindow:  getDuration("NEWS_TOPIC_WINDOW", "168h"),
		SearchWindow: getDuration("NEWS_SEARCH_WINDOW", "720h"),
	}
}

func (c Curation) validate() error {
	switch c.AI.Provider {
	case aitext.ProviderGemini, aitext.ProviderOpenAI:
	default:
		return fmt.Errorf("AI_PROVIDER must be %q or %q", aitext.ProviderGemini, aitext.ProviderOpenAI)
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES cannot be negative")
	}
	if c.EnrichDelay < 0 {
		return fmt.Errorf("ENRICH_DELAY cannot be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
