// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPAddr    string
	APIToken    string
	LogLevel    string
	StoreDriver string
	DatabaseURL string

	RedisAddr         string
	WorkerConcurrency int

	MinioEndpoint  string
	MinioBucket    string
	MinioAccessKey string
	MinioSecretKey string

	Providers Providers
}

// Providers selects and configures the summary and metric backends.
type Providers struct {
	Summary            string
	Similarity         string
	Metrics            string
	HFAPIURL           string
	HFAPIToken         string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAISummaryModel string
	OpenAIEmbedModel   string
	SummaryImage       string
	SummaryCommand     string
	MetricServiceURL   string
	Timeout            time.Duration
	ShortTextThreshold int
	MetricPoolSize     int
}

// Load reads the environment. Only malformed values are errors; missing
// values fall back to defaults.
func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8000"),
		APIToken:       os.Getenv("API_TOKEN"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		StoreDriver:    envOr("STORE_DRIVER", DriverPostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Providers: Providers{
			Summary:            envOr("SUMMARY_PROVIDER", "huggingface"),
			Similarity:         envOr("SIMILARITY_PROVIDER", "remote"),
			Metrics:            envOr("METRICS_PROVIDER", "remote"),
			HFAPIURL:           envOr("HF_API_URL", "https://api-inference.huggingface.co/models/csebuetnlp/mT5_m2o_english_crossSum"),
			HFAPIToken:         os.Getenv("HF_API_TOKEN"),
			OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
			OpenAISummaryModel: envOr("OPENAI_SUMMARY_MODEL", "gpt-4o-mini"),
			OpenAIEmbedModel:   envOr("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			SummaryImage:       os.Getenv("SUMMARY_IMAGE"),
			SummaryCommand:     os.Getenv("SUMMARY_COMMAND"),
			MetricServiceURL:   envOr("METRIC_SERVICE_URL", "http://localhost:8081"),
		},
	}

	var err error
	if c.WorkerConcurrency, err = envInt("WORKER_CONCURRENCY", 5); err != nil {
		return nil, err
	}
	if c.Providers.ShortTextThreshold, err = envInt("SHORT_TEXT_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if c.Providers.MetricPoolSize, err = envInt("METRIC_POOL_SIZE", 3); err != nil {
		return nil, err
	}
	if c.Providers.Timeout, err = envDuration("PROVIDER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return c, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", k, n)
	}
	return n, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", k, d)
	}
	return d, nil
}
