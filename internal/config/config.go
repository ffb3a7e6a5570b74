package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// Response formats accepted from the tracking API. The API serves the same
// logical document as XML or JSON depending on the account configuration.
const (
	FormatXML  = "xml"
	FormatJSON = "json"
)

// Classifier strategy names.
const (
	ClassifierPattern = "pattern"
	ClassifierTable   = "table"
)

type rawConfig struct {
	DatabaseDSN        string `env:"DATABASE_DSN,required=true"`
	RedisURL           string `env:"REDIS_URL,required=true"`
	TrackingAPIURL     string `env:"TRACKING_API_URL,default=https://ssw.inf.br/api/trackingdanfe"`
	ResponseFormat     string `env:"TRACKING_RESPONSE_FORMAT,default=json"`
	ClassifierStrategy string `env:"CLASSIFIER_STRATEGY,default=table"`
	RateLimitPerSec    int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency  int    `env:"WORKER_CONCURRENCY,default=5"`
	SelectionCap       int    `env:"SELECTION_CAP,default=100"`
	DispatchWindowDays int    `env:"DISPATCH_WINDOW_DAYS,default=30"`
	FetchTimeout       string `env:"FETCH_TIMEOUT,default=10s"`
	FetchMaxAttempts   int    `env:"FETCH_MAX_ATTEMPTS,default=3"`
	PendingInterval    string `env:"PENDING_SCAN_INTERVAL,default=11m"`
	TransitInterval    string `env:"TRANSIT_SCAN_INTERVAL,default=1h"`
	TransitCooldown    string `env:"TRANSIT_COOLDOWN,default=3h"`
	NotFoundInterval   string `env:"NOT_FOUND_SCAN_INTERVAL,default=2h"`
	NotFoundCooldown   string `env:"NOT_FOUND_COOLDOWN,default=10h"`
	SeederInterval     string `env:"STATUS_SEED_INTERVAL,default=10m"`
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
}

// Config is the immutable runtime configuration handed to each component at
// construction time.
type Config struct {
	DatabaseDSN        string
	RedisURL           string
	TrackingAPIURL     string
	ResponseFormat     string
	ClassifierStrategy string
	RateLimitPerSec    int
	WorkerConcurrency  int
	SelectionCap       int
	DispatchWindowDays int
	FetchTimeout       time.Duration
	FetchMaxAttempts   int
	PendingInterval    time.Duration
	TransitInterval    time.Duration
	TransitCooldown    time.Duration
	NotFoundInterval   time.Duration
	NotFoundCooldown   time.Duration
	SeederInterval     time.Duration
	APIPort            int
	LogLevel           string
}

func Load() (*Config, error) {
	var raw rawConfig
	if _, err := env.UnmarshalFromEnviron(&raw); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	format := strings.ToLower(strings.TrimSpace(raw.ResponseFormat))
	if format != FormatXML && format != FormatJSON {
		return nil, fmt.Errorf("invalid TRACKING_RESPONSE_FORMAT %q (want %s or %s)", raw.ResponseFormat, FormatXML, FormatJSON)
	}

	strategy := strings.ToLower(strings.TrimSpace(raw.ClassifierStrategy))
	if strategy != ClassifierPattern && strategy != ClassifierTable {
		return nil, fmt.Errorf("invalid CLASSIFIER_STRATEGY %q (want %s or %s)", raw.ClassifierStrategy, ClassifierPattern, ClassifierTable)
	}

	cfg := &Config{
		DatabaseDSN:        raw.DatabaseDSN,
		RedisURL:           raw.RedisURL,
		TrackingAPIURL:     raw.TrackingAPIURL,
		ResponseFormat:     format,
		ClassifierStrategy: strategy,
		RateLimitPerSec:    raw.RateLimitPerSec,
		WorkerConcurrency:  raw.WorkerConcurrency,
		SelectionCap:       raw.SelectionCap,
		DispatchWindowDays: raw.DispatchWindowDays,
		FetchMaxAttempts:   raw.FetchMaxAttempts,
		APIPort:            raw.APIPort,
		LogLevel:           raw.LogLevel,
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"FETCH_TIMEOUT", raw.FetchTimeout, &cfg.FetchTimeout},
		{"PENDING_SCAN_INTERVAL", raw.PendingInterval, &cfg.PendingInterval},
		{"TRANSIT_SCAN_INTERVAL", raw.TransitInterval, &cfg.TransitInterval},
		{"TRANSIT_COOLDOWN", raw.TransitCooldown, &cfg.TransitCooldown},
		{"NOT_FOUND_SCAN_INTERVAL", raw.NotFoundInterval, &cfg.NotFoundInterval},
		{"NOT_FOUND_COOLDOWN", raw.NotFoundCooldown, &cfg.NotFoundCooldown},
		{"STATUS_SEED_INTERVAL", raw.SeederInterval, &cfg.SeederInterval},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be positive", d.name, d.value)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
