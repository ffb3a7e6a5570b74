package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.ResponseFormat != FormatJSON {
		t.Errorf("ResponseFormat = %s, want json", cfg.ResponseFormat)
	}
	if cfg.ClassifierStrategy != ClassifierTable {
		t.Errorf("ClassifierStrategy = %s, want table", cfg.ClassifierStrategy)
	}
	if cfg.RateLimitPerSec != 100 {
		t.Errorf("RateLimitPerSec = %d, want 100", cfg.RateLimitPerSec)
	}
	if cfg.WorkerConcurrency != 5 {
		t.Errorf("WorkerConcurrency = %d, want 5", cfg.WorkerConcurrency)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %s, want 10s", cfg.FetchTimeout)
	}
	if cfg.TransitCooldown != 3*time.Hour {
		t.Errorf("TransitCooldown = %s, want 3h", cfg.TransitCooldown)
	}
	if cfg.NotFoundCooldown != 10*time.Hour {
		t.Errorf("NotFoundCooldown = %s, want 10h", cfg.NotFoundCooldown)
	}
	if cfg.DispatchWindowDays != 30 {
		t.Errorf("DispatchWindowDays = %d, want 30", cfg.DispatchWindowDays)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRACKING_RESPONSE_FORMAT", "XML")
	t.Setenv("PENDING_SCAN_INTERVAL", "5m")
	t.Setenv("RATE_LIMIT_PER_SEC", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ResponseFormat != FormatXML {
		t.Errorf("ResponseFormat = %s, want xml", cfg.ResponseFormat)
	}
	if cfg.PendingInterval != 5*time.Minute {
		t.Errorf("PendingInterval = %s, want 5m", cfg.PendingInterval)
	}
	if cfg.RateLimitPerSec != 250 {
		t.Errorf("RateLimitPerSec = %d, want 250", cfg.RateLimitPerSec)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
}

func TestLoad_InvalidFormat(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRACKING_RESPONSE_FORMAT", "yaml")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid response format, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRANSIT_COOLDOWN", "three hours")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
}
