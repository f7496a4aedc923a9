package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	clearEnv(t, "ALERT_THRESHOLD", "DELIVERY_MAX_ATTEMPTS", "DELIVERY_BACKOFF", "QUEUE_BACKEND", "AI_TIMEOUT_MS", "FEEDBACK_MAX_CHARS")

	cfg := Load()
	if cfg.AlertThreshold != 0.6 {
		t.Fatalf("expected default alert threshold 0.6, got %v", cfg.AlertThreshold)
	}
	if cfg.DeliveryMaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", cfg.DeliveryMaxAttempts)
	}
	want := []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
	if !reflect.DeepEqual(cfg.DeliveryBackoff, want) {
		t.Fatalf("expected default backoff %v, got %v", want, cfg.DeliveryBackoff)
	}
	if cfg.QueueBackend != QueueBackendNATS {
		t.Fatalf("expected nats backend, got %q", cfg.QueueBackend)
	}
	if cfg.AITimeout() != 10*time.Second {
		t.Fatalf("expected 10s AI timeout, got %v", cfg.AITimeout())
	}
	if cfg.FeedbackMaxChars != 1000 {
		t.Fatalf("expected 1000 max chars, got %d", cfg.FeedbackMaxChars)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV_FILE", "")
	t.Setenv("QUEUE_BACKEND", "Memory")
	t.Setenv("DELIVERY_BACKOFF", "1s, 2s,4s")
	t.Setenv("ALERT_THRESHOLD", "0.75")
	t.Setenv("AI_ENABLED", "false")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.QueueBackend != QueueBackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.QueueBackend)
	}
	if !reflect.DeepEqual(cfg.DeliveryBackoff, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}) {
		t.Fatalf("unexpected backoff %v", cfg.DeliveryBackoff)
	}
	if cfg.AlertThreshold != 0.75 || cfg.AIEnabled || cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("APP_ENV_FILE", "")
	t.Setenv("DELIVERY_BACKOFF", "soon")
	t.Setenv("DELIVERY_WORKERS", "many")

	cfg := Load()
	if len(cfg.DeliveryBackoff) != 3 || cfg.DeliveryWorkers != 2 {
		t.Fatalf("expected fallbacks, got backoff=%v workers=%d", cfg.DeliveryBackoff, cfg.DeliveryWorkers)
	}
}

func TestLoadReadsEnvFileWithoutOverridingEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	doc := "FEEDBACK_MAX_CHARS=500\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APP_ENV_FILE", path)
	clearEnv(t, "FEEDBACK_MAX_CHARS")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()
	if cfg.FeedbackMaxChars != 500 {
		t.Fatalf("expected env file value 500, got %d", cfg.FeedbackMaxChars)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected environment to win, got %q", cfg.LogLevel)
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cfg := Config{
		AlertThreshold:           1.2,
		TopicActivationThreshold: -0.1,
		DeliveryMaxAttempts:      0,
		DeliveryWorkers:          1,
		FeedbackMaxChars:         1000,
		QueueBackend:             "kafka",
		AIProvider:               AIProviderOllama,
		AlertTransport:           TransportWebhook,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"ALERT_THRESHOLD", "TOPIC_ACTIVATION_THRESHOLD", "DELIVERY_MAX_ATTEMPTS", "QUEUE_BACKEND", "WEBHOOK_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestValidateRejectsNaN(t *testing.T) {
	t.Setenv("APP_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("ALERT_THRESHOLD", "NaN")
	t.Setenv("TOPIC_ACTIVATION_THRESHOLD", "nan")
	t.Setenv("API_RATE_LIMIT_RPS", "NaN")
	t.Setenv("ALERT_TRANSPORT", TransportSMTP)

	err := Load().Validate()
	if err == nil {
		t.Fatalf("expected NaN settings to fail validation")
	}
	for _, want := range []string{"ALERT_THRESHOLD", "TOPIC_ACTIVATION_THRESHOLD", "API_RATE_LIMIT_RPS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestValidateAcceptsDisabledRateLimit(t *testing.T) {
	cfg := Config{
		AlertThreshold:           0.6,
		TopicActivationThreshold: 0.3,
		DeliveryMaxAttempts:      3,
		DeliveryWorkers:          1,
		FeedbackMaxChars:         1000,
		QueueBackend:             QueueBackendMemory,
		AIProvider:               AIProviderOllama,
		AlertTransport:           TransportSMTP,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	cfg.APIRateLimitRPS = -1
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "API_RATE_LIMIT_RPS") {
		t.Fatalf("expected negative rps to fail, got %v", err)
	}
}

func TestRetryPolicyNormalizesBackoff(t *testing.T) {
	cfg := Config{DeliveryMaxAttempts: 4, DeliveryBackoff: []time.Duration{10 * time.Second, 5 * time.Second}}

	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", policy.MaxAttempts)
	}
	if policy.Backoff(2) != 10*time.Second || policy.Backoff(5) != 10*time.Second {
		t.Fatalf("expected non-decreasing schedule, got %v", policy.Delays)
	}
}
