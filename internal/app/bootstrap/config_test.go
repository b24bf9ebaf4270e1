package bootstrap

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SourceTag != "local" || cfg.PublishMaxRetries != 3 || cfg.CoalescingTTL != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.InboundTopics(), []string{"issues", "issues.external"}) {
		t.Fatalf("unexpected inbound topics %v", cfg.InboundTopics())
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
service:
  id: sync-a
  http_port: 8181
  log_level: debug
dependencies:
  kafka_brokers: [" k1:9092 ", "", "k2:9092"]
  kafka_topic_issues: tracker.issues
  kafka_topic_issues_external: tracker.issues
sync:
  source_tag: tracker
  publish_max_retries: 0
  publish_retry_backoff_ms: 250
  coalescing_ttl_seconds: 30
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServiceID != "sync-a" || cfg.HTTPPort != 8181 || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected service section: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.SourceTag != "tracker" || cfg.PublishMaxRetries != 0 {
		t.Fatalf("unexpected sync section: %+v", cfg)
	}
	if cfg.PublishRetryBackoff != 250*time.Millisecond || cfg.CoalescingTTL != 30*time.Second {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.InboundTopics(), []string{"tracker.issues"}) {
		t.Fatalf("identical topics must be subscribed once, got %v", cfg.InboundTopics())
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "sync:\n  source_tag: tracker\n")
	t.Setenv("SYNC_SOURCE_TAG", "erp-bridge")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "a:9092,b:9092")
	t.Setenv("POSTGRES_URL", "postgres://fallback")
	t.Setenv("DB_URL", "postgres://primary")
	t.Setenv("PUBLISH_MAX_RETRIES", "5")
	t.Setenv("COALESCING_TTL_SECONDS", "90")
	t.Setenv("DISABLE_INBOUND_LISTENER", "yes")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SourceTag != "erp-bridge" || cfg.DatabaseURL != "postgres://primary" {
		t.Fatalf("env must win over file: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"a:9092", "b:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.PublishMaxRetries != 5 || cfg.CoalescingTTL != 90*time.Second {
		t.Fatalf("unexpected numeric overrides: %+v", cfg)
	}
	if !cfg.DisableInboundListener || cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("unexpected flag overrides: %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "negative retries", env: map[string]string{"PUBLISH_MAX_RETRIES": "-1"}, want: "max retries"},
		{name: "zero ack timeout", env: map[string]string{"PUBLISH_ACK_TIMEOUT_SECONDS": "0"}, want: "ack timeout"},
		{name: "blank source tag", env: map[string]string{"SYNC_SOURCE_TAG": " "}, want: "source tag"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "service: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
