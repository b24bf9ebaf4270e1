package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string
	LogLevel  slog.Level

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	MaxDBConns               int32
	KafkaConsumerGroup       string
	KafkaTopicIssues         string
	KafkaTopicIssuesExternal string
	ConsumerPollTimeout      time.Duration
	ConsumerBatchSize        int
	InboundDedupTTL          time.Duration
	SourceTag                string
	PublishAckTimeout        time.Duration
	PublishMaxRetries        int
	PublishRetryBackoff      time.Duration
	CoalescingTTL            time.Duration
	CreatedWindow            time.Duration
	JanitorInterval          time.Duration
	ShutdownTimeout          time.Duration
	DisableInboundListener   bool
	RunMigrationsOnStartup   bool
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL              string   `yaml:"postgres_url"`
		RedisURL                 string   `yaml:"redis_url"`
		KafkaBrokers             []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup       string   `yaml:"kafka_consumer_group"`
		KafkaTopicIssues         string   `yaml:"kafka_topic_issues"`
		KafkaTopicIssuesExternal string   `yaml:"kafka_topic_issues_external"`
	} `yaml:"dependencies"`
	Sync struct {
		SourceTag                 string `yaml:"source_tag"`
		PublishAckTimeoutSeconds  int    `yaml:"publish_ack_timeout_seconds"`
		PublishMaxRetries         *int   `yaml:"publish_max_retries"`
		PublishRetryBackoffMillis int    `yaml:"publish_retry_backoff_ms"`
		ConsumerPollTimeoutMillis int    `yaml:"consumer_poll_timeout_ms"`
		CoalescingTTLSeconds      int    `yaml:"coalescing_ttl_seconds"`
		CreatedWindowSeconds      int    `yaml:"created_window_seconds"`
		InboundDedupTTLHours      int    `yaml:"inbound_dedup_ttl_hours"`
		JanitorIntervalSeconds    int    `yaml:"janitor_interval_seconds"`
	} `yaml:"sync"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                "issue-sync-service",
		LogLevel:                 slog.LevelInfo,
		HTTPPort:                 8080,
		GRPCPort:                 9090,
		MaxDBConns:               20,
		KafkaConsumerGroup:       "issue-sync-service",
		KafkaTopicIssues:         "issues",
		KafkaTopicIssuesExternal: "issues.external",
		ConsumerPollTimeout:      time.Second,
		ConsumerBatchSize:        50,
		InboundDedupTTL:          24 * time.Hour,
		SourceTag:                "local",
		PublishAckTimeout:        10 * time.Second,
		PublishMaxRetries:        3,
		PublishRetryBackoff:      500 * time.Millisecond,
		CoalescingTTL:            5 * time.Minute,
		CreatedWindow:            5 * time.Second,
		JanitorInterval:          time.Minute,
		ShutdownTimeout:          10 * time.Second,
		RunMigrationsOnStartup:   true,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Service.LogLevel != "" {
			cfg.LogLevel = parseLogLevel(f.Service.LogLevel, cfg.LogLevel)
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
		}
		if f.Dependencies.KafkaTopicIssues != "" {
			cfg.KafkaTopicIssues = f.Dependencies.KafkaTopicIssues
		}
		if f.Dependencies.KafkaTopicIssuesExternal != "" {
			cfg.KafkaTopicIssuesExternal = f.Dependencies.KafkaTopicIssuesExternal
		}
		if f.Sync.SourceTag != "" {
			cfg.SourceTag = f.Sync.SourceTag
		}
		if f.Sync.PublishAckTimeoutSeconds > 0 {
			cfg.PublishAckTimeout = time.Duration(f.Sync.PublishAckTimeoutSeconds) * time.Second
		}
		if f.Sync.PublishMaxRetries != nil && *f.Sync.PublishMaxRetries >= 0 {
			cfg.PublishMaxRetries = *f.Sync.PublishMaxRetries
		}
		if f.Sync.PublishRetryBackoffMillis > 0 {
			cfg.PublishRetryBackoff = time.Duration(f.Sync.PublishRetryBackoffMillis) * time.Millisecond
		}
		if f.Sync.ConsumerPollTimeoutMillis > 0 {
			cfg.ConsumerPollTimeout = time.Duration(f.Sync.ConsumerPollTimeoutMillis) * time.Millisecond
		}
		if f.Sync.CoalescingTTLSeconds > 0 {
			cfg.CoalescingTTL = time.Duration(f.Sync.CoalescingTTLSeconds) * time.Second
		}
		if f.Sync.CreatedWindowSeconds > 0 {
			cfg.CreatedWindow = time.Duration(f.Sync.CreatedWindowSeconds) * time.Second
		}
		if f.Sync.InboundDedupTTLHours > 0 {
			cfg.InboundDedupTTL = time.Duration(f.Sync.InboundDedupTTLHours) * time.Hour
		}
		if f.Sync.JanitorIntervalSeconds > 0 {
			cfg.JanitorInterval = time.Duration(f.Sync.JanitorIntervalSeconds) * time.Second
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.LogLevel = parseLogLevel(os.Getenv("LOG_LEVEL"), cfg.LogLevel)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BOOTSTRAP_SERVERS", envCSV("KAFKA_BROKERS", cfg.KafkaBrokers))
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicIssues = envOrDefault("KAFKA_ISSUES_TOPIC", cfg.KafkaTopicIssues)
	cfg.KafkaTopicIssuesExternal = envOrDefault("KAFKA_ISSUES_EXTERNAL_TOPIC", cfg.KafkaTopicIssuesExternal)
	cfg.SourceTag = envOrDefault("SYNC_SOURCE_TAG", cfg.SourceTag)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.PublishAckTimeout = time.Duration(envInt("PUBLISH_ACK_TIMEOUT_SECONDS", int(cfg.PublishAckTimeout.Seconds()))) * time.Second
	cfg.PublishMaxRetries = envInt("PUBLISH_MAX_RETRIES", cfg.PublishMaxRetries)
	cfg.PublishRetryBackoff = time.Duration(envInt("PUBLISH_RETRY_BACKOFF_MS", int(cfg.PublishRetryBackoff.Milliseconds()))) * time.Millisecond
	cfg.ConsumerPollTimeout = time.Duration(envInt("CONSUMER_POLL_TIMEOUT_MS", int(cfg.ConsumerPollTimeout.Milliseconds()))) * time.Millisecond
	cfg.ConsumerBatchSize = envInt("CONSUMER_BATCH_SIZE", cfg.ConsumerBatchSize)
	cfg.CoalescingTTL = time.Duration(envInt("COALESCING_TTL_SECONDS", int(cfg.CoalescingTTL.Seconds()))) * time.Second
	cfg.CreatedWindow = time.Duration(envInt("CREATED_WINDOW_SECONDS", int(cfg.CreatedWindow.Seconds()))) * time.Second
	cfg.InboundDedupTTL = time.Duration(envInt("INBOUND_DEDUP_TTL_HOURS", int(cfg.InboundDedupTTL.Hours()))) * time.Hour
	cfg.JanitorInterval = time.Duration(envInt("JANITOR_INTERVAL_SECONDS", int(cfg.JanitorInterval.Seconds()))) * time.Second
	cfg.DisableInboundListener = envBool("DISABLE_INBOUND_LISTENER", cfg.DisableInboundListener)
	cfg.RunMigrationsOnStartup = envBool("RUN_MIGRATIONS", cfg.RunMigrationsOnStartup)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.SourceTag) == "" {
		return fmt.Errorf("sync source tag must not be empty")
	}
	if c.PublishMaxRetries < 0 {
		return fmt.Errorf("publish max retries must be >= 0, got %d", c.PublishMaxRetries)
	}
	if c.PublishAckTimeout <= 0 {
		return fmt.Errorf("publish ack timeout must be positive")
	}
	if len(c.KafkaBrokers) > 0 {
		if c.KafkaTopicIssues == "" || c.KafkaTopicIssuesExternal == "" {
			return fmt.Errorf("kafka topics must not be empty")
		}
		if c.KafkaConsumerGroup == "" {
			return fmt.Errorf("kafka consumer group must not be empty")
		}
	}
	return nil
}

// InboundTopics lists the topics the listener subscribes to: the shared
// outbound topic and the external one.
func (c Config) InboundTopics() []string {
	if c.KafkaTopicIssues == c.KafkaTopicIssuesExternal {
		return []string{c.KafkaTopicIssues}
	}
	return []string{c.KafkaTopicIssues, c.KafkaTopicIssuesExternal}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(raw string, fallback slog.Level) slog.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}
	return level
}
