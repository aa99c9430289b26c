package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the chat engine.
// It merges file defaults and environment overrides to support both local and
// deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	KafkaBrokers     []string
	RoomEventsTopic  string
	EventBusBuffer   int
	InternalToken    string
	SurveySecret     string
	SurveyWebhookURL string

	FlowsBaseURL     string
	FlowsToken       string
	FlowsHTTPTimeout time.Duration

	OIDCUserinfoURL string
	OIDCHTTPTimeout time.Duration

	PresenceTTL    time.Duration
	QueueLockTTL   time.Duration
	BulkBatchSize  int
	SurveyTokenTTL time.Duration
	ReportTTL      time.Duration
	DefaultMaxPins int

	FlowUUIDCacheTTL    time.Duration
	FlowUUIDFallbackTTL time.Duration
	FlowUUIDNegativeTTL time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Flows struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"flows"`
	OIDC struct {
		UserinfoURL string `yaml:"userinfo_url"`
	} `yaml:"oidc"`
	Survey struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"survey"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific
// overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "livechat-engine",
		HTTPPort:            8080,
		GRPCPort:            9090,
		MaxDBConns:          20,
		RoomEventsTopic:     "livechat.room-events",
		EventBusBuffer:      64,
		FlowsHTTPTimeout:    10 * time.Second,
		OIDCHTTPTimeout:     5 * time.Second,
		PresenceTTL:         60 * time.Second,
		QueueLockTTL:        30 * time.Second,
		BulkBatchSize:       100,
		SurveyTokenTTL:      24 * time.Hour,
		ReportTTL:           10 * time.Minute,
		DefaultMaxPins:      5,
		FlowUUIDCacheTTL:    5 * time.Minute,
		FlowUUIDFallbackTTL: 24 * time.Hour,
		FlowUUIDNegativeTTL: time.Minute,
		OutboxPollInterval:  2 * time.Second,
		OutboxBatchSize:     100,
		OutboxClaimTTL:      30 * time.Second,
		OutboxMaxRetries:    5,
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
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Flows.BaseURL != "" {
			cfg.FlowsBaseURL = f.Flows.BaseURL
		}
		if f.Flows.Token != "" {
			cfg.FlowsToken = f.Flows.Token
		}
		if f.OIDC.UserinfoURL != "" {
			cfg.OIDCUserinfoURL = f.OIDC.UserinfoURL
		}
		if f.Survey.WebhookURL != "" {
			cfg.SurveyWebhookURL = f.Survey.WebhookURL
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.RoomEventsTopic = envOrDefault("ROOM_EVENTS_TOPIC", cfg.RoomEventsTopic)
	cfg.InternalToken = envOrDefault("INTERNAL_SERVICE_TOKEN", cfg.InternalToken)
	cfg.SurveySecret = envOrDefault("SURVEY_TOKEN_SECRET", cfg.SurveySecret)
	cfg.SurveyWebhookURL = envOrDefault("SURVEY_WEBHOOK_URL", cfg.SurveyWebhookURL)
	cfg.FlowsBaseURL = envOrDefault("FLOWS_BASE_URL", cfg.FlowsBaseURL)
	cfg.FlowsToken = envOrDefault("FLOWS_TOKEN", cfg.FlowsToken)
	cfg.OIDCUserinfoURL = envOrDefault("OIDC_USERINFO_URL", cfg.OIDCUserinfoURL)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.EventBusBuffer = envInt("EVENT_BUS_BUFFER", cfg.EventBusBuffer)
	cfg.BulkBatchSize = envInt("BULK_BATCH_SIZE", cfg.BulkBatchSize)
	cfg.DefaultMaxPins = envInt("DEFAULT_MAX_PINS", cfg.DefaultMaxPins)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	cfg.FlowsHTTPTimeout = time.Duration(envInt("FLOWS_HTTP_TIMEOUT_SECONDS", int(cfg.FlowsHTTPTimeout.Seconds()))) * time.Second
	cfg.OIDCHTTPTimeout = time.Duration(envInt("OIDC_HTTP_TIMEOUT_SECONDS", int(cfg.OIDCHTTPTimeout.Seconds()))) * time.Second
	cfg.PresenceTTL = time.Duration(envInt("PRESENCE_TTL_SECONDS", int(cfg.PresenceTTL.Seconds()))) * time.Second
	cfg.QueueLockTTL = time.Duration(envInt("QUEUE_LOCK_TTL_SECONDS", int(cfg.QueueLockTTL.Seconds()))) * time.Second
	cfg.SurveyTokenTTL = time.Duration(envInt("SURVEY_TOKEN_TTL_HOURS", int(cfg.SurveyTokenTTL.Hours()))) * time.Hour
	cfg.ReportTTL = time.Duration(envInt("REPORT_TTL_MINUTES", int(cfg.ReportTTL.Minutes()))) * time.Minute
	cfg.FlowUUIDCacheTTL = time.Duration(envInt("FLOW_UUID_CACHE_TTL_SECONDS", int(cfg.FlowUUIDCacheTTL.Seconds()))) * time.Second
	cfg.FlowUUIDFallbackTTL = time.Duration(envInt("FLOW_UUID_FALLBACK_TTL_HOURS", int(cfg.FlowUUIDFallbackTTL.Hours()))) * time.Hour
	cfg.FlowUUIDNegativeTTL = time.Duration(envInt("FLOW_UUID_NEGATIVE_TTL_SECONDS", int(cfg.FlowUUIDNegativeTTL.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.SurveySecret == "" {
		return Config{}, fmt.Errorf("missing SURVEY_TOKEN_SECRET")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
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

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
