package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// CoordinatorConfig configures the cloud-side coordinator process.
type CoordinatorConfig struct {
	// Server
	HTTPAddr string

	// Auth. When AuthRequired is true and a secret is empty, the matching
	// realm answers 503 until an operator configures it.
	AuthRequired      bool
	CloudAPIKey       string
	AgentSharedSecret string

	// Limits. 0 keeps per-agent queues unbounded.
	MaxQueueDepth int

	// Logging
	LogLevel  slog.Level
	LogFormat string // "json" or "text"
	LogFile   string

	// Tracing
	OTLPEndpoint string
	ServiceName  string

	// Features
	EnableMetrics bool
	EnableTracing bool
}

func LoadCoordinator() (*CoordinatorConfig, error) {
	cfg := &CoordinatorConfig{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8765"),
		AuthRequired:      getEnvBool("REMOTE_AUTH_REQUIRED", true),
		CloudAPIKey:       strings.TrimSpace(getEnv("CLOUD_API_KEY", "")),
		AgentSharedSecret: strings.TrimSpace(getEnv("AGENT_SHARED_SECRET", "")),
		MaxQueueDepth:     getEnvInt("MAX_QUEUE_DEPTH", 0),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		LogFile:           getEnv("LOG_FILE", ""),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", ""),
		ServiceName:       getEnv("SERVICE_NAME", "signage-relay-coordinator"),
		EnableMetrics:     getEnvBool("ENABLE_METRICS", true),
		EnableTracing:     getEnvBool("ENABLE_TRACING", false),
	}
	return cfg, nil
}

// AgentConfig configures the on-premises agent process.
type AgentConfig struct {
	CloudBaseURL      string
	AgentID           string
	AgentSharedSecret string
	LocalBackendURL   string

	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	RequestTimeout    time.Duration
	MaxJobsPerPoll    int

	LogLevel  slog.Level
	LogFormat string
	LogFile   string
}

func LoadAgent() (*AgentConfig, error) {
	cfg := &AgentConfig{
		CloudBaseURL:      strings.TrimRight(strings.TrimSpace(getEnv("CLOUD_BASE_URL", "")), "/"),
		AgentID:           strings.TrimSpace(getEnv("AGENT_ID", "")),
		AgentSharedSecret: strings.TrimSpace(getEnv("AGENT_SHARED_SECRET", "")),
		LocalBackendURL:   strings.TrimRight(getEnv("LOCAL_BACKEND_URL", "http://127.0.0.1:8765"), "/"),
		PollInterval:      getEnvSeconds("AGENT_POLL_INTERVAL_SECONDS", 2*time.Second),
		HeartbeatInterval: getEnvSeconds("AGENT_HEARTBEAT_INTERVAL_SECONDS", 15*time.Second),
		RequestTimeout:    getEnvSeconds("AGENT_REQUEST_TIMEOUT_SECONDS", 20*time.Second),
		MaxJobsPerPoll:    getEnvInt("AGENT_MAX_JOBS_PER_POLL", 5),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		LogFile:           getEnv("LOG_FILE", ""),
	}

	var missing []string
	if cfg.CloudBaseURL == "" {
		missing = append(missing, "CLOUD_BASE_URL")
	}
	if cfg.AgentID == "" {
		missing = append(missing, "AGENT_ID")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed <= 0 {
			return defaultValue
		}
		return time.Duration(parsed * float64(time.Second))
	}
	return defaultValue
}
