package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string // "development" or "production"
	APIKey      string // optional X-API-Key for the HTTP surface

	// Knowledge base
	KnowledgePath string // file or directory of .json/.yaml knowledge entries

	// Model gateway (OpenAI-compatible)
	LLMBaseURL     string
	LLMAPIKey      string
	LLMTimeout     time.Duration
	ModelsPath     string // JSON file describing the fallback chain
	EmbeddingModel string // empty disables semantic retrieval
	MaxConcurrent  int    // in-flight model calls across the chain
	ModelRateLimit float64
	ModelRateBurst int

	// Retrieval thresholds
	FuzzyThreshold      float64
	SimilarityThreshold float64
	TopK                int

	// Cache tiers
	MemoryTTL        time.Duration
	MemoryMaxEntries int
	DiskTTL          time.Duration
	DiskMaxEntries   int
	DiskCachePath    string // empty disables the disk tier
	RemoteTTL        time.Duration
	RedisURL         string // empty disables the remote tier
	CacheCleanupCron string

	// Status perception
	MonitorErrorThreshold int
	MonitorRecencyWindow  time.Duration // zero means consider all history

	// Pipeline
	RequestTimeout time.Duration

	// Notification channels
	NotifyTimeout    time.Duration
	NotifyDryRun     bool
	FeishuWebhookURL string
	ApifoxURL        string
	ApifoxToken      string
	ApifoxProjectID  string
	SMTPHost         string
	SMTPPort         string
	SMTPUser         string
	SMTPPassword     string
	SMTPFrom         string
	SMTPTo           []string
	AuditLogPath     string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	// Parse alert recipients (comma-separated)
	smtpToEnv := getEnv("SMTP_TO", "")
	var smtpTo []string
	if smtpToEnv != "" {
		smtpTo = strings.Split(smtpToEnv, ",")
		for i := range smtpTo {
			smtpTo[i] = strings.TrimSpace(smtpTo[i])
		}
	}

	return &Config{
		Port:        getEnv("PORT", "3002"),
		Environment: getEnv("ENVIRONMENT", "development"),
		APIKey:      getEnv("API_KEY", ""),

		KnowledgePath: getEnv("KNOWLEDGE_PATH", "knowledge"),

		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMTimeout:     getDurationEnv("LLM_TIMEOUT", 30*time.Second),
		ModelsPath:     getEnv("MODELS_PATH", "models.json"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
		MaxConcurrent:  getIntEnv("LLM_MAX_CONCURRENT", 8),
		ModelRateLimit: getFloatEnv("LLM_RATE_LIMIT", 5),
		ModelRateBurst: getIntEnv("LLM_RATE_BURST", 10),

		FuzzyThreshold:      getFloatEnv("FUZZY_THRESHOLD", 0.3),
		SimilarityThreshold: getFloatEnv("SIMILARITY_THRESHOLD", 0.7),
		TopK:                getIntEnv("RETRIEVAL_TOP_K", 3),

		MemoryTTL:        getDurationEnv("CACHE_MEMORY_TTL", 5*time.Minute),
		MemoryMaxEntries: getIntEnv("CACHE_MEMORY_MAX_ENTRIES", 1024),
		DiskTTL:          getDurationEnv("CACHE_DISK_TTL", time.Hour),
		DiskMaxEntries:   getIntEnv("CACHE_DISK_MAX_ENTRIES", 10000),
		DiskCachePath:    getEnv("CACHE_DISK_PATH", "data/cache.db"),
		RemoteTTL:        getDurationEnv("CACHE_REMOTE_TTL", 24*time.Hour),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheCleanupCron: getEnv("CACHE_CLEANUP_CRON", "*/10 * * * *"),

		MonitorErrorThreshold: getIntEnv("MONITOR_ERROR_THRESHOLD", 1),
		MonitorRecencyWindow:  getDurationEnv("MONITOR_RECENCY_WINDOW", 0),

		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 60*time.Second),

		NotifyTimeout:    getDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),
		NotifyDryRun:     getBoolEnv("NOTIFY_DRY_RUN", false),
		FeishuWebhookURL: getEnv("FEISHU_WEBHOOK_URL", ""),
		ApifoxURL:        getEnv("APIFOX_URL", "https://api.apifox.com/v1"),
		ApifoxToken:      getEnv("APIFOX_TOKEN", ""),
		ApifoxProjectID:  getEnv("APIFOX_PROJECT_ID", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:         getEnv("SMTP_FROM", ""),
		SMTPTo:           smtpTo,
		AuditLogPath:     getEnv("AUDIT_LOG_PATH", ""),
	}
}

// ModelSpec describes one entry in the fallback chain, in priority order.
type ModelSpec struct {
	ID          string  `json:"id"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ModelsConfig is the on-disk shape of the model chain file.
type ModelsConfig struct {
	Models []ModelSpec `json:"models"`
}

// LoadModels loads the model fallback chain from a JSON file
func LoadModels(filePath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file: %w", err)
	}

	var config ModelsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse models JSON: %w", err)
	}
	if len(config.Models) == 0 {
		return nil, fmt.Errorf("models file %s declares no models", filePath)
	}

	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
