package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Transport gateway (WhatsApp session provider)
	GatewayBaseURL       string
	GatewayAPIKey        string
	GatewayWebhookSecret string

	// AI delegate
	AIBaseURL   string
	AIAPIKey    string
	AIModelID   string
	AITimeout   time.Duration
	AIMaxTokens int

	// Conversation engine tuning
	RosterCacheTTL       time.Duration
	MinUploadPhotos      int
	MaxUploadPhotos      int
	PhotoLookbackWindow  time.Duration
	PhotoLookbackLimit   int
	DuplicateWindow      time.Duration
	DispatchMaxAttempts  int
	DispatchBaseDelay    time.Duration
	MediaSendMinInterval time.Duration
	NegotiationLimitPct  int
	EscalationErrorLimit int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", ""),
		GatewayAPIKey:        getEnv("GATEWAY_API_KEY", ""),
		GatewayWebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),

		AIBaseURL:   getEnv("AI_BASE_URL", ""),
		AIAPIKey:    getEnv("AI_API_KEY", ""),
		AIModelID:   getEnv("AI_MODEL_ID", ""),
		AITimeout:   getEnvAsDuration("AI_TIMEOUT", 45*time.Second),
		AIMaxTokens: getEnvAsInt("AI_MAX_TOKENS", 512),

		RosterCacheTTL:       getEnvAsDuration("ROSTER_CACHE_TTL", 5*time.Minute),
		MinUploadPhotos:      getEnvAsInt("MIN_UPLOAD_PHOTOS", 6),
		MaxUploadPhotos:      getEnvAsInt("MAX_UPLOAD_PHOTOS", 12),
		PhotoLookbackWindow:  getEnvAsDuration("PHOTO_LOOKBACK_WINDOW", 10*time.Minute),
		PhotoLookbackLimit:   getEnvAsInt("PHOTO_LOOKBACK_LIMIT", 20),
		DuplicateWindow:      getEnvAsDuration("DUPLICATE_WINDOW", 5*time.Minute),
		DispatchMaxAttempts:  getEnvAsInt("DISPATCH_MAX_ATTEMPTS", 3),
		DispatchBaseDelay:    getEnvAsDuration("DISPATCH_BASE_DELAY", time.Second),
		MediaSendMinInterval: getEnvAsDuration("MEDIA_SEND_MIN_INTERVAL", 1500*time.Millisecond),
		NegotiationLimitPct:  getEnvAsInt("NEGOTIATION_LIMIT_PCT", 10),
		EscalationErrorLimit: getEnvAsInt("ESCALATION_ERROR_LIMIT", 3),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
