package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()
}

// Config is built once at startup and handed to each component's constructor.
type Config struct {
	// Required
	AnthropicAPIKey       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Language model
	ClaudeModel       string
	ClaudeTemperature float64
	ModelTimeout      time.Duration
	ModelMaxAttempts  int

	// Calendar
	GoogleRefreshToken string
	CalendarID         string
	CalendarTimeout    time.Duration
	TokenSafetyMargin  time.Duration

	// Business rules
	Timezone           string
	BusinessStart      string // "HH:MM"
	BusinessEnd        string // "HH:MM"
	SlotDuration       time.Duration
	MaxSlotsListed     int
	MaxAlternatives    int
	MinDescriptionLen  int
	DefaultServiceType string

	// Storage
	DBPath        string
	EncryptionKey string

	// Queue
	ReconcileSchedule string
	ReconcilePolicy   string

	// Notifications
	ResendAPIKey string
	EmailFrom    string
	OwnerEmail   string

	// Server
	HTTPPort       int
	ChatRatePerMin int
	TrustProxy     bool
	Env            string
}

// LoadFromEnv reads the process environment (and .env) into a Config.
func LoadFromEnv() *Config {
	cfg := &Config{
		// Required
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		GoogleCredentialsFile: getEnvOrDefault("GOOGLE_CREDENTIALS_FILE", "./credentials.json"),
		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),

		ClaudeModel:       getEnvOrDefault("CONCIERGE_CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		ClaudeTemperature: getEnvAsFloatOrDefault("CONCIERGE_CLAUDE_TEMPERATURE", 0.3),
		ModelTimeout:      getEnvAsDurationOrDefault("CONCIERGE_MODEL_TIMEOUT", 15*time.Second),
		ModelMaxAttempts:  getEnvAsIntOrDefault("CONCIERGE_MODEL_MAX_ATTEMPTS", 2),

		GoogleRefreshToken: os.Getenv("GOOGLE_REFRESH_TOKEN"),
		CalendarID:         getEnvOrDefault("CONCIERGE_CALENDAR_ID", "primary"),
		CalendarTimeout:    getEnvAsDurationOrDefault("CONCIERGE_CALENDAR_TIMEOUT", 10*time.Second),
		TokenSafetyMargin:  getEnvAsDurationOrDefault("CONCIERGE_TOKEN_SAFETY_MARGIN", 2*time.Minute),

		Timezone:           getEnvOrDefault("CONCIERGE_TIMEZONE", "America/Sao_Paulo"),
		BusinessStart:      getEnvOrDefault("CONCIERGE_BUSINESS_START", "09:00"),
		BusinessEnd:        getEnvOrDefault("CONCIERGE_BUSINESS_END", "17:00"),
		SlotDuration:       30 * time.Minute,
		MaxSlotsListed:     getEnvAsIntOrDefault("CONCIERGE_MAX_SLOTS", 9),
		MaxAlternatives:    3,
		MinDescriptionLen:  getEnvAsIntOrDefault("CONCIERGE_MIN_DESCRIPTION_LEN", 20),
		DefaultServiceType: getEnvOrDefault("CONCIERGE_DEFAULT_SERVICE", "Initial free consultation"),

		DBPath:        getEnvOrDefault("CONCIERGE_DB_PATH", "./concierge.db"),
		EncryptionKey: os.Getenv("CONCIERGE_ENCRYPTION_KEY"),

		ReconcileSchedule: getEnvOrDefault("CONCIERGE_RECONCILE_SCHEDULE", "@every 15m"),
		ReconcilePolicy:   getEnvOrDefault("CONCIERGE_RECONCILE_POLICY", "honor_original_slot"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnvOrDefault("CONCIERGE_EMAIL_FROM", "Concierge <concierge@resend.dev>"),
		OwnerEmail:   os.Getenv("CONCIERGE_OWNER_EMAIL"),

		HTTPPort:       getEnvAsIntOrDefault("CONCIERGE_HTTP_PORT", 8080),
		ChatRatePerMin: getEnvAsIntOrDefault("CONCIERGE_CHAT_RATE_PER_MIN", 30),
		TrustProxy:     getEnvAsBoolOrDefault("CONCIERGE_TRUST_PROXY", false),
		Env:            getEnvOrDefault("CONCIERGE_ENV", "development"),
	}

	// Without an explicit key the storage key is derived from the API key
	if cfg.EncryptionKey == "" && cfg.AnthropicAPIKey != "" {
		cfg.EncryptionKey = "concierge-encryption-" + cfg.AnthropicAPIKey
	}

	return cfg
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
