package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Wizard drafts
	DraftTTL         time.Duration
	UseSupabaseDraft bool // false: in-memory drafts (local dev)

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	StorageBucket      string

	// OpenAI
	OpenAIURL    string
	OpenAIAPIKey string
	OpenAIModel  string

	// Resend
	ResendURL    string
	ResendAPIKey string
	EmailFrom    string
	StaffInbox   string

	// JWT / Auth
	JWTSecret string

	// Dev mode
	DevAuth bool // DEV_AUTH=true bypasses GoTrue, uses bcrypt against profiles
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		DraftTTL:         getEnvDuration("DRAFT_TTL", 7*24*time.Hour),
		UseSupabaseDraft: getEnv("USE_SUPABASE_DRAFTS", "true") == "true",

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		StorageBucket:      getEnv("SUPABASE_STORAGE_BUCKET", "rfi-attachments"),

		OpenAIURL:    getEnv("OPENAI_API_URL", "https://api.openai.com"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		ResendURL:    getEnv("RESEND_API_URL", "https://api.resend.com"),
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "Makerlink <noreply@makerlink.io>"),
		StaffInbox:   getEnv("STAFF_INBOX", "sourcing@makerlink.io"),

		JWTSecret: getEnv("SUPABASE_JWT_SECRET", "sourcing-default-dev-secret-change-me"),

		DevAuth: getEnv("DEV_AUTH", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
