package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// minSessionSecretLen is the HMAC key size for HS256 session tokens.
const minSessionSecretLen = 32

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string

	// Identity provider (Firebase Auth)
	FirebaseProjectID       string
	FirebaseCredentialsFile string

	// Store-auth admin API (Supabase GoTrue)
	SupabaseURL        string
	SupabaseServiceKey string

	// Movie metadata
	TMDBURL         string
	TMDBBearerToken string
	TMDBRateLimit   float64
	TMDBCacheTTL    time.Duration

	// LLM (Gemini through its OpenAI-compatible endpoint)
	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	// Legacy email/password sessions
	SessionSecret   string
	SessionTokenTTL time.Duration
	RefreshTokenTTL time.Duration

	DevMode               bool
	SweepInterval         time.Duration
	BackgroundTaskTimeout time.Duration
	WorkerMetricsPort     string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),

		TMDBURL:         getEnv("TMDB_URL", "https://api.themoviedb.org/3"),
		TMDBBearerToken: getEnv("TMDB_BEARER_TOKEN", ""),
		TMDBRateLimit:   getEnvFloat("TMDB_RATE_LIMIT", 20),
		TMDBCacheTTL:    getEnvDuration("TMDB_CACHE_TTL", 24*time.Hour),

		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIBaseURL: getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		AIModel:   getEnv("AI_MODEL", "gemini-2.0-flash"),

		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionTokenTTL: getEnvDuration("SESSION_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		DevMode:               getEnvBool("DEV_MODE", false),
		SweepInterval:         getEnvDuration("SWEEP_INTERVAL", 6*time.Hour),
		BackgroundTaskTimeout: getEnvDuration("BACKGROUND_TASK_TIMEOUT", 2*time.Minute),
		WorkerMetricsPort:     getEnv("WORKER_METRICS_PORT", "9091"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate reports every configuration problem at once.
func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RabbitMQURL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required: user sync jobs are queued through RabbitMQ"))
	}
	if c.RabbitMQPrefetch < 1 {
		errs = append(errs, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1, got %d", c.RabbitMQPrefetch))
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < minSessionSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}
	if c.TMDBRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("TMDB_RATE_LIMIT must be positive, got %v", c.TMDBRateLimit))
	}
	return errors.Join(errs...)
}

// FirebaseEnabled reports whether identity provider credentials are configured.
func (c *Config) FirebaseEnabled() bool {
	return c.FirebaseProjectID != ""
}

// SupabaseEnabled reports whether the store-auth admin API is configured.
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookup parses key with parse and falls back to defaultValue when the
// variable is unset or malformed.
func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		}
		return false, nil
	})
}

func getEnvInt(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

func getEnvFloat(key string, defaultValue float64) float64 {
	return lookup(key, defaultValue, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, time.ParseDuration)
}
