package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"resuradar/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	LogLevel        string
	LogFormat       string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LLMProvider      string
	LLMModel         string
	LLMBaseURL       string
	OpenRouterAPIKey string
	GeminiAPIKey     string
	LLMTimeout       time.Duration

	EncryptionKey string
	JWTSecret     string
	JWTTTL        time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string

	PhonePeBase          string
	PhonePeTokenURL      string
	PhonePeClientID      string
	PhonePeClientSecret  string
	PhonePeClientVersion string
	PaymentRedirectURL   string

	FreeUploadLimit int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	cfg := Config{
		Env:             env,
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", defaultLogFormat(env)),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", "resumes/"),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		LLMProvider:      normalizeProvider(getEnv("LLM_PROVIDER", "openrouter")),
		LLMModel:         getEnv("LLM_MODEL", ""),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		LLMTimeout:       time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTTTL:        getEnvDuration("JWT_TTL", 7*24*time.Hour),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),

		PhonePeBase:          getEnv("PHONEPE_BASE", "https://api-preprod.phonepe.com/apis/pg-sandbox"),
		PhonePeTokenURL:      getEnv("PHONEPE_TOKEN_URL", ""),
		PhonePeClientID:      getEnv("MERCHANT_ID", ""),
		PhonePeClientSecret:  getEnv("SECRET", ""),
		PhonePeClientVersion: getEnv("PHONEPE_CLIENT_VERSION", "1.0"),
		PaymentRedirectURL:   getEnv("REDIRECT_URL", ""),

		FreeUploadLimit: getEnvInt("FREE_UPLOAD_LIMIT", 3),
	}
	if cfg.PhonePeTokenURL == "" {
		cfg.PhonePeTokenURL = strings.TrimRight(cfg.PhonePeBase, "/") + "/v1/oauth/token"
	}

	if env == "production" {
		for key, val := range map[string]string{
			"DATABASE_URL":   cfg.DatabaseURL,
			"ENCRYPTION_KEY": cfg.EncryptionKey,
			"JWT_SECRET":     cfg.JWTSecret,
		} {
			if val == "" {
				telemetry.Error("config.missing", map[string]any{"key": key, "env": env})
			}
		}
	}
	return cfg
}

// IsDevLike reports whether missing infrastructure may fall back to in-memory implementations.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	default:
		return "openrouter"
	}
}

func defaultLogFormat(env string) string {
	if env == "dev" || env == "local" {
		return "console"
	}
	return "json"
}
