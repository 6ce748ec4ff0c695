package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds storage service configuration.
type Config struct {
	Port                string
	CORSAllowOrigin     []string
	DatabaseURL         string
	Env                 string
	LogLevel            string
	SubmitRatePerMinute int
}

// ClientConfig holds survey client configuration.
type ClientConfig struct {
	APIURL        string
	HTTPTimeout   time.Duration
	HTTPRetries   int
	Scope         string
	StoreBackend  string
	StoreDir      string
	RedisAddr     string
	RedisTTL      time.Duration
	MongoURI      string
	MongoDatabase string
	ExportStore   string
	ExportDir     string
	AWSRegion     string
	S3Bucket      string
	S3Prefix      string
	SSEKMSKeyID   string
	LogLevel      string
}

// Load reads server configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		CORSAllowOrigin:     splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:         dbURL,
		Env:                 env,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		SubmitRatePerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 60),
	}
}

// LoadClient reads survey client configuration.
func LoadClient() ClientConfig {
	loadEnvFiles(".env", "cmd/.env")

	return ClientConfig{
		APIURL:        getEnv("SURVEY_API_URL", "http://localhost:8080/api/v1"),
		HTTPTimeout:   getEnvDuration("SURVEY_HTTP_TIMEOUT", 10*time.Second),
		HTTPRetries:   getEnvInt("SURVEY_HTTP_RETRIES", 2),
		Scope:         getEnv("SURVEY_SCOPE", "default"),
		StoreBackend:  normalizeBackend(getEnv("SURVEY_STORE", "file")),
		StoreDir:      getEnv("SURVEY_STORE_DIR", "./data/survey"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisTTL:      getEnvDuration("REDIS_TTL", 0),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "dqsurvey"),
		ExportStore:   normalizeStoreType(getEnv("EXPORT_STORE", "local")),
		ExportDir:     getEnv("EXPORT_DIR", "./data/exports"),
		AWSRegion:     getEnv("AWS_REGION", ""),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Prefix:      getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:   getEnv("SSE_KMS_KEY_ID", ""),
		LogLevel:      getEnv("LOG_LEVEL", "warn"),
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
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		log.Printf("config: %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return v
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
	case "development", "dev":
		return "dev"
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

func normalizeBackend(raw string) string {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "memory", "redis", "mongo", "sqlite":
		return v
	default:
		return "file"
	}
}
