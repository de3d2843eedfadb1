package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fixed policy limits. These are part of the API contract and are not configurable.
const (
	MaxUploadBytes  int64 = 25 * 1024 * 1024
	UploadTimeout         = 60 * time.Second
	DownloadTimeout       = 30 * time.Second
	ListPageSize          = 100
)

// Blob backends.
const (
	BlobBackendGridFS = "gridfs"
	BlobBackendS3     = "s3"
)

// DefaultGroqModels is the ordered fallback list tried by the text backend.
var DefaultGroqModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
	"llama3-70b-8192",
	"mixtral-8x7b-32768",
}

// Config holds all configuration for the application.
type Config struct {
	// MongoDB
	MongoURI            string
	MongoDbName         string
	MongoMinPoolSize    uint64
	MongoMaxPoolSize    uint64
	MongoConnectRetries int
	MongoConnectDelay   time.Duration

	// Server
	ApiPort       string
	AllowedOrigin string
	ShutdownGrace time.Duration
	LogLevel      string

	// AI backends. Missing keys are reported when an extraction is requested.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	GroqAPIKey    string
	GroqModels    []string
	GroqBaseURL   string
	AITimeout     time.Duration

	// Blob storage
	BlobBackend        string
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AwsS3Endpoint      string

	// Redis (optional, shared rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Extraction quota per client
	ExtractRateLimit  int
	ExtractRateWindow time.Duration
}

// Load configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		secs, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s: must be positive", key)
		}
		return time.Duration(secs) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "invoicedesk")
	cfg.ApiPort = getEnv("PORT", "5000")
	cfg.AllowedOrigin = getEnv("ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.GeminiAPIKey = strings.TrimSpace(getEnv("GEMINI_API_KEY", ""))
	cfg.GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.0-flash")
	cfg.GeminiBaseURL = getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	cfg.GroqAPIKey = strings.TrimSpace(getEnv("GROQ_API_KEY", ""))
	cfg.GroqBaseURL = getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	cfg.GroqModels = parseList(getEnv("GROQ_MODELS", ""))
	if len(cfg.GroqModels) == 0 {
		cfg.GroqModels = append([]string(nil), DefaultGroqModels...)
	}

	cfg.BlobBackend = strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendGridFS))
	if cfg.BlobBackend != BlobBackendGridFS && cfg.BlobBackend != BlobBackendS3 {
		return nil, fmt.Errorf("invalid BLOB_BACKEND: %q (want %q or %q)", cfg.BlobBackend, BlobBackendGridFS, BlobBackendS3)
	}
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AwsS3Endpoint = getEnv("AWS_S3_ENDPOINT", "")
	if cfg.BlobBackend == BlobBackendS3 && cfg.AwsS3Bucket == "" {
		return nil, fmt.Errorf("missing required environment variable: AWS_S3_BUCKET (BLOB_BACKEND=s3)")
	}

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	minPool, err := strconv.ParseUint(getEnv("MONGO_MIN_POOL_SIZE", "2"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MONGO_MIN_POOL_SIZE: %w", err)
	}
	maxPool, err := strconv.ParseUint(getEnv("MONGO_MAX_POOL_SIZE", "10"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MONGO_MAX_POOL_SIZE: %w", err)
	}
	if maxPool == 0 || minPool > maxPool {
		return nil, fmt.Errorf("invalid mongo pool bounds: min=%d max=%d", minPool, maxPool)
	}
	cfg.MongoMinPoolSize = minPool
	cfg.MongoMaxPoolSize = maxPool

	cfg.MongoConnectRetries, err = strconv.Atoi(getEnv("MONGO_CONNECT_ATTEMPTS", "5"))
	if err != nil || cfg.MongoConnectRetries < 1 {
		return nil, fmt.Errorf("invalid MONGO_CONNECT_ATTEMPTS: %q", getEnv("MONGO_CONNECT_ATTEMPTS", "5"))
	}
	if cfg.MongoConnectDelay, err = getSeconds("MONGO_CONNECT_DELAY_SECONDS", "5"); err != nil {
		return nil, err
	}
	if cfg.AITimeout, err = getSeconds("AI_TIMEOUT_SECONDS", "60"); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace, err = getSeconds("SHUTDOWN_GRACE_SECONDS", "10"); err != nil {
		return nil, err
	}

	cfg.ExtractRateLimit, err = strconv.Atoi(getEnv("EXTRACT_RATE_LIMIT", "20"))
	if err != nil || cfg.ExtractRateLimit < 1 {
		return nil, fmt.Errorf("invalid EXTRACT_RATE_LIMIT: %q", getEnv("EXTRACT_RATE_LIMIT", "20"))
	}
	if cfg.ExtractRateWindow, err = getSeconds("EXTRACT_RATE_WINDOW_SECONDS", "60"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
