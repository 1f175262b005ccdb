package infra

import (
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	StoragePath    string
	StorageBaseURL string
	GeoIPDBPath    string

	ImageAPIKey  string
	ImageBaseURL string
	ImageModel   string

	MeshyAPIKey     string
	MeshyBaseURL    string
	MeshyWebhookURL string

	GenerateTimeout time.Duration

	PollInterval    time.Duration
	PollBackoff     time.Duration
	PollMaxAttempts int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. DATABASE_URL is optional: without it the service
// runs on the in-memory store, which is enough for local development.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoragePath:    getEnv("STORAGE_PATH", "generated_assets"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),

		ImageAPIKey:  os.Getenv("IMAGE_API_KEY"),
		ImageBaseURL: getEnv("IMAGE_BASE_URL", "https://api.openai.com/v1"),
		ImageModel:   getEnv("IMAGE_MODEL", "dall-e-3"),

		MeshyAPIKey:     os.Getenv("MESHY_API_KEY"),
		MeshyBaseURL:    getEnv("MESHY_BASE_URL", "https://api.meshy.ai/v2"),
		MeshyWebhookURL: os.Getenv("MESHY_WEBHOOK_URL"),

		GenerateTimeout: time.Second * time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 120)),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 15)),
		PollBackoff:     time.Second * time.Duration(getEnvInt("POLL_BACKOFF_SECONDS", 5)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 240),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", "http://localhost:"+cfg.Port+"/storage")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
