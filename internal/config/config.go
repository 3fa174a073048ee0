package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ReviewQueueCacheTTL    time.Duration
	AutosaveMinInterval    time.Duration
	AutosaveDebounce       time.Duration
	UploadMaxSizeMB        int
	UploadMaxAttempts      int
	UploadRetryBackoff     time.Duration
	StepConfigPath         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FOLIO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Folio API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "folio/attachments")
	v.SetDefault("review.cache_ttl", "2m")
	v.SetDefault("autosave.min_interval", "5s")
	v.SetDefault("autosave.debounce", "1s")
	v.SetDefault("upload.max_size_mb", 50)
	v.SetDefault("upload.max_attempts", 3)
	v.SetDefault("upload.retry_backoff", "1s")

	cacheTTL, err := parseDuration(v.GetString("review.cache_ttl"), 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid review cache ttl: %w", err)
	}

	minInterval, err := parseDuration(v.GetString("autosave.min_interval"), 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid autosave min interval: %w", err)
	}

	debounce, err := parseDuration(v.GetString("autosave.debounce"), time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid autosave debounce: %w", err)
	}

	backoff, err := parseDuration(v.GetString("upload.retry_backoff"), time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid upload retry backoff: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ReviewQueueCacheTTL:    cacheTTL,
		AutosaveMinInterval:    minInterval,
		AutosaveDebounce:       debounce,
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		UploadMaxAttempts:      v.GetInt("upload.max_attempts"),
		UploadRetryBackoff:     backoff,
		StepConfigPath:         v.GetString("steps.config_path"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 50
	}

	if cfg.UploadMaxAttempts <= 0 {
		cfg.UploadMaxAttempts = 3
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}

	return time.ParseDuration(raw)
}
