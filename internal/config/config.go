package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the settings the server needs to run.
type AppConfig struct {
	ListenAddr string
	Port       string
	GinMode    string

	DatabaseDriver string
	DatabasePath   string
	DatabaseURL    string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SessionSecret   string

	RedisAddr     string
	RedisPassword string

	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	FacebookClientID     string
	FacebookClientSecret string
	FacebookRedirectURL  string

	UploadDir     string
	UploadURLPath string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	CORSAllowedOrigins []string

	AdminEmail    string
	AdminPassword string

	LogLevel        string
	LogFormat       string
	RecountSchedule string
}

// Load reads an optional .env file and then the environment, filling in
// development defaults for anything missing.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	port := envOrDefault("PORT", "3000")
	cfg := AppConfig{
		Port:       port,
		ListenAddr: envOrDefault("LISTEN_ADDR", fmt.Sprintf(":%s", port)),
		GinMode:    envOrDefault("GIN_MODE", "release"),

		DatabaseDriver: strings.ToLower(envOrDefault("DATABASE_DRIVER", "sqlite")),
		DatabasePath:   envOrDefault("DATABASE_PATH", "data/middy-corner.db"),
		DatabaseURL:    env("DATABASE_URL"),

		JWTSecret:     envOrDefault("JWT_SECRET", "middy-corner-dev-secret"),
		SessionSecret: envOrDefault("SESSION_SECRET", "middy-corner-dev-session"),

		RedisAddr:     env("REDIS_ADDR"),
		RedisPassword: env("REDIS_PASSWORD"),

		GoogleClientID:       env("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   env("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:    env("GOOGLE_REDIRECT_URL"),
		FacebookClientID:     env("FACEBOOK_CLIENT_ID"),
		FacebookClientSecret: env("FACEBOOK_CLIENT_SECRET"),
		FacebookRedirectURL:  env("FACEBOOK_REDIRECT_URL"),

		UploadDir:     envOrDefault("UPLOAD_DIR", "uploads"),
		UploadURLPath: envOrDefault("UPLOAD_URL_PATH", "/uploads"),

		S3Endpoint:  env("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey: env("S3_ACCESS_KEY"),
		S3SecretKey: env("S3_SECRET_KEY"),
		S3Bucket:    env("S3_BUCKET"),
		S3PublicURL: env("S3_PUBLIC_URL"),

		CORSAllowedOrigins: splitList(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		AdminEmail:    env("ADMIN_EMAIL"),
		AdminPassword: env("ADMIN_PASSWORD"),

		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "console"),
		RecountSchedule: envOrDefault("RECOUNT_SCHEDULE", "@every 1m"),
	}

	var err error
	if cfg.AccessTokenTTL, err = durationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return AppConfig{}, err
	}
	if cfg.RefreshTokenTTL, err = durationOrDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return AppConfig{}, err
	}

	switch cfg.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return AppConfig{}, fmt.Errorf("DATABASE_URL must be set when DATABASE_DRIVER=postgres")
		}
	default:
		return AppConfig{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if cfg.GinMode == "release" && cfg.JWTSecret == "middy-corner-dev-secret" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must be set in release mode")
	}

	return cfg, nil
}

// S3Enabled reports whether media should go to object storage instead of disk.
func (c AppConfig) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3Bucket != ""
}

// DatabaseDSN is the connection string for the configured driver.
func (c AppConfig) DatabaseDSN() string {
	if c.DatabaseDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOrDefault(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	raw := env(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
