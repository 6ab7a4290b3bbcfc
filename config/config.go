package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	AWS      AWSConfig
	Match    MatchConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	Env                string // development, staging, production
}

// Secure reports whether cookies must carry the Secure flag (everywhere except local development).
func (s ServerConfig) Secure() bool {
	return s.Env != "development"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/findthem?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds session credential settings.
type AuthConfig struct {
	JWTSecret   string
	ExpireHours int
	CookieName  string
	// DemoPasswordBypass accepts any password at sign-in. Development only; never enable in production.
	DemoPasswordBypass bool
}

// AWSConfig holds AWS credentials and the case photo bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	PhotosBucket         string
	PresignExpireMinutes int
}

// MatchConfig controls the photo-match pipeline.
type MatchConfig struct {
	Mode                string // "embedding" or "stub"
	MinScore            float64
	Limit               int
	MaxUploadBytes      int64
	EmbeddingServiceURL string // optional remote feature extractor; empty uses the local one
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			Env:                strings.ToLower(getEnv("APP_ENV", "production")),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "findthem"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours:        getEnvInt("JWT_EXPIRE_HOURS", 7*24),
			CookieName:         getEnv("AUTH_COOKIE_NAME", "auth-token"),
			DemoPasswordBypass: getEnvBool("AUTH_DEMO_PASSWORD_BYPASS", false),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PhotosBucket:         getEnv("AWS_S3_PHOTOS_BUCKET", "findthem-case-photos"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Match: MatchConfig{
			Mode:                strings.ToLower(getEnv("MATCH_MODE", "embedding")),
			MinScore:            getEnvFloat("MATCH_MIN_SCORE", 0.6),
			Limit:               getEnvInt("MATCH_LIMIT", 10),
			MaxUploadBytes:      int64(getEnvInt("MATCH_MAX_UPLOAD_BYTES", 10*1024*1024)),
			EmbeddingServiceURL: getEnv("EMBEDDING_SERVICE_URL", ""),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Match.Mode != "embedding" && c.Match.Mode != "stub" {
		return fmt.Errorf("MATCH_MODE must be embedding or stub, got %q", c.Match.Mode)
	}
	if c.Auth.DemoPasswordBypass && c.Server.Env == "production" {
		return fmt.Errorf("AUTH_DEMO_PASSWORD_BYPASS cannot be enabled when APP_ENV=production")
	}
	if c.Auth.ExpireHours <= 0 {
		return fmt.Errorf("JWT_EXPIRE_HOURS must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
