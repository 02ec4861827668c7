package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Platform PlatformConfig
	Gateway  GatewayConfig
	Rooms    RoomsConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/voicerooms?sslmode=disable)
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

// JWTConfig holds JWT signing and validation settings for the control surface.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// PlatformConfig holds settings for the chat platform REST API.
type PlatformConfig struct {
	BaseURL    string
	Token      string
	TimeoutSec int
}

// GatewayConfig holds settings for the platform gateway websocket.
type GatewayConfig struct {
	URL              string
	Token            string
	ReconnectBackoff int // seconds between reconnect attempts
}

// RoomsConfig holds lifecycle defaults applied when a guild policy does not override them.
type RoomsConfig struct {
	DefaultGraceSeconds int // countdown before an empty room is reclaimed
	SweepIntervalSec    int // periodic reconciliation pass
	DefaultCapacity     int
	DefaultBitrateKbps  int
	MaxCapacity         int
	MaxBitrateKbps      int
}

// AWSConfig holds AWS credentials and the audit archive bucket.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	AuditBucket     string
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
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/voicerooms?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "voicerooms"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Platform: PlatformConfig{
			BaseURL:    getEnv("PLATFORM_API_URL", "https://platform.example.com/api/v1"),
			Token:      getEnv("PLATFORM_API_TOKEN", ""),
			TimeoutSec: getEnvInt("PLATFORM_API_TIMEOUT_SEC", 10),
		},
		Gateway: GatewayConfig{
			URL:              getEnv("GATEWAY_WS_URL", "wss://gateway.example.com/ws"),
			Token:            getEnv("GATEWAY_TOKEN", ""),
			ReconnectBackoff: getEnvInt("GATEWAY_RECONNECT_SEC", 5),
		},
		Rooms: RoomsConfig{
			DefaultGraceSeconds: getEnvInt("ROOM_GRACE_SECONDS", 60),
			SweepIntervalSec:    getEnvInt("ROOM_SWEEP_INTERVAL_SEC", 300),
			DefaultCapacity:     getEnvInt("ROOM_DEFAULT_CAPACITY", 0),
			DefaultBitrateKbps:  getEnvInt("ROOM_DEFAULT_BITRATE_KBPS", 64),
			MaxCapacity:         getEnvInt("ROOM_MAX_CAPACITY", 99),
			MaxBitrateKbps:      getEnvInt("ROOM_MAX_BITRATE_KBPS", 384),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AuditBucket:     getEnv("AWS_S3_AUDIT_BUCKET", "voicerooms-audit"),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
