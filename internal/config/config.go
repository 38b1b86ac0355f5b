package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppName         string
	Port            string
	AllowedOrigins  string
	CSRFMode        string
	LogLevel        string
	JWTSecret       string
	JWTTTL          time.Duration
	ShutdownTimeout time.Duration
	RenewalInterval time.Duration
	WSDebug         bool
	SecureCookies   bool
	DB              DBConfig
	Redis           RedisConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads .env (when present) and the process environment.
// The returned bool reports whether a .env file was loaded.
func Load() (*Config, bool, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		AppName:         getEnvOrDefault("APP_NAME", "Chainsplit Backend"),
		Port:            getEnvOrDefault("PORT", "8080"),
		AllowedOrigins:  os.Getenv("ALLOWED_ORIGINS"),
		CSRFMode:        getEnvOrDefault("CSRF_MODE", "token"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		JWTTTL:          getDurationOrDefault("JWT_TTL", 7*24*time.Hour),
		ShutdownTimeout: getDurationOrDefault("SHUTDOWN_TIMEOUT", 30*time.Second),
		RenewalInterval: getDurationOrDefault("RENEWAL_CHECK_INTERVAL", time.Hour),
		WSDebug:         os.Getenv("WS_DEBUG") == "true",
		SecureCookies:   os.Getenv("COOKIE_SECURE") == "true",
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
	}

	if cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET")); cfg.JWTSecret == "" {
		return nil, loaded, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, loaded, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
