package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment
type Config struct {
	Port    string
	GinMode string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	PermissionCacheTTL time.Duration

	CORSOrigins []string

	LogLevel  string
	LogFormat string

	// used by the settings client
	APIBaseURL string
	APITimeout time.Duration
}

// Load reads configs/.env if present, then the process environment
func Load() (Config, bool) {
	dotenvLoaded := godotenv.Load("configs/.env") == nil

	cfg := Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "schoolhub"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		PermissionCacheTTL: getDuration("PERMISSION_CACHE_TTL", 5*time.Minute),

		CORSOrigins: getList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		APITimeout: getDuration("API_TIMEOUT", 15*time.Second),
	}
	return cfg, dotenvLoaded
}

// DSN builds the postgres connection string
func (c Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// IsRelease reports whether gin runs in release mode
func (c Config) IsRelease() bool {
	return c.GinMode == "release"
}

// JWTKey returns the token signing key. Outside release mode a missing
// JWT_SECRET falls back to a fixed development key.
func (c Config) JWTKey() ([]byte, error) {
	if c.JWTSecret != "" {
		return []byte(c.JWTSecret), nil
	}
	if c.IsRelease() {
		return nil, errors.New("JWT_SECRET is required in release mode")
	}
	return []byte("default_super_secret_key"), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// accepts Go durations ("90s") or plain seconds ("90")
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
