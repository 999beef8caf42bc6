package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr     string
	AllowedOrigins []string

	PingInterval time.Duration
	PingTimeout  time.Duration

	StatsCapacity int
	LogLevel      string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":3001"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:8000,http://localhost:3000")),
		PingInterval:   getEnvDuration("PING_INTERVAL", 25*time.Second),
		PingTimeout:    getEnvDuration("PING_TIMEOUT", 60*time.Second),
		StatsCapacity:  getEnvInt("CALL_STATS_CAPACITY", 1000),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
