package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	ConfigDir       string
	DataDir         string
	JanitorInterval time.Duration
}

func Load() Config {
	godotenv.Load() // .env опционален, ошибку игнорируем

	return Config{
		Port:            getEnv("PORT", "8080"),
		ConfigDir:       getEnv("CONFIG_DIR", "./config"),
		DataDir:         getEnv("DATA_DIR", "./data"),
		JanitorInterval: getDuration("JANITOR_INTERVAL", time.Minute),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
