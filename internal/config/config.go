package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr      string
	DBDSN     string
	RedisAddr string
	JWTSecret string
	BaseURL   string

	SweepInterval time.Duration // presence sweep cadence
	StaleTimeout  time.Duration // online -> offline after this much silence
	TypingIdle    time.Duration // typing signal lifetime
	FanoutTimeout time.Duration // per-subscriber delivery budget
}

func Load() *Config {
	return &Config{
		Addr:          getEnv("ADDR", ":8080"),
		DBDSN:         os.Getenv("DB_DSN"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		BaseURL:       getEnv("BASE_URL", "http://localhost:8080"),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL_SECONDS", 30),
		StaleTimeout:  getEnvDuration("STALE_TIMEOUT_SECONDS", 90),
		TypingIdle:    getEnvDuration("TYPING_IDLE_SECONDS", 3),
		FanoutTimeout: getEnvMillis("FANOUT_TIMEOUT_MS", 250),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		n = defaultSeconds
	}
	return time.Duration(n) * time.Second
}

func getEnvMillis(key string, defaultMillis int) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		n = defaultMillis
	}
	return time.Duration(n) * time.Millisecond
}
