// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// DatabaseURL selects the postgres store; empty runs the seeded
	// in-memory store for development.
	DatabaseURL string

	// RedisAddr enables the product lookup cache; empty disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWTSecret signs access tokens. Required outside development.
	JWTSecret string
	TokenTTL  time.Duration

	// ManagerPIN authorizes force-deleting finalized invoices.
	ManagerPIN string

	ShutdownTimeout time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		Addr:            getenv("ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret-change-me"),
		ManagerPIN:      getenv("MANAGER_PIN", "1234"),
		TokenTTL:        12 * time.Hour,
		ShutdownTimeout: 10 * time.Second,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("REDIS_DB must be an integer: %w", err)
		}
		cfg.RedisDB = n
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("TOKEN_TTL must be a duration like 12h: %w", err)
		}
		cfg.TokenTTL = d
	}
	if len(cfg.JWTSecret) < 8 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 8 characters")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
