package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.Addr)
	}
	if cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("expected default token ttl 12h, got %s", cfg.TokenTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.TokenTTL != time.Hour || cfg.RedisDB != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TOKEN_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad TOKEN_TTL")
	}
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("REDIS_DB", "three")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad REDIS_DB")
	}
	t.Setenv("REDIS_DB", "")
	t.Setenv("JWT_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for short JWT_SECRET")
	}
}
