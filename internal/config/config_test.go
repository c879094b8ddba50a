package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:     "postgres://localhost/relay",
		AuthMode:        AuthModeOpaque,
		JoinAuth:        JoinAuthOpen,
		DeliveryMode:    DeliveryModeBroadcast,
		DeliveryTimeout: 250 * time.Millisecond,
		WriteTimeout:    5 * time.Second,
		SessionQueue:    64,
		ScanInterval:    30 * time.Second,
		ScanTimeout:     10 * time.Second,
		DedupPolicy:     DedupNone,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/relay")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != "4000" {
		t.Fatalf("expected default port 4000, got %s", cfg.HTTPPort)
	}
	if cfg.ScanInterval != 30*time.Second {
		t.Fatalf("expected 30s scan interval, got %v", cfg.ScanInterval)
	}
	if cfg.DeliveryMode != DeliveryModeBroadcast || cfg.DedupPolicy != DedupNone {
		t.Fatalf("unexpected defaults: mode=%s dedup=%s", cfg.DeliveryMode, cfg.DedupPolicy)
	}
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"group mode", func(c *Config) { c.DeliveryMode = DeliveryModeGroup }, true},
		{"unknown mode", func(c *Config) { c.DeliveryMode = "rooms" }, false},
		{"redis dedup without addr", func(c *Config) { c.DedupPolicy = DedupRedis }, false},
		{"redis dedup with addr", func(c *Config) { c.DedupPolicy = DedupRedis; c.RedisAddr = "localhost:6379" }, true},
		{"jwt without secret", func(c *Config) { c.AuthMode = AuthModeJWT }, false},
		{"linked join", func(c *Config) { c.JoinAuth = JoinAuthLinked }, true},
		{"zero interval", func(c *Config) { c.ScanInterval = 0 }, false},
		{"zero queue", func(c *Config) { c.SessionQueue = 0 }, false},
		{"negative emotion limit", func(c *Config) { c.EmotionLimit = -1 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
