package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	DeliveryModeBroadcast = "broadcast"
	DeliveryModeGroup     = "group"

	DedupNone   = "none"
	DedupMemory = "memory"
	DedupRedis  = "redis"

	AuthModeOpaque = "opaque"
	AuthModeJWT    = "jwt"

	JoinAuthOpen   = "open"
	JoinAuthLinked = "linked"
)

// Config centraliza la configuración del relay.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"4000"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	ClientOrigin  string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AuthMode  string `env:"RELAY_AUTH_MODE" envDefault:"opaque"`
	JWTSecret string `env:"JWT_SECRET"`
	JoinAuth  string `env:"RELAY_JOIN_AUTH" envDefault:"open"`

	DeliveryMode    string        `env:"RELAY_DELIVERY_MODE" envDefault:"broadcast"`
	DeliveryTimeout time.Duration `env:"RELAY_DELIVERY_TIMEOUT" envDefault:"250ms"`
	WriteTimeout    time.Duration `env:"RELAY_WRITE_TIMEOUT" envDefault:"5s"`
	SessionQueue    int           `env:"RELAY_SESSION_QUEUE" envDefault:"64"`

	ScanInterval time.Duration `env:"RELAY_SCAN_INTERVAL" envDefault:"30s"`
	ScanTimeout  time.Duration `env:"RELAY_SCAN_TIMEOUT" envDefault:"10s"`
	DedupPolicy  string        `env:"RELAY_DEDUP_POLICY" envDefault:"none"`
	DedupWindow  time.Duration `env:"RELAY_DEDUP_WINDOW" envDefault:"15m"`

	// EmotionLimit en 0 desactiva el límite.
	EmotionLimit  int           `env:"RELAY_EMOTION_LIMIT" envDefault:"0"`
	EmotionWindow time.Duration `env:"RELAY_EMOTION_WINDOW" envDefault:"1m"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa los valores enumerados y los límites de tiempo.
func (c *Config) Validate() error {
	switch c.DeliveryMode {
	case DeliveryModeBroadcast, DeliveryModeGroup:
	default:
		return fmt.Errorf("invalid RELAY_DELIVERY_MODE %q", c.DeliveryMode)
	}
	switch c.DedupPolicy {
	case DedupNone, DedupMemory:
	case DedupRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("RELAY_DEDUP_POLICY=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("invalid RELAY_DEDUP_POLICY %q", c.DedupPolicy)
	}
	switch c.AuthMode {
	case AuthModeOpaque:
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("RELAY_AUTH_MODE=jwt requires JWT_SECRET")
		}
	default:
		return fmt.Errorf("invalid RELAY_AUTH_MODE %q", c.AuthMode)
	}
	switch c.JoinAuth {
	case JoinAuthOpen, JoinAuthLinked:
	default:
		return fmt.Errorf("invalid RELAY_JOIN_AUTH %q", c.JoinAuth)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("RELAY_SCAN_INTERVAL must be positive")
	}
	if c.DeliveryTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("delivery and write timeouts must be positive")
	}
	if c.EmotionLimit < 0 {
		return fmt.Errorf("RELAY_EMOTION_LIMIT must not be negative")
	}
	if c.SessionQueue <= 0 {
		return fmt.Errorf("RELAY_SESSION_QUEUE must be positive")
	}
	return nil
}
