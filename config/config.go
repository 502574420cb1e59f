package config

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Reset     ResetConfig     `envPrefix:"RESET_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"resetkit"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Host           string        `env:"HOST" envDefault:"localhost"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"`
	DSN             string        `env:"DSN" envDefault:"resetkit.db"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

type RedisConfig struct {
	Address      string        `env:"ADDRESS" envDefault:"localhost:6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB" envDefault:"0"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
}

// AuthConfig holds the password policy applied when a reset sets a new credential.
type AuthConfig struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"false"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"10"`
}

type ResetConfig struct {
	Enabled              bool          `env:"ENABLED" envDefault:"true"`
	Store                string        `env:"STORE" envDefault:"database"`
	TokenBytes           int           `env:"TOKEN_BYTES" envDefault:"32"`
	TTL                  time.Duration `env:"TTL" envDefault:"20m"`
	LookupKey            string        `env:"LOOKUP_KEY"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	SweepGrace           time.Duration `env:"SWEEP_GRACE" envDefault:"5m"`
	RedisKeyPrefix       string        `env:"REDIS_KEY_PREFIX" envDefault:"resetkit:reset:"`
	ConfirmPath          string        `env:"CONFIRM_PATH" envDefault:"/auth/password/edit"`
	AllowedRedirectHosts []string      `env:"ALLOWED_REDIRECT_HOSTS" envSeparator:","`
	AsyncDelivery        bool          `env:"ASYNC_DELIVERY" envDefault:"true"`
}

type MailConfig struct {
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"tls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"noreply@example.com"`
	FromName     string `env:"FROM_NAME"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type SessionConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Store    string        `env:"STORE" envDefault:"memory"`
	Name     string        `env:"NAME" envDefault:"resetkit_session"`
	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"24h"`
	Path     string        `env:"PATH" envDefault:"/"`
	Domain   string        `env:"DOMAIN"`
	Secure   bool          `env:"SECURE" envDefault:"false"`
	HttpOnly bool          `env:"HTTP_ONLY" envDefault:"true"`
	SameSite string        `env:"SAME_SITE" envDefault:"lax"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Rate      int           `env:"RATE" envDefault:"5"`
	Period    time.Duration `env:"PERIOD" envDefault:"15m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all"`
	Store     string        `env:"STORE" envDefault:"memory"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		if err := Validate(c); err != nil {
			return err
		}
	}

	return nil
}

func Validate(cfg *Config) error {
	if err := validateResetConfig(&cfg.Reset); err != nil {
		return err
	}
	// A record swept while a request is still consuming it would turn a success into NotFound.
	if cfg.Reset.SweepGrace < cfg.Server.RequestTimeout {
		return fmt.Errorf("reset sweep grace (%s) must be at least the request timeout (%s)",
			cfg.Reset.SweepGrace, cfg.Server.RequestTimeout)
	}
	if _, err := url.Parse(cfg.App.URL); err != nil {
		return fmt.Errorf("app URL is invalid: %w", err)
	}
	switch cfg.RateLimit.Store {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("rate limit store must be: memory or redis")
	}
	return nil
}

// RedisRequired reports whether any configured component stores state in redis.
func (c *Config) RedisRequired() bool {
	return c.Reset.Store == "redis" || (c.RateLimit.Enabled && c.RateLimit.Store == "redis")
}

func validateResetConfig(cfg *ResetConfig) error {
	if cfg.TokenBytes < 16 {
		return fmt.Errorf("reset token must be at least 16 bytes (128 bits)")
	}
	if cfg.TokenBytes > 128 {
		return fmt.Errorf("reset token cannot exceed 128 bytes")
	}
	if cfg.TTL <= 0 {
		return fmt.Errorf("reset token TTL must be positive")
	}
	if cfg.LookupKey != "" && len(cfg.LookupKey) < 32 {
		return fmt.Errorf("reset lookup key must be at least 32 characters long")
	}
	switch cfg.Store {
	case "database", "redis":
	default:
		return fmt.Errorf("reset store must be: database or redis")
	}
	if cfg.SweepGrace < 0 {
		return fmt.Errorf("reset sweep grace cannot be negative")
	}
	return nil
}
