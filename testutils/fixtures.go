package testutils

import (
	"time"

	"github.com/tech-arch1tect/resetkit/config"
	"golang.org/x/crypto/bcrypt"
)

const TestLookupKey = "test-lookup-key-0123456789abcdef0123456789"

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
			URL:  "http://localhost:8080",
		},
		Auth: config.AuthConfig{
			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireNumber:  true,
			RequireSpecial: false,
			BcryptCost:     bcrypt.MinCost,
		},
		Reset: config.ResetConfig{
			Enabled:        true,
			Store:          "database",
			TokenBytes:     32,
			TTL:            20 * time.Minute,
			LookupKey:      TestLookupKey,
			StoreTimeout:   time.Second,
			SweepGrace:     5 * time.Minute,
			RedisKeyPrefix: "test:reset:",
			ConfirmPath:    "/auth/password/edit",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Mail: config.MailConfig{
			FromAddress: "noreply@example.com",
			FromName:    "Test App",
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   true,
			Rate:      5,
			Period:    15 * time.Minute,
			CountMode: config.CountAll,
			Store:     "memory",
		},
	}
}

var TestPasswords = struct {
	Valid       string
	TooShort    string
	NoUpper     string
	NoLower     string
	NoNumber    string
	WithSpecial string
}{
	Valid:       "Password123",
	TooShort:    "Pass1",
	NoUpper:     "password123",
	NoLower:     "PASSWORD123",
	NoNumber:    "Password",
	WithSpecial: "Password123!",
}
