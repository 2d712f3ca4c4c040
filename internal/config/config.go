package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type BotConfig struct {
	BotToken          string
	BotUsername       string
	ChannelID         string
	DatabaseURL       string
	SQLitePath        string
	RedisURL          string
	SessionTTL        time.Duration
	MembershipTimeout time.Duration
	PollTimeout       time.Duration
	Workers           int
	Debug             bool
	Admin             AdminConfig
}

type AdminConfig struct {
	Addr         string
	User         string
	PasswordHash []byte
}

type CLIConfig struct {
	APIBaseURL  string
	BotUsername string
}

// LoadDotEnv reads .env files into the process environment. Variables that
// are already set win. A missing default .env is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func LoadBotFromEnv() (BotConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("ADMIN_ADDR", ":8080")
	}

	cfg := BotConfig{
		BotToken:          strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		BotUsername:       strings.TrimPrefix(strings.TrimSpace(os.Getenv("BOT_USERNAME")), "@"),
		ChannelID:         envDefault("CHANNEL_ID", "@ilimedu"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:        envDefault("SQLITE_PATH", "refgrow.db"),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		SessionTTL:        envDurationDefault("SESSION_TTL", 24*time.Hour),
		MembershipTimeout: envDurationDefault("MEMBERSHIP_TIMEOUT", 5*time.Second),
		PollTimeout:       envDurationDefault("POLL_TIMEOUT", 60*time.Second),
		Workers:           envIntDefault("BOT_WORKERS", 16),
		Debug:             envBoolDefault("BOT_DEBUG", false),
		Admin: AdminConfig{
			Addr: addr,
			User: envDefault("ADMIN_USER", "admin"),
		},
	}
	if cfg.BotToken == "" {
		return cfg, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.BotUsername == "" {
		return cfg, fmt.Errorf("BOT_USERNAME is required")
	}
	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("BOT_WORKERS must be positive")
	}

	hash, err := adminPasswordHash()
	if err != nil {
		return cfg, err
	}
	cfg.Admin.PasswordHash = hash
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL:  strings.TrimRight(envDefault("REFGROW_API_BASE_URL", "http://localhost:8080"), "/"),
		BotUsername: strings.TrimPrefix(strings.TrimSpace(os.Getenv("BOT_USERNAME")), "@"),
	}
}

// adminPasswordHash prefers a precomputed bcrypt hash. An empty result
// disables the admin API routes under /v1.
func adminPasswordHash() ([]byte, error) {
	if h := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")); h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
		return []byte(h), nil
	}
	pw := os.Getenv("ADMIN_PASSWORD")
	if pw == "" {
		return nil, nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("ADMIN_PASSWORD is longer than 72 bytes")
		}
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return h, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
