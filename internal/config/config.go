package config

import (
	"errors"
	"os"
	"time"
)

// Config holds runtime configuration for both processes. A single struct is
// loaded from the environment; the bot and the auth server each validate the
// subset they actually need.
type Config struct {
	TelegramToken  string
	InternalAPIKey string
	AuthServerURL  string

	RedisURL    string
	DatabaseURL string
	DataDir     string

	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string
	ListenAddr         string

	ReminderInterval time.Duration
}

// FromEnv loads configuration from environment variables. Store selection:
// DATABASE_URL picks Postgres, REDIS_URL picks Redis, otherwise JSON files
// under DATA_DIR are used.
func FromEnv() (*Config, error) {
	c := &Config{
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		InternalAPIKey:     os.Getenv("INTERNAL_API_KEY"),
		AuthServerURL:      os.Getenv("AUTH_SERVER_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DataDir:            os.Getenv("DATA_DIR"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:   os.Getenv("OAUTH_REDIRECT_URL"),
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
	}
	if c.InternalAPIKey == "" {
		return nil, errors.New("INTERNAL_API_KEY is not set")
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	c.ReminderInterval = 15 * time.Minute
	if v := os.Getenv("REMINDER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.New("REMINDER_INTERVAL is not a valid duration")
		}
		c.ReminderInterval = d
	}
	return c, nil
}

// ValidateBot checks the variables the bot process cannot run without.
func (c *Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is not set")
	}
	if c.AuthServerURL == "" {
		return errors.New("AUTH_SERVER_URL is not set")
	}
	return nil
}

// ValidateAuthServer checks the variables the auth server cannot run without.
func (c *Config) ValidateAuthServer() error {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return errors.New("GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET are not set")
	}
	if c.OAuthRedirectURL == "" {
		return errors.New("OAUTH_REDIRECT_URL is not set")
	}
	return nil
}
