// Package config decodes process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port  string `env:"PORT,default=8080"`
	Store string `env:"STORE,default=postgres"`

	// DatabaseURL wins over the discrete PG_* settings when set.
	DatabaseURL string `env:"DATABASE_URL"`
	PGUser      string `env:"POSTGRES_USER"`
	PGPassword  string `env:"POSTGRES_PASSWORD"`
	PGHost      string `env:"PG_HOST,default=localhost"`
	PGPort      string `env:"PG_PORT,default=5432"`
	PGDatabase  string `env:"PG_DATABASE"`
	Migrate     bool   `env:"DB_MIGRATE,default=true"`

	// Without RedisAddr notifications stay inside the process.
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisDB      int    `env:"REDIS_DB,default=0"`
	RedisChannel string `env:"REDIS_CHANNEL,default=sipstreak:friend_events"`

	TokenExpireTime   string `env:"TOKEN_EXPIRE_TIME,default=72h"`
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	// Per-user budget for sendFriendRequest.
	FriendRequestRate  float64 `env:"FRIEND_REQUEST_RATE,default=1"`
	FriendRequestBurst int     `env:"FRIEND_REQUEST_BURST,default=5"`

	WSOriginPatterns string `env:"WS_ORIGIN_PATTERNS,default=*"`
}

// Load decodes the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" && c.PGDatabase == "" {
			return errors.New("postgres store needs DATABASE_URL or PG_DATABASE")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		return errors.New("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	if c.FriendRequestRate <= 0 || c.FriendRequestBurst <= 0 {
		return errors.New("FRIEND_REQUEST_RATE and FRIEND_REQUEST_BURST must be positive")
	}
	return nil
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PGUser, c.PGPassword),
		Host:   c.PGHost + ":" + c.PGPort,
		Path:   "/" + c.PGDatabase,
	}
	return u.String()
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// OriginPatterns splits WSOriginPatterns on commas.
func (c *Config) OriginPatterns() []string {
	var out []string
	for _, p := range strings.Split(c.WSOriginPatterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return logger, nil
}
