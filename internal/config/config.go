package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

const (
	DefaultSessionTTL      = 24 * time.Hour
	DefaultOnlineWindow    = 15 * time.Minute
	DefaultMaxMessageLimit = 200
	DefaultLoginRate       = 0.2
	DefaultLoginBurst      = 5
)

type Config struct {
	DatabaseDSN     string
	ServerAddr      string
	SigningKey      []byte
	AllowedOrigins  []string
	SessionStore    string
	RedisURL        string
	SessionTTL      time.Duration
	CookieDomain    string
	CookieSecure    bool
	OnlineWindow    time.Duration
	MaxMessageLimit int
	// LoginRate is the sustained number of login/register attempts per
	// second allowed for one client address.
	LoginRate  float64
	LoginBurst int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("empty key")
	}
	return key, nil
}

// NewConfig validates the required settings and fills the rest with
// defaults.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:     databaseDSN,
		ServerAddr:      serverAddr,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		SessionStore:    SessionStoreMemory,
		SessionTTL:      DefaultSessionTTL,
		OnlineWindow:    DefaultOnlineWindow,
		MaxMessageLimit: DefaultMaxMessageLimit,
		LoginRate:       DefaultLoginRate,
		LoginBurst:      DefaultLoginBurst,
	}, nil
}

// Validate checks the optional settings after they have been overridden.
func (c *Config) Validate() error {
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin is required")
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return fmt.Errorf("wildcard origin cannot be combined with credentialed requests")
		}
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis url is required for the %q session store", SessionStoreRedis)
		}
	default:
		return fmt.Errorf("unknown session store %q", c.SessionStore)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.OnlineWindow <= 0 {
		return fmt.Errorf("online window must be positive")
	}
	if c.MaxMessageLimit < 1 {
		return fmt.Errorf("max message limit must be at least 1")
	}
	if c.LoginRate <= 0 || c.LoginBurst < 1 {
		return fmt.Errorf("login rate and burst must be positive")
	}

	return nil
}

// LoadEnv reads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func EnvList(key string) []string {
	v := Env(key, "")
	if v == "" {
		return nil
	}

	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func EnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(Env(key, "")); err == nil {
		return d
	}
	return fallback
}

func EnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(Env(key, "")); err == nil {
		return n
	}
	return fallback
}

func EnvFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(Env(key, ""), 64); err == nil {
		return f
	}
	return fallback
}

func EnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(Env(key, "")); err == nil {
		return b
	}
	return fallback
}
