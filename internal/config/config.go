package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// DefaultEnvFile is read when CHAT_WS_URL is not set in the environment
const DefaultEnvFile = "config/app.env"

// ErrMissingToken is returned by RequireToken when no bearer token was configured
var ErrMissingToken = errors.New("chat token is required (CHAT_TOKEN or MongoDB config)")

// ChatConfig holds the chat WebSocket endpoint configuration.
type ChatConfig struct {
	WSURL              string        `env:"CHAT_WS_URL"`
	Token              string        `env:"CHAT_TOKEN"`
	InsecureSkipVerify bool          `env:"CHAT_INSECURE_SKIP_VERIFY" envDefault:"false"`
	HandshakeTimeout   time.Duration `env:"CHAT_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	PingInterval       time.Duration `env:"CHAT_PING_INTERVAL" envDefault:"0s"`
	CloseGrace         time.Duration `env:"CHAT_CLOSE_GRACE" envDefault:"5s"`
	UseProxy           bool          `env:"USE_PROXY" envDefault:"false"`
	ProxyAddr          string        `env:"PROXY_ADDR"`
}

// RedisConfig holds Redis connection settings. Empty Addr disables the event trail.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"`
	Password  string `env:"REDIS_PASSWORD"`
	EventsKey string `env:"REDIS_EVENTS_KEY" envDefault:"list:chatprobe:events"`
}

// MongoDBConfig holds MongoDB settings. Empty Addr disables session records.
type MongoDBConfig struct {
	Addr     string `env:"MONGODB_ADDR"`
	Database string `env:"MONGODB_DATABASE" envDefault:"chatprobe"`
}

// AppConfig aggregates all runtime configuration of the probe.
type AppConfig struct {
	Chat            ChatConfig
	Redis           RedisConfig
	MongoDB         MongoDBConfig
	MetricsHTTPAddr string `env:"METRICS_HTTP_ADDR"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadFromEnv loads configuration from environment variables.
// If CHAT_WS_URL is not set, it will try to load from config/app.env first.
func LoadFromEnv() (AppConfig, error) {
	if os.Getenv("CHAT_WS_URL") == "" {
		loadEnvFile(DefaultEnvFile)
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *AppConfig) Validate() error {
	if c.Chat.WSURL == "" {
		return fmt.Errorf("CHAT_WS_URL is required")
	}
	u, err := url.Parse(c.Chat.WSURL)
	if err != nil {
		return fmt.Errorf("invalid chat URL %q: %w", c.Chat.WSURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid chat URL scheme %q (must be ws or wss)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("chat URL %q has no host", c.Chat.WSURL)
	}

	if c.Chat.UseProxy && c.Chat.ProxyAddr == "" {
		return fmt.Errorf("PROXY_ADDR is required when USE_PROXY is enabled")
	}
	if c.Chat.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.Chat.PingInterval < 0 {
		return fmt.Errorf("ping interval must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// RequireToken fails when no bearer token is available
func (c *AppConfig) RequireToken() error {
	if strings.TrimSpace(c.Chat.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile(filePath string) {
	absPath := filePath
	if !filepath.IsAbs(filePath) {
		if wd, err := os.Getwd(); err == nil {
			// Try workspace root
			rootPath := filepath.Join(wd, "../..", filePath)
			if _, err := os.Stat(rootPath); err == nil {
				absPath = rootPath
			} else {
				curPath := filepath.Join(wd, filePath)
				if _, err := os.Stat(curPath); err == nil {
					absPath = curPath
				}
			}
		}
	}

	file, err := os.Open(absPath)
	if err != nil {
		return // File not found, use defaults or existing env vars
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := unquote(strings.TrimSpace(parts[1]))

		// Only set if not already in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// unquote strips one pair of matching surrounding quotes
func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
