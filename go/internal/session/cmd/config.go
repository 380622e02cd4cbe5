package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/planningsync/go/internal/session"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL string `yaml:"server_url"`
	Username  string `yaml:"username"`
	RoomID    string `yaml:"room_id"`

	Cache struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		Profile string `yaml:"profile"`
	} `yaml:"cache"`

	Connection struct {
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		AuthTimeout  time.Duration `yaml:"auth_timeout"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		PingInterval time.Duration `yaml:"ping_interval"`
	} `yaml:"connection"`

	Reconnect struct {
		MaxRetries int           `yaml:"max_retries"`
		BaseDelay  time.Duration `yaml:"base_delay"`
		MaxDelay   time.Duration `yaml:"max_delay"`
		Jitter     float64       `yaml:"jitter"`
	} `yaml:"reconnect"`
}

func defaultConfig() *Config {
	cfg := &Config{ServerURL: "http://localhost:8080"}
	cfg.Cache.Backend = "file"
	cfg.Cache.Path = defaultCachePath()
	cfg.Cache.Profile = "default"

	conn := session.DefaultConnectionConfig()
	cfg.Connection.DialTimeout = conn.DialTimeout
	cfg.Connection.AuthTimeout = conn.AuthTimeout
	cfg.Connection.FetchTimeout = conn.FetchTimeout
	cfg.Connection.PingInterval = conn.PingInterval

	policy := session.DefaultReconnectPolicy()
	cfg.Reconnect.MaxRetries = policy.MaxRetries
	cfg.Reconnect.BaseDelay = policy.BaseDelay
	cfg.Reconnect.MaxDelay = policy.MaxDelay
	cfg.Reconnect.Jitter = policy.Jitter
	return cfg
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "planning-cache.yaml"
	}
	return dir + "/planningsync/cache.yaml"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the optional yaml file and applies environment overrides.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.ServerURL = getEnv("PLANNING_SERVER_URL", config.ServerURL)
	config.Username = getEnv("PLANNING_USERNAME", config.Username)
	config.RoomID = getEnv("PLANNING_ROOM", config.RoomID)
	config.Cache.Backend = strings.ToLower(getEnv("PLANNING_CACHE", config.Cache.Backend))
	config.Cache.Path = getEnv("PLANNING_CACHE_PATH", config.Cache.Path)
	config.Reconnect.MaxRetries = getEnvAsInt("PLANNING_MAX_RETRIES", config.Reconnect.MaxRetries)

	switch config.Cache.Backend {
	case "file", "memory", "postgres":
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
	}
	if config.Reconnect.Jitter < 0 || config.Reconnect.Jitter > 1 {
		return nil, fmt.Errorf("reconnect jitter %v outside [0, 1]", config.Reconnect.Jitter)
	}

	return config, nil
}

func (c *Config) connectionConfig() session.ConnectionConfig {
	conn := session.DefaultConnectionConfig()
	conn.DialTimeout = c.Connection.DialTimeout
	conn.AuthTimeout = c.Connection.AuthTimeout
	conn.FetchTimeout = c.Connection.FetchTimeout
	conn.PingInterval = c.Connection.PingInterval
	return conn
}

func (c *Config) reconnectPolicy() session.ReconnectPolicy {
	return session.ReconnectPolicy{
		MaxRetries: c.Reconnect.MaxRetries,
		BaseDelay:  c.Reconnect.BaseDelay,
		MaxDelay:   c.Reconnect.MaxDelay,
		Jitter:     c.Reconnect.Jitter,
	}
}
