package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `yaml:"port"`
	Store    string `yaml:"store"`
	Notifier string `yaml:"notifier"`
	NATS     struct {
		URL     string `yaml:"url"`
		Stream  string `yaml:"stream"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Postgres struct {
		NotifyChannel string `yaml:"notify_channel"`
	} `yaml:"postgres"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Port:     "8080",
		Store:    "memory",
		Notifier: "local",
	}
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.CORS.AllowedOrigins = []string{"*"}
	return cfg
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

	config.Port = strconv.Itoa(getEnvAsInt("PORT", atoiOr(config.Port, 8080)))
	config.Store = strings.ToLower(getEnv("ROOM_STORE", config.Store))
	config.Notifier = strings.ToLower(getEnv("ROOM_NOTIFIER", config.Notifier))
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)

	switch config.Store {
	case "memory", "postgres":
	default:
		return nil, fmt.Errorf("unknown room store %q", config.Store)
	}
	switch config.Notifier {
	case "local", "nats", "postgres":
	default:
		return nil, fmt.Errorf("unknown notifier %q", config.Notifier)
	}

	return config, nil
}

func atoiOr(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}
