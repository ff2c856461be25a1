package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultServerURL = "http://localhost:3000"

// Config represents the config.toml file.
type Config struct {
	// ServerURL is the backend address, e.g. https://taskify.example.com.
	ServerURL string `toml:"server-url"`
	// Timezone names the zone used to read due dates without one, e.g.
	// Europe/Berlin. Empty means the system zone.
	Timezone string `toml:"timezone"`
}

// configDir returns where config.toml and session.json live.
// $TASKIFY_CONFIG_DIR overrides ~/.config/taskify.
func configDir() (string, error) {
	if dir := os.Getenv("TASKIFY_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "taskify"), nil
}

// loadConfig reads path. A missing file yields an empty config.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveServerURL picks the first non-empty of flag, environment and
// config file, falling back to the local default.
func resolveServerURL(flag, env string, cfg *Config) string {
	for _, candidate := range []string{flag, env, cfg.ServerURL} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return defaultServerURL
}
