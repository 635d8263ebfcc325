package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".hivemind"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix is the envconfig prefix for overrides.
	EnvPrefix = "HIVEMIND"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("HIVEMIND_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file, overlays environment variables, and resolves
// derived paths. A missing config file is not an error; defaults are used.
// A .env file in the working directory is loaded first, if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment overrides: %w", err)
	}

	if err := resolvePaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadRedditCredentials reads Reddit credentials from the environment.
func LoadRedditCredentials() (RedditCredentials, error) {
	var creds RedditCredentials
	if err := envconfig.Process("", &creds); err != nil {
		return creds, fmt.Errorf("read reddit credentials: %w", err)
	}
	return creds, nil
}

// LoadTwitterCredentials reads Twitter credentials from the environment.
func LoadTwitterCredentials() (TwitterCredentials, error) {
	var creds TwitterCredentials
	if err := envconfig.Process("", &creds); err != nil {
		return creds, fmt.Errorf("read twitter credentials: %w", err)
	}
	return creds, nil
}

func resolvePaths(cfg *Config) error {
	if cfg.Global.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.Global.StateDir = filepath.Join(home, ConfigDir)
	}
	if cfg.Global.DatabasePath == "" {
		cfg.Global.DatabasePath = filepath.Join(cfg.Global.StateDir, "hivemind.db")
	}
	if cfg.Global.PersonalityDir == "" {
		cfg.Global.PersonalityDir = filepath.Join(cfg.Global.StateDir, "personalities")
	}
	return nil
}
