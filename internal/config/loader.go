package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/tally/config.yaml",
	"/etc/tally/config.yml",
}

// Load loads the configuration from the specified file or default locations.
// Environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	config := Defaults()

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		slog.Debug("loading config", slog.String("path", configPath))
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		slog.Debug("no config file found, using defaults")
	}

	applyEnv(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFromDefaults loads configuration using only defaults and environment variables
func LoadFromDefaults() (*Config, error) {
	return Load("")
}

func applyEnv(config *Config) {
	if v := os.Getenv("TALLY_API_URL"); v != "" {
		config.API.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		config.Web.SessionSecret = v
	}
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	u, err := url.Parse(config.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", config.API.BaseURL)
	}

	switch config.Auth.RefreshTransport {
	case "body", "cookie":
	default:
		return fmt.Errorf("auth.refresh_transport must be body or cookie, got %q", config.Auth.RefreshTransport)
	}

	if config.Auth.RefreshTimeout <= 0 {
		return fmt.Errorf("auth.refresh_timeout must be positive")
	}

	switch config.Store.Kind {
	case "memory":
	case "redis":
		if config.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when store.kind is redis")
		}
	default:
		return fmt.Errorf("store.kind must be memory or redis, got %q", config.Store.Kind)
	}

	if config.Web.Port < 1 || config.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 1 and 65535")
	}

	return nil
}
