package config

import (
	"time"
)

// Config represents the application configuration shared by the CLI and web front-end
type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Web     WebConfig     `yaml:"web"`
}

// APIConfig locates the REST backend
type APIConfig struct {
	BaseURL string        `yaml:"base_url" default:"http://localhost:8000/api"`
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

// AuthConfig holds token endpoint configuration
type AuthConfig struct {
	TokenPath        string        `yaml:"token_path" default:"/token/"`
	RefreshPath      string        `yaml:"refresh_path" default:"/token/refresh/"`
	RefreshTransport string        `yaml:"refresh_transport" default:"body"` // body, cookie
	RefreshTimeout   time.Duration `yaml:"refresh_timeout" default:"15s"`
	LoginURL         string        `yaml:"login_url" default:"/login"` // where users are sent when a refresh fails
}

// StoreConfig selects where credentials are kept
type StoreConfig struct {
	Kind   string `yaml:"kind" default:"memory"` // memory, redis
	Prefix string `yaml:"prefix"`
}

// RedisConfig holds Redis connection settings, used when Store.Kind is redis
type RedisConfig struct {
	Addr        string        `yaml:"addr" default:"localhost:6379"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`  // Log level: debug, info, warn, error
	Format string `yaml:"format" default:"json"` // Log format: json, text
}

// WebConfig holds web front-end configuration
type WebConfig struct {
	Host          string        `yaml:"host" default:"localhost"`
	Port          int           `yaml:"port" default:"8080"`
	MetricsPort   int           `yaml:"metrics_port" default:"0"` // 0 serves /metrics on the main port
	SessionSecret string        `yaml:"session_secret"`           // 32-byte base64-encoded or hex string
	SessionMaxAge time.Duration `yaml:"session_max_age" default:"720h"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" default:"30m"` // unused session clients are dropped after this
}

// Defaults returns a Config with every default filled in
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			TokenPath:        "/token/",
			RefreshPath:      "/token/refresh/",
			RefreshTransport: "body",
			RefreshTimeout:   15 * time.Second,
			LoginURL:         "/login",
		},
		Store: StoreConfig{
			Kind: "memory",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Web: WebConfig{
			Host:          "localhost",
			Port:          8080,
			SessionMaxAge: 30 * 24 * time.Hour,
			IdleTimeout:   30 * time.Minute,
		},
	}
}
