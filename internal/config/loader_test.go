package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8000/api" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Auth.RefreshPath != "/token/refresh/" {
		t.Errorf("RefreshPath = %q", cfg.Auth.RefreshPath)
	}
	if cfg.Auth.RefreshTimeout != 15*time.Second {
		t.Errorf("RefreshTimeout = %v", cfg.Auth.RefreshTimeout)
	}
	if cfg.Store.Kind != "memory" {
		t.Errorf("Store.Kind = %q", cfg.Store.Kind)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("TALLY_TEST_SECRET", "from-env")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")

	path := writeConfig(t, `
api:
  base_url: https://tally.example.com/api
  timeout: 10s
auth:
  refresh_transport: cookie
  refresh_timeout: 5s
store:
  kind: redis
  prefix: "web:"
web:
  port: 9090
  session_secret: ${TALLY_TEST_SECRET}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"base url", cfg.API.BaseURL, "https://tally.example.com/api"},
		{"timeout", cfg.API.Timeout, 10 * time.Second},
		{"refresh transport", cfg.Auth.RefreshTransport, "cookie"},
		{"refresh timeout", cfg.Auth.RefreshTimeout, 5 * time.Second},
		{"refresh path kept", cfg.Auth.RefreshPath, "/token/refresh/"},
		{"store kind", cfg.Store.Kind, "redis"},
		{"store prefix", cfg.Store.Prefix, "web:"},
		{"redis addr from env", cfg.Redis.Addr, "redis.internal:6380"},
		{"expanded secret", cfg.Web.SessionSecret, "from-env"},
		{"web port", cfg.Web.Port, 9090},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_APIURLFromEnv(t *testing.T) {
	t.Setenv("TALLY_API_URL", "http://backend:8000/api")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://backend:8000/api" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"relative base url", "api:\n  base_url: /api\n"},
		{"unknown refresh transport", "auth:\n  refresh_transport: header\n"},
		{"unknown store", "store:\n  kind: etcd\n"},
		{"bad port", "web:\n  port: 70000\n"},
		{"zero refresh timeout", "auth:\n  refresh_timeout: 0s\n"},
		{"malformed yaml", "api: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
