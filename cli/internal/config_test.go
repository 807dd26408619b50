package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/domain/entities"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TALLY_API_URL", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if config.CurrentContext != "local" {
		t.Errorf("CurrentContext = %q", config.CurrentContext)
	}
	if _, err := os.Stat(filepath.Join(home, ".tally")); err != nil {
		t.Errorf("config file not created: %v", err)
	}

	base, err := config.BaseURL()
	if err != nil || base != "http://localhost:8000/api" {
		t.Errorf("BaseURL() = %q, %v", base, err)
	}

	t.Setenv("TALLY_API_URL", "https://tally.example.com/api")
	if base, _ := config.BaseURL(); base != "https://tally.example.com/api" {
		t.Errorf("BaseURL() with env = %q", base)
	}
}

func TestConfigContexts(t *testing.T) {
	config := DefaultConfig()

	staging := &Context{}
	staging.API.BaseURL = "https://staging.example.com/api"
	staging.API.RefreshTransport = string(client.RefreshInCookie)
	config.AddContext("staging", staging)

	if err := config.SetCurrentContext("missing"); err == nil {
		t.Error("expected error switching to a missing context")
	}
	if err := config.SetCurrentContext("staging"); err != nil {
		t.Fatal(err)
	}
	current, err := config.GetCurrentContext()
	if err != nil {
		t.Fatal(err)
	}
	if current.RefreshTransport() != client.RefreshInCookie {
		t.Errorf("RefreshTransport() = %q", current.RefreshTransport())
	}
	if err := config.DeleteContext("staging"); err == nil {
		t.Error("expected error deleting the current context")
	}
	if err := config.DeleteContext("local"); err != nil {
		t.Errorf("DeleteContext(local) = %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, _, err := runCLI(t, "config", "add-context", "prod",
		"--api-url", "https://tally.example.com/api", "--refresh-transport", "cookie"); err != nil {
		t.Fatalf("add-context: %v", err)
	}
	if _, _, err := runCLI(t, "config", "use-context", "prod"); err != nil {
		t.Fatalf("use-context: %v", err)
	}

	out, _, err := runCLI(t, "config", "list-contexts")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "https://tally.example.com/api") || !strings.Contains(out, "cookie") {
		t.Errorf("list-contexts = %q", out)
	}

	out, _, err = runCLI(t, "config", "current-context")
	if err != nil || strings.TrimSpace(out) != "prod" {
		t.Errorf("current-context = %q, %v", out, err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"relative url", []string{"--api-url", "/api"}},
		{"bad transport", []string{"--api-url", "https://x.example.com/api", "--refresh-transport", "header"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"config", "add-context", "bad"}, tt.args...)
			if _, _, err := runCLI(t, args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseParticipants(t *testing.T) {
	tests := []struct {
		name    string
		specs   []string
		split   entities.SplitType
		want    string
		wantErr bool
	}{
		{"equal", []string{"1", "2"}, entities.SplitEqual, `[{"user_id":1},{"user_id":2}]`, false},
		{"equal ignores values", []string{"1=5"}, entities.SplitEqual, `[{"user_id":1}]`, false},
		{"unequal", []string{"1=12.50", "2=7.50"}, entities.SplitUnequal, `[{"user_id":1,"amount":12.50},{"user_id":2,"amount":7.50}]`, false},
		{"percentage", []string{"1=25"}, entities.SplitPercentage, `[{"user_id":1,"percentage":25}]`, false},
		{"shares", []string{"3=2"}, entities.SplitShares, `[{"user_id":3,"shares":2}]`, false},
		{"bad id", []string{"ana"}, entities.SplitEqual, "", true},
		{"bad value", []string{"1=x"}, entities.SplitUnequal, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParticipants(tt.specs, tt.split)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			data, _ := json.Marshal(got)
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}
