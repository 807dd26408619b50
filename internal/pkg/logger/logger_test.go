package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokenPreview(t *testing.T) {
	if got := TokenPreview("short"); got != "short" {
		t.Errorf("TokenPreview(short) = %q", got)
	}
	got := TokenPreview("eyJhbGciOiJIUzI1NiJ9.payload.signature")
	if got != "eyJhbGciOiJI..." {
		t.Errorf("TokenPreview(long) = %q", got)
	}
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cli.log")

	log, err := SetupLogger(Config{Level: slog.LevelInfo, LogFile: path, Format: "json"})
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	log.Info("hello", "component", "test")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("expected JSON log line, got %q", data)
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	WithCommand(base, "tally expenses list").Info("a")
	WithSession(base, "123").Info("b")
	WithHTTPRequest(base, "GET", "groups/").Info("c")

	out := buf.String()
	for _, want := range []string{
		`command="tally expenses list"`,
		"session_id=123",
		"http_method=GET http_path=groups/",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
