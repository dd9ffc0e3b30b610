package envfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestEnvCheck_AllPresent(t *testing.T) {
	path := writeEnv(t, "# comment\nexport API_URL=https://api.example.com\nSENTRY_DSN=\"https://k@sentry.io/1\"\n")
	c := New(Config{Path: path, Required: []string{"API_URL", "SENTRY_DSN"}, LookupEnv: noEnv})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestEnvCheck_MissingKeyBlocks(t *testing.T) {
	path := writeEnv(t, "API_URL=https://api.example.com\nEMPTY=\n")
	c := New(Config{Path: path, Required: []string{"API_URL", "EMPTY", "ABSENT"}, LookupEnv: noEnv})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if !result.Critical || !result.BlocksDeployment {
		t.Errorf("missing variables must be critical and blocking: %+v", result)
	}
	if !strings.Contains(result.Message, "EMPTY, ABSENT") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestEnvCheck_ProcessEnvFallback(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "API_URL" {
			return "https://api.example.com", true
		}
		return "", false
	}
	c := New(Config{Path: filepath.Join(t.TempDir(), "missing.env"), Required: []string{"API_URL"}, LookupEnv: lookup})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success from process env, got %q", result.Message)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "not found") {
		t.Errorf("expected missing-file warning, got %v", result.Warnings)
	}
}

func TestEnvCheck_IgnoreProcessEnv(t *testing.T) {
	lookup := func(string) (string, bool) { return "set", true }
	c := New(Config{
		Path:             filepath.Join(t.TempDir(), "missing.env"),
		Required:         []string{"API_URL"},
		IgnoreProcessEnv: true,
		LookupEnv:        lookup,
	})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || !result.BlocksDeployment {
		t.Errorf("expected blocking failure without the env file: %+v", result)
	}
}

func TestEnvCheck_PlaceholderWarns(t *testing.T) {
	path := writeEnv(t, "API_KEY=your_api_key_here\nAPI_URL=https://api.example.com\n")
	c := New(Config{Path: path, Required: []string{"API_KEY", "API_URL"}, LookupEnv: noEnv})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("placeholders should warn, not fail: %q", result.Message)
	}
	if len(result.Warnings) != 1 || !strings.HasPrefix(result.Warnings[0], "API_KEY") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"changeme", true},
		{"CHANGEME", true},
		{"your-token", true},
		{"<secret>", true},
		{"xxxx", true},
		{"TODO", true},
		{"x", false},
		{"https://api.example.com", false},
		{"s3cr3t-value", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := IsPlaceholder(tt.value); got != tt.want {
				t.Errorf("IsPlaceholder(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
