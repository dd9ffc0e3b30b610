package bundle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBundle(t *testing.T, files map[string]int) string {
	t.Helper()
	dir := t.TempDir()
	for name, size := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(strings.Repeat("a", size)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBundleCheck_MissingDirBlocks(t *testing.T) {
	c := New(Config{Dir: filepath.Join(t.TempDir(), "dist")})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || !result.BlocksDeployment {
		t.Fatalf("expected blocking failure, got %+v", result)
	}
	if result.Critical {
		t.Error("a missing bundle is a blocker, not a critical issue")
	}
}

func TestBundleCheck_MissingRequiredFile(t *testing.T) {
	dir := writeBundle(t, map[string]int{"assets/app.js": 10})
	c := New(Config{Dir: dir})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || !strings.Contains(result.Message, "index.html") {
		t.Errorf("expected missing index.html failure, got %+v", result)
	}
}

func TestBundleCheck_WithinBudget(t *testing.T) {
	dir := writeBundle(t, map[string]int{
		"index.html":        100,
		"assets/app.js":     2048,
		"assets/app.js.map": 512,
	})
	c := New(Config{Dir: dir, MaxTotalSize: 1 << 20, MaxAssetSize: 1024})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Details["files"] != 3 || result.Details["totalBytes"] != int64(2660) {
		t.Errorf("details = %v", result.Details)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected large asset and source map warnings, got %v", result.Warnings)
	}
	if !strings.HasPrefix(result.Warnings[0], "assets/app.js is 2.0 KiB") {
		t.Errorf("warning[0] = %q", result.Warnings[0])
	}
	if !strings.Contains(result.Warnings[1], "source map") {
		t.Errorf("warning[1] = %q", result.Warnings[1])
	}
}

func TestBundleCheck_AllowSourceMaps(t *testing.T) {
	dir := writeBundle(t, map[string]int{"index.html": 10, "app.js.map": 10})
	c := New(Config{Dir: dir, AllowSourceMaps: true})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestBundleCheck_OverBudget(t *testing.T) {
	dir := writeBundle(t, map[string]int{"index.html": 4096})
	c := New(Config{Dir: dir, MaxTotalSize: 1024})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure over budget")
	}
	if result.Critical || result.BlocksDeployment {
		t.Errorf("budget overrun should be a plain failure: %+v", result)
	}
	if !strings.Contains(result.Message, "above the 1.0 KiB budget") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestAnalyze_FingerprintStable(t *testing.T) {
	files := map[string]int{"index.html": 10, "a/b.js": 20}
	s1, err := Analyze(context.Background(), writeBundle(t, files), 0)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := Analyze(context.Background(), writeBundle(t, files), 0)
	if err != nil {
		t.Fatal(err)
	}
	if s1.Fingerprint != s2.Fingerprint {
		t.Error("identical bundles should share a fingerprint")
	}
	if s1.GzipBytes <= 0 || s1.GzipBytes >= s1.TotalBytes+64 {
		t.Errorf("GzipBytes = %d for %d raw bytes", s1.GzipBytes, s1.TotalBytes)
	}

	s3, err := Analyze(context.Background(), writeBundle(t, map[string]int{"index.html": 11, "a/b.js": 20}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if s3.Fingerprint == s1.Fingerprint {
		t.Error("different bundles should not share a fingerprint")
	}
}
