// Package secrets scans bundle assets for credentials that must never be
// shipped to clients.
package secrets

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"sigs.k8s.io/controller-runtime/pkg/log"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

const (
	CheckName = "secrets"

	// DefaultMaxFileSize is the largest file scanned unless configured.
	DefaultMaxFileSize = 5 << 20

	// maxReportedFindings caps the findings carried into the report.
	maxReportedFindings = 20
)

// DefaultExtensions are scanned when the policy does not list any.
var DefaultExtensions = []string{".js", ".mjs", ".cjs", ".html", ".css", ".json", ".map", ".txt"}

// Rule is a named credential pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultRules are always applied.
var DefaultRules = []Rule{
	{Name: "aws-access-key-id", Pattern: regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{Name: "private-key", Pattern: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
	{Name: "stripe-live-key", Pattern: regexp.MustCompile(`\b[sr]k_live_[0-9a-zA-Z]{24,}\b`)},
	{Name: "jwt", Pattern: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{Name: "generic-secret", Pattern: regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret[_-]?key|client[_-]?secret|access[_-]?token|password)["']?\s*[:=]\s*["'][A-Za-z0-9_\-/+=]{16,}["']`)},
}

// Finding is one credential match. Match is redacted.
type Finding struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Rule  string `json:"rule"`
	Match string `json:"match"`
}

// Config holds secret scan configuration.
type Config struct {
	Dir        string
	Extensions []string

	// ExtraPatterns are compiled into additional rules named "custom-N".
	ExtraPatterns []string

	// MaxFileSize skips larger files with a warning. Zero means
	// DefaultMaxFileSize.
	MaxFileSize int64
}

// Check scans a directory for credentials.
type Check struct {
	dir         string
	extensions  []string
	rules       []Rule
	maxFileSize int64
}

// ScanResult is the outcome of walking the asset directory.
type ScanResult struct {
	Findings []Finding
	Scanned  int

	// Skipped lists files left unscanned because of their size.
	Skipped []string
}

// New creates a secrets Check. It fails on an invalid extra pattern.
func New(cfg Config) (*Check, error) {
	if cfg.Dir == "" {
		cfg.Dir = "dist"
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	rules := append([]Rule(nil), DefaultRules...)
	for i, p := range cfg.ExtraPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling secret pattern %q: %w", p, err)
		}
		rules = append(rules, Rule{Name: fmt.Sprintf("custom-%d", i+1), Pattern: re})
	}
	return &Check{dir: cfg.Dir, extensions: cfg.Extensions, rules: rules, maxFileSize: cfg.MaxFileSize}, nil
}

func (c *Check) Name() string {
	return CheckName
}

func (c *Check) DefaultTier() releasev1alpha1.Tier {
	return releasev1alpha1.TierCritical
}

func (c *Check) Run(ctx context.Context) (checks.Result, error) {
	logger := log.FromContext(ctx)

	if _, err := os.Stat(c.dir); err != nil {
		return checks.Result{
			BlocksDeployment: true,
			Message:          fmt.Sprintf("cannot scan %s: directory not found", c.dir),
			Details:          map[string]any{"dir": c.dir},
		}, nil
	}

	scan, err := c.Scan(ctx)
	if err != nil {
		return checks.Result{}, fmt.Errorf("scanning %s: %w", c.dir, err)
	}
	findings := scan.Findings

	details := map[string]any{
		"dir":          c.dir,
		"filesScanned": scan.Scanned,
	}
	var warnings []string
	if len(scan.Skipped) > 0 {
		details["filesSkipped"] = scan.Skipped
		for _, file := range scan.Skipped {
			warnings = append(warnings, fmt.Sprintf("%s not scanned: larger than %s", file, humanize.IBytes(uint64(c.maxFileSize))))
		}
	}
	if len(findings) == 0 {
		return checks.Result{
			Success:  true,
			Message:  fmt.Sprintf("no secrets found in %d files", scan.Scanned),
			Warnings: warnings,
			Details:  details,
		}, nil
	}

	files := make(map[string]bool)
	for _, f := range findings {
		files[f.File] = true
	}
	logger.V(1).Info("potential secrets found", "findings", len(findings), "files", len(files))

	reported := findings
	if len(reported) > maxReportedFindings {
		reported = reported[:maxReportedFindings]
	}
	details["findings"] = reported
	details["totalFindings"] = len(findings)

	return checks.Result{
		Critical:         true,
		BlocksDeployment: true,
		Message:          fmt.Sprintf("found %d potential secrets in %d files", len(findings), len(files)),
		Warnings:         warnings,
		Details:          details,
	}, nil
}

// Scan walks the directory and returns all findings in file order.
func (c *Check) Scan(ctx context.Context) (*ScanResult, error) {
	out := &ScanResult{}
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !c.wanted(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(c.dir, path)
		rel = filepath.ToSlash(rel)
		if info.Size() > c.maxFileSize {
			out.Skipped = append(out.Skipped, rel)
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out.Findings = append(out.Findings, c.scanBytes(rel, data)...)
		out.Scanned++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Check) wanted(path string) bool {
	for _, ext := range c.extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (c *Check) scanBytes(file string, data []byte) []Finding {
	var out []Finding
	for _, rule := range c.rules {
		for _, loc := range rule.Pattern.FindAllIndex(data, -1) {
			out = append(out, Finding{
				File:  file,
				Line:  bytes.Count(data[:loc[0]], []byte("\n")) + 1,
				Rule:  rule.Name,
				Match: Redact(string(data[loc[0]:loc[1]])),
			})
		}
	}
	return out
}

// Redact keeps a short prefix of a match so it can be located without
// repeating the credential.
func Redact(s string) string {
	const keep = 6
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return s[:keep] + strings.Repeat("*", min(len(s)-keep, 12))
}
