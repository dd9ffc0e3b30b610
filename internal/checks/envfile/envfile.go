// Package envfile validates the environment configuration of a release:
// required variables must be set in the dotenv file or the process
// environment, and obvious placeholder values are reported.
package envfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"sigs.k8s.io/controller-runtime/pkg/log"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

const CheckName = "environment"

// Config holds env check configuration.
type Config struct {
	// Path of the dotenv file.
	Path string

	// Required keys must resolve to a non-empty value.
	Required []string

	// IgnoreProcessEnv disables the process environment fallback.
	IgnoreProcessEnv bool

	// LookupEnv replaces os.LookupEnv, for tests.
	LookupEnv func(string) (string, bool)
}

// Check validates the environment configuration.
type Check struct {
	cfg Config
}

// New creates an env Check.
func New(cfg Config) *Check {
	if cfg.Path == "" {
		cfg.Path = ".env"
	}
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = os.LookupEnv
	}
	return &Check{cfg: cfg}
}

func (c *Check) Name() string {
	return CheckName
}

func (c *Check) DefaultTier() releasev1alpha1.Tier {
	return releasev1alpha1.TierCritical
}

func (c *Check) Run(ctx context.Context) (checks.Result, error) {
	logger := log.FromContext(ctx)

	values, fileFound, err := readFile(c.cfg.Path)
	if err != nil {
		return checks.Result{
			Critical:         true,
			BlocksDeployment: true,
			Message:          fmt.Sprintf("failed to parse %s: %v", c.cfg.Path, err),
			Details:          map[string]any{"path": c.cfg.Path},
		}, nil
	}
	if !fileFound && c.cfg.IgnoreProcessEnv {
		return checks.Result{
			Critical:         true,
			BlocksDeployment: true,
			Message:          fmt.Sprintf("environment file %s not found", c.cfg.Path),
			Details:          map[string]any{"path": c.cfg.Path},
		}, nil
	}

	var (
		missing      []string
		placeholders []string
		fromProcess  []string
	)
	for _, key := range c.cfg.Required {
		v := strings.TrimSpace(values[key])
		if v == "" && !c.cfg.IgnoreProcessEnv {
			if pv, ok := c.cfg.LookupEnv(key); ok && strings.TrimSpace(pv) != "" {
				v = strings.TrimSpace(pv)
				fromProcess = append(fromProcess, key)
			}
		}
		switch {
		case v == "":
			missing = append(missing, key)
		case IsPlaceholder(v):
			placeholders = append(placeholders, key)
		}
	}

	details := map[string]any{
		"path":      c.cfg.Path,
		"fileFound": fileFound,
		"required":  len(c.cfg.Required),
	}
	if len(fromProcess) > 0 {
		details["fromProcessEnv"] = fromProcess
	}

	var warnings []string
	for _, key := range placeholders {
		warnings = append(warnings, fmt.Sprintf("%s looks like a placeholder value", key))
	}
	if !fileFound {
		warnings = append(warnings, fmt.Sprintf("%s not found, required variables taken from the process environment", c.cfg.Path))
	}

	if len(missing) > 0 {
		logger.V(1).Info("required environment variables missing", "missing", missing)
		details["missing"] = missing
		return checks.Result{
			Critical:         true,
			BlocksDeployment: true,
			Message:          fmt.Sprintf("missing required environment variables: %s", strings.Join(missing, ", ")),
			Warnings:         warnings,
			Details:          details,
		}, nil
	}

	return checks.Result{
		Success:  true,
		Message:  fmt.Sprintf("all %d required environment variables are set", len(c.cfg.Required)),
		Warnings: warnings,
		Details:  details,
	}, nil
}

// readFile parses the dotenv file at path. A missing file is not an error.
func readFile(path string) (map[string]string, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, true, err
	}
	return values, true, nil
}

var placeholderValues = map[string]bool{
	"changeme":    true,
	"change_me":   true,
	"change-me":   true,
	"placeholder": true,
	"todo":        true,
	"tbd":         true,
	"xxx":         true,
	"replaceme":   true,
}

var placeholderPrefixes = []string{"your_", "your-", "<", "${"}

// IsPlaceholder reports whether v looks like an unfilled template value.
func IsPlaceholder(v string) bool {
	lower := strings.ToLower(strings.TrimSpace(v))
	if placeholderValues[lower] {
		return true
	}
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return strings.Trim(lower, "x") == "" && len(lower) >= 3
}
