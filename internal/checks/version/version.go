// Package version validates the release version declared in the project
// manifest.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Masterminds/semver/v3"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

const CheckName = "version"

// Config holds version check configuration.
type Config struct {
	File            string
	Constraint      string
	AllowPrerelease bool
}

// Check validates the release version.
type Check struct {
	file            string
	constraint      *semver.Constraints
	allowPrerelease bool
}

// New creates a version Check. It fails on an invalid constraint.
func New(cfg Config) (*Check, error) {
	if cfg.File == "" {
		cfg.File = "package.json"
	}
	c := &Check{file: cfg.File, allowPrerelease: cfg.AllowPrerelease}
	if cfg.Constraint != "" {
		constraint, err := semver.NewConstraint(cfg.Constraint)
		if err != nil {
			return nil, fmt.Errorf("parsing version constraint %q: %w", cfg.Constraint, err)
		}
		c.constraint = constraint
	}
	return c, nil
}

func (c *Check) Name() string {
	return CheckName
}

func (c *Check) DefaultTier() releasev1alpha1.Tier {
	return releasev1alpha1.TierMedium
}

type manifest struct {
	Version string `json:"version"`
}

func (c *Check) Run(_ context.Context) (checks.Result, error) {
	data, err := os.ReadFile(c.file)
	if errors.Is(err, fs.ErrNotExist) {
		return checks.Fail(fmt.Sprintf("manifest %s not found", c.file), map[string]any{"file": c.file}), nil
	}
	if err != nil {
		return checks.Result{}, fmt.Errorf("reading %s: %w", c.file, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return checks.Fail(fmt.Sprintf("manifest %s is not valid JSON: %v", c.file, err), map[string]any{"file": c.file}), nil
	}
	details := map[string]any{"file": c.file, "version": m.Version}
	if m.Version == "" {
		return checks.Fail(fmt.Sprintf("manifest %s declares no version", c.file), details), nil
	}

	v, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return checks.Fail(fmt.Sprintf("version %q is not valid semver: %v", m.Version, err), details), nil
	}
	if v.Prerelease() != "" && !c.allowPrerelease {
		return checks.Fail(fmt.Sprintf("version %s is a prerelease", v), details), nil
	}
	if c.constraint != nil {
		details["constraint"] = c.constraint.String()
		if ok, errs := c.constraint.Validate(v); !ok {
			msg := fmt.Sprintf("version %s does not satisfy %s", v, c.constraint)
			if len(errs) > 0 {
				msg = fmt.Sprintf("%s: %v", msg, errs[0])
			}
			return checks.Fail(msg, details), nil
		}
	}

	return checks.Pass(fmt.Sprintf("release version %s", v), details), nil
}
