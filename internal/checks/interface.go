package checks

import (
	"context"
	"time"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
)

// Checker is the interface concrete release checks implement.
type Checker interface {
	// Name returns the unique identifier for this check (e.g. "env-config").
	Name() string

	// DefaultTier returns the tier the check runs in unless the policy overrides it.
	DefaultTier() releasev1alpha1.Tier

	// Run executes the check. Failed assertions are reported through
	// Result; an error means the check could not run at all.
	Run(ctx context.Context) (Result, error)
}

// Result holds the outcome of a single release check.
type Result struct {
	// Success indicates whether the check's own assertions held.
	Success bool `json:"success"`

	// Critical marks a failure as a critical issue regardless of tier.
	Critical bool `json:"critical"`

	// BlocksDeployment marks a failure as a deployment veto.
	BlocksDeployment bool `json:"blocksDeployment"`

	// Message is a human-readable summary of the result.
	Message string `json:"message"`

	// Warnings are non-fatal observations, reported even on success.
	Warnings []string `json:"warnings,omitempty"`

	// Details carries diagnostic data into the report unmodified.
	Details map[string]any `json:"details,omitempty"`
}

// RunFunc is the runnable body of a Spec.
type RunFunc func(ctx context.Context) (Result, error)

// Spec is a registry entry: a named, tiered check body.
type Spec struct {
	Name string
	Tier releasev1alpha1.Tier

	// ForceCritical escalates failures to critical even outside TierCritical.
	ForceCritical bool

	// Timeout bounds the run. Zero leaves timing to the check itself.
	Timeout time.Duration

	Run RunFunc
}

// CriticalTier reports whether failures of this spec are escalated to critical.
func (s Spec) CriticalTier() bool {
	return s.Tier == releasev1alpha1.TierCritical || s.ForceCritical
}

// Pass returns a successful Result.
func Pass(message string, details map[string]any) Result {
	return Result{Success: true, Message: message, Details: details}
}

// Fail returns a failed, non-critical, non-blocking Result.
func Fail(message string, details map[string]any) Result {
	return Result{Message: message, Details: details}
}
