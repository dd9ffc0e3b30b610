package v1alpha1

import "fmt"

// Tier is a check's priority bucket. It controls the reference execution
// order and the default severity escalation of a failing result.
// +kubebuilder:validation:Enum=critical;high;medium;low
type Tier string

const (
	// TierCritical checks run first. A failure is always a critical issue
	// and, when critical, also blocks deployment.
	TierCritical Tier = "critical"

	// TierHigh checks run after critical ones.
	TierHigh Tier = "high"

	// TierMedium checks run after high ones.
	TierMedium Tier = "medium"

	// TierLow checks run last.
	TierLow Tier = "low"
)

// Tiers lists all tiers in execution order.
var Tiers = []Tier{TierCritical, TierHigh, TierMedium, TierLow}

// Rank returns the execution position of the tier (0 runs first).
// Unknown tiers sort after TierLow.
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if t == tier {
			return i
		}
	}
	return len(Tiers)
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.Rank() < len(Tiers)
}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (want one of critical, high, medium, low)", s)
	}
	return t, nil
}

// DeploymentRisk is the coarse three-level risk summary of a run.
// +kubebuilder:validation:Enum=LOW;MEDIUM;HIGH
type DeploymentRisk string

const (
	RiskLow    DeploymentRisk = "LOW"
	RiskMedium DeploymentRisk = "MEDIUM"
	RiskHigh   DeploymentRisk = "HIGH"
)

// Priority orders remediation recommendations.
// +kubebuilder:validation:Enum=CRITICAL;HIGH;MEDIUM;LOW
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)
