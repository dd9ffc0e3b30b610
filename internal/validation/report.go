package validation

import (
	"math"
	"strconv"
	"time"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
)

const (
	// mediumRiskFailures is the failed-check count above which risk is MEDIUM.
	mediumRiskFailures = 2

	warningReviewThreshold = 10
	failedReviewThreshold  = 3
)

// Summary holds the aggregate counts and the verdict of a run.
type Summary struct {
	Total           int                            `json:"total"`
	Passed          int                            `json:"passed"`
	Failed          int                            `json:"failed"`
	Critical        int                            `json:"critical"`
	Warnings        int                            `json:"warnings"`
	SuccessRate     int                            `json:"successRate"`
	DeploymentReady bool                           `json:"deploymentReady"`
	DeploymentRisk  releasev1alpha1.DeploymentRisk `json:"deploymentRisk"`
}

// Recommendation is a remediation hint derived from the final counts.
type Recommendation struct {
	Priority releasev1alpha1.Priority `json:"priority"`
	Action   string                   `json:"action"`
	Details  string                   `json:"details"`
}

// Report is the immutable result of a validation run. The JSON artifact
// and the console summary are both rendered from it.
type Report struct {
	RunID       string    `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`
	DurationMs  int64     `json:"durationMs"`

	// Complete is false when the run was aborted before every check ran.
	// Such a report is not authoritative.
	Complete bool `json:"complete"`

	Summary            Summary          `json:"summary"`
	DeploymentBlockers []Issue          `json:"deploymentBlockers"`
	CriticalIssues     []Issue          `json:"criticalIssues"`
	Warnings           []Issue          `json:"warnings"`
	Tests              []TestEntry      `json:"tests"`
	Recommendations    []Recommendation `json:"recommendations"`
}

// Build derives a Report from the final state of a run.
func Build(state State, finishedAt time.Time) *Report {
	total := state.Passed + state.Failed + state.Critical

	r := &Report{
		RunID:       state.RunID,
		GeneratedAt: finishedAt.UTC(),
		DurationMs:  finishedAt.Sub(state.StartTime).Milliseconds(),
		Complete:    true,
		Summary: Summary{
			Total:           total,
			Passed:          state.Passed,
			Failed:          state.Failed,
			Critical:        state.Critical,
			Warnings:        state.Warnings,
			SuccessRate:     successRate(state.Passed, total),
			DeploymentReady: state.Ready(),
			DeploymentRisk:  riskFor(state.Critical, state.Failed),
		},
		DeploymentBlockers: nonNil(state.DeploymentBlockers),
		CriticalIssues:     nonNil(state.CriticalIssues),
		Warnings:           nonNil(state.WarningList),
		Tests:              state.Tests,
	}
	if r.Tests == nil {
		r.Tests = []TestEntry{}
	}
	r.Recommendations = recommend(state)
	return r
}

// ExitCode returns the process exit code for a report: non-zero iff there
// is a critical issue or a deployment blocker.
func ExitCode(r *Report) int {
	if r.Summary.Critical > 0 || len(r.DeploymentBlockers) > 0 {
		return 1
	}
	return 0
}

func successRate(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

func riskFor(critical, failed int) releasev1alpha1.DeploymentRisk {
	switch {
	case critical > 0:
		return releasev1alpha1.RiskHigh
	case failed > mediumRiskFailures:
		return releasev1alpha1.RiskMedium
	default:
		return releasev1alpha1.RiskLow
	}
}

// recommend evaluates the fixed rule list against the final counts. The two
// LOW standing recommendations are always last.
func recommend(s State) []Recommendation {
	var recs []Recommendation

	if s.Critical > 0 {
		recs = append(recs, Recommendation{
			Priority: releasev1alpha1.PriorityCritical,
			Action:   "Fix all critical issues before deploying",
			Details:  pluralize(s.Critical, "critical issue", "critical issues") + " must be resolved",
		})
	}
	if len(s.DeploymentBlockers) > 0 {
		recs = append(recs, Recommendation{
			Priority: releasev1alpha1.PriorityHigh,
			Action:   "Resolve deployment blockers",
			Details:  pluralize(len(s.DeploymentBlockers), "check blocks", "checks block") + " deployment",
		})
	}
	if s.Warnings > warningReviewThreshold {
		recs = append(recs, Recommendation{
			Priority: releasev1alpha1.PriorityMedium,
			Action:   "Review and reduce warnings",
			Details:  pluralize(s.Warnings, "warning was", "warnings were") + " reported",
		})
	}
	if s.Failed > failedReviewThreshold {
		recs = append(recs, Recommendation{
			Priority: releasev1alpha1.PriorityMedium,
			Action:   "Investigate failed non-critical checks",
			Details:  pluralize(s.Failed, "check failed", "checks failed") + " without blocking deployment",
		})
	}

	recs = append(recs,
		Recommendation{
			Priority: releasev1alpha1.PriorityLow,
			Action:   "Set up production monitoring",
			Details:  "Track error rates, latency and availability after the release",
		},
		Recommendation{
			Priority: releasev1alpha1.PriorityLow,
			Action:   "Prepare a rollback plan",
			Details:  "Keep the previous release deployable and document the rollback steps",
		},
	)
	return recs
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}

func nonNil(in []Issue) []Issue {
	if in == nil {
		return []Issue{}
	}
	return in
}
