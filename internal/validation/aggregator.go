// Package validation runs release checks and turns their outcomes into a
// single deployment verdict.
//
// A run flows Orchestrator -> Runner -> Aggregator -> Build. The Runner
// owns severity normalization, the Aggregator owns all counting and the
// blocker rule, and Build derives the verdict, risk and recommendations
// from the aggregated counts only.
package validation

import (
	"sync"
	"time"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

// Issue is a named problem carried into the report.
type Issue struct {
	Name    string         `json:"name"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// TestEntry is one row of the audit trail. Every executed check produces
// exactly one entry regardless of outcome.
type TestEntry struct {
	Name             string               `json:"name"`
	Tier             releasev1alpha1.Tier `json:"tier"`
	Success          bool                 `json:"success"`
	Message          string               `json:"message"`
	DurationMs       int64                `json:"duration"`
	Critical         bool                 `json:"critical"`
	BlocksDeployment bool                 `json:"blocksDeployment"`
	Warnings         []string             `json:"warnings,omitempty"`
}

// Outcome is a normalized check result waiting to be recorded.
type Outcome struct {
	Name     string
	Tier     releasev1alpha1.Tier
	Result   checks.Result
	Duration time.Duration

	// Fault is set when the check panicked, returned an error or timed out.
	Fault bool
}

// State is the accumulated decision state of one run.
type State struct {
	RunID     string
	StartTime time.Time

	Passed   int
	Failed   int
	Critical int
	Warnings int

	CriticalIssues     []Issue
	DeploymentBlockers []Issue
	WarningList        []Issue
	Tests              []TestEntry
}

// Ready reports whether the state allows deployment.
func (s *State) Ready() bool {
	return s.Critical == 0 && len(s.DeploymentBlockers) == 0
}

// Aggregator accumulates outcomes for a single run. Record is safe for
// concurrent use; each call is applied as one unit.
type Aggregator struct {
	mu    sync.Mutex
	state State
}

// NewAggregator creates an Aggregator for a run starting at start.
func NewAggregator(runID string, start time.Time) *Aggregator {
	return &Aggregator{state: State{RunID: runID, StartTime: start}}
}

// Record folds one outcome into the state and returns its audit row.
//
// Exactly one of Passed, Critical or Failed is incremented. A failed
// outcome blocks deployment when it says so, or when it is critical and
// comes from the critical tier.
func (a *Aggregator) Record(o Outcome) TestEntry {
	res := o.Result
	blocks := !res.Success && (res.BlocksDeployment || (res.Critical && o.Tier == releasev1alpha1.TierCritical))

	entry := TestEntry{
		Name:             o.Name,
		Tier:             o.Tier,
		Success:          res.Success,
		Message:          res.Message,
		DurationMs:       o.Duration.Milliseconds(),
		Critical:         !res.Success && res.Critical,
		BlocksDeployment: blocks,
		Warnings:         append([]string(nil), res.Warnings...),
	}
	issue := Issue{Name: o.Name, Message: res.Message, Details: res.Details}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case res.Success:
		a.state.Passed++
	case res.Critical:
		a.state.Critical++
		a.state.CriticalIssues = append(a.state.CriticalIssues, issue)
	default:
		a.state.Failed++
	}
	if blocks {
		a.state.DeploymentBlockers = append(a.state.DeploymentBlockers, issue)
	}
	for _, w := range res.Warnings {
		a.state.Warnings++
		a.state.WarningList = append(a.state.WarningList, Issue{Name: o.Name, Message: w})
	}
	a.state.Tests = append(a.state.Tests, entry)

	return entry
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.state
	s.CriticalIssues = append([]Issue(nil), a.state.CriticalIssues...)
	s.DeploymentBlockers = append([]Issue(nil), a.state.DeploymentBlockers...)
	s.WarningList = append([]Issue(nil), a.state.WarningList...)
	s.Tests = append([]TestEntry(nil), a.state.Tests...)
	return s
}
