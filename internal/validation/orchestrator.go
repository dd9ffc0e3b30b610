package validation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/clustergate/releasegate/internal/checks"
)

// ErrRunAborted is returned when the run was cancelled before every check
// completed. The accompanying report is marked incomplete.
var ErrRunAborted = errors.New("validation run aborted before all checks completed")

// Orchestrator sequences a set of checks and builds the final report.
type Orchestrator struct {
	// Observers receive check start and finish notifications.
	Observers []Observer

	// Parallelism bounds concurrent checks. Values below 2 run sequentially.
	Parallelism int

	// Clock overrides time.Now, for tests.
	Clock func() time.Time

	// RunID overrides the generated run identifier.
	RunID string
}

// RunAll executes every spec in the given order and returns the report.
// It never stops at a failing check. The only error is ErrRunAborted,
// returned together with an incomplete report when ctx is cancelled.
func (o *Orchestrator) RunAll(ctx context.Context, specs []checks.Spec) (*Report, error) {
	logger := log.FromContext(ctx)

	now := o.Clock
	if now == nil {
		now = time.Now
	}
	runID := o.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	agg := NewAggregator(runID, now())
	runner := NewRunner(agg, o.Observers...)
	runner.now = now

	logger.V(1).Info("starting validation run", "runID", runID, "checks", len(specs), "parallelism", o.Parallelism)

	var ran int
	if o.Parallelism > 1 {
		ran = o.runParallel(ctx, runner, specs)
	} else {
		ran = o.runSequential(ctx, runner, specs)
	}

	report := Build(agg.Snapshot(), now())
	// A cancelled context also taints checks that did run: they saw an
	// interrupted context and recorded faults.
	if ran < len(specs) || ctx.Err() != nil {
		report.Complete = false
		logger.Info("validation run aborted", "completed", ran, "registered", len(specs))
		return report, ErrRunAborted
	}
	return report, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, runner *Runner, specs []checks.Spec) int {
	ran := 0
	for _, spec := range specs {
		if ctx.Err() != nil {
			break
		}
		runner.Run(ctx, spec)
		ran++
	}
	return ran
}

// runParallel executes checks concurrently but records them in spec order,
// so the audit trail matches a sequential run.
func (o *Orchestrator) runParallel(ctx context.Context, runner *Runner, specs []checks.Spec) int {
	outcomes := make([]*Outcome, len(specs))

	var g errgroup.Group
	g.SetLimit(o.Parallelism)
	for i, spec := range specs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out := runner.Execute(ctx, spec)
			outcomes[i] = &out
			return nil
		})
	}
	_ = g.Wait()

	ran := 0
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		runner.Commit(ctx, *out)
		ran++
	}
	return ran
}
