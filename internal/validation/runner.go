package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/clustergate/releasegate/internal/checks"
)

// Observer is notified as checks start and finish. Implementations must
// be safe for concurrent use when the orchestrator runs in parallel.
type Observer interface {
	CheckStarted(ctx context.Context, spec checks.Spec)
	CheckFinished(ctx context.Context, entry TestEntry, result checks.Result)
}

// Runner executes single checks and records them into an Aggregator.
type Runner struct {
	agg       *Aggregator
	observers []Observer
	now       func() time.Time
}

// NewRunner creates a Runner recording into agg.
func NewRunner(agg *Aggregator, observers ...Observer) *Runner {
	return &Runner{agg: agg, observers: observers, now: time.Now}
}

// Run executes spec and records its outcome. It never panics and never
// returns an error: faults become critical results.
func (r *Runner) Run(ctx context.Context, spec checks.Spec) TestEntry {
	return r.Commit(ctx, r.Execute(ctx, spec))
}

// Execute runs spec and returns its normalized outcome without recording
// it. It is safe to call concurrently.
func (r *Runner) Execute(ctx context.Context, spec checks.Spec) Outcome {
	logger := log.FromContext(ctx).WithValues("check", spec.Name, "tier", spec.Tier)
	for _, o := range r.observers {
		o.CheckStarted(ctx, spec)
	}

	start := r.now()
	res, err := invoke(ctx, spec)
	elapsed := r.now().Sub(start)

	out := Outcome{Name: spec.Name, Tier: spec.Tier, Duration: elapsed}
	if err != nil {
		logger.V(1).Info("check faulted", "error", err.Error())
		out.Fault = true
		out.Result = checks.Result{
			Success:          false,
			Critical:         true,
			BlocksDeployment: false,
			Message:          err.Error(),
		}
		return out
	}

	out.Result = normalize(res, spec)
	return out
}

// Commit records an outcome produced by Execute and notifies observers.
func (r *Runner) Commit(ctx context.Context, o Outcome) TestEntry {
	entry := r.agg.Record(o)
	for _, obs := range r.observers {
		obs.CheckFinished(ctx, entry, o.Result)
	}
	return entry
}

// normalize enforces the result invariants: a passing result carries no
// severity, and a failing result from a critical tier is always critical.
func normalize(res checks.Result, spec checks.Spec) checks.Result {
	if res.Success {
		res.Critical = false
		res.BlocksDeployment = false
		return res
	}
	if spec.CriticalTier() {
		res.Critical = true
	}
	if res.Message == "" {
		res.Message = "check failed"
	}
	return res
}

type invokeResult struct {
	res checks.Result
	err error
}

// invoke calls spec.Run on its own goroutine so that a panic or a hung
// check cannot take the run down with it.
func invoke(ctx context.Context, spec checks.Spec) (checks.Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- invokeResult{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		res, err := spec.Run(ctx)
		done <- invokeResult{res: res, err: err}
	}()

	return await(ctx, done, spec.Timeout)
}

// await waits for the check's outcome. An outcome that is already
// available wins over a cancelled context.
func await(ctx context.Context, done <-chan invokeResult, timeout time.Duration) (checks.Result, error) {
	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		select {
		case out := <-done:
			return out.res, out.err
		default:
		}
		if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return checks.Result{}, fmt.Errorf("check timed out after %s", timeout)
		}
		return checks.Result{}, fmt.Errorf("check interrupted: %w", ctx.Err())
	}
}
