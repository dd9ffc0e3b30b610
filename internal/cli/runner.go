package cli

import (
	"context"
	"fmt"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
	"github.com/clustergate/releasegate/internal/checks/builtin"
	"github.com/clustergate/releasegate/internal/validation"
)

// RunOptions configures a policy run.
type RunOptions struct {
	Policy   *releasev1alpha1.ReleasePolicy
	Executor builtin.Executor

	// Only restricts the run to the named checks. Empty runs all enabled
	// checks.
	Only []string

	// Parallelism overrides the policy's setting when positive.
	Parallelism int

	Observers []validation.Observer
}

// RunPolicy registers the policy's checks and runs them in reference order.
// Configuration problems are returned before any check runs. Otherwise the
// error is nil or validation.ErrRunAborted.
func RunPolicy(ctx context.Context, opts RunOptions) (*validation.Report, error) {
	logger := log.FromContext(ctx)

	reg := checks.NewRegistry()
	skipped, err := builtin.RegisterAll(reg, opts.Policy, opts.Executor)
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		logger.V(1).Info("check disabled by policy", "check", name)
	}

	if len(opts.Only) > 0 {
		filter := make(map[string]bool, len(opts.Only))
		for _, name := range opts.Only {
			filter[name] = true
		}
		var unknown []string
		reg, unknown = reg.Filter(filter)
		if len(unknown) > 0 {
			return nil, fmt.Errorf("unknown or disabled checks: %s", strings.Join(unknown, ", "))
		}
	}

	parallelism := opts.Policy.Spec.Parallelism
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}

	orch := &validation.Orchestrator{
		Observers:   opts.Observers,
		Parallelism: parallelism,
	}
	return orch.RunAll(ctx, reg.Ordered())
}
