// Package builtin turns the entries of a ReleasePolicy into registry specs.
package builtin

import (
	"context"
	"fmt"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
	"github.com/clustergate/releasegate/internal/checks/dynamic"
)

// Executor runs a single policy check entry.
type Executor interface {
	Execute(ctx context.Context, spec releasev1alpha1.CheckSpec) (checks.Result, error)
}

var _ Executor = (*dynamic.Executor)(nil)

// RegisterAll registers every enabled check of the policy into reg in
// declaration order. It returns the names of skipped (disabled) checks.
func RegisterAll(reg *checks.Registry, policy *releasev1alpha1.ReleasePolicy, executor Executor) ([]string, error) {
	var skipped []string
	for i := range policy.Spec.Checks {
		cs := policy.Spec.Checks[i]
		if !cs.IsEnabled() {
			skipped = append(skipped, cs.Name)
			continue
		}
		spec, err := SpecFor(cs, executor)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(spec); err != nil {
			return nil, fmt.Errorf("registering check %q: %w", cs.Name, err)
		}
	}
	return skipped, nil
}

// SpecFor builds the registry spec for one policy entry. The policy's
// blocksDeployment override is applied to failed results.
func SpecFor(cs releasev1alpha1.CheckSpec, executor Executor) (checks.Spec, error) {
	typ, err := cs.Type()
	if err != nil {
		return checks.Spec{}, err
	}

	tier := cs.Tier
	if tier == "" {
		tier = dynamic.DefaultTier(typ)
	}

	spec := checks.Spec{
		Name:          cs.Name,
		Tier:          tier,
		ForceCritical: cs.ForceCritical,
		Run: func(ctx context.Context) (checks.Result, error) {
			res, err := executor.Execute(ctx, cs)
			if err != nil {
				return res, err
			}
			if cs.BlocksDeployment != nil && !res.Success {
				res.BlocksDeployment = *cs.BlocksDeployment
			}
			return res, nil
		},
	}
	if cs.Timeout != nil {
		spec.Timeout = cs.Timeout.Duration
	}
	return spec, nil
}
