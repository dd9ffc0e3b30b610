package cli

import (
	"context"
	"errors"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/clustergate/releasegate/internal/checks"
	"github.com/clustergate/releasegate/internal/validation"
)

var errCheckFailed = errors.New("check failed")

// Transcript logs each check as it starts and finishes through the logger
// carried by the context.
type Transcript struct{}

var _ validation.Observer = Transcript{}

// CheckStarted implements validation.Observer.
func (Transcript) CheckStarted(ctx context.Context, spec checks.Spec) {
	log.FromContext(ctx).Info("running check", "check", spec.Name, "tier", spec.Tier)
}

// CheckFinished implements validation.Observer.
func (Transcript) CheckFinished(ctx context.Context, entry validation.TestEntry, _ checks.Result) {
	logger := log.FromContext(ctx).WithValues("check", entry.Name, "tier", entry.Tier, "durationMs", entry.DurationMs)

	for _, warning := range entry.Warnings {
		logger.Info("check warning", "warning", warning)
	}

	switch {
	case entry.Success:
		logger.Info("check passed", "message", entry.Message)
	case entry.Critical || entry.BlocksDeployment:
		logger.Error(errCheckFailed, entry.Message, "critical", entry.Critical, "blocksDeployment", entry.BlocksDeployment)
	default:
		logger.Info("check failed", "message", entry.Message)
	}
}
