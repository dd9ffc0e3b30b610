package dynamic

import (
	"context"
	"fmt"
	"strings"
	"time"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
	"github.com/clustergate/releasegate/internal/checks/build"
)

const defaultCommandTimeout = 30 * time.Second

// executeCommandCheck runs a local command. Exit 0 passes, anything else
// fails with the tail of its output.
func (e *Executor) executeCommandCheck(ctx context.Context, spec *releasev1alpha1.CommandCheckSpec) (checks.Result, error) {
	if len(spec.Command) == 0 {
		return checks.Result{}, fmt.Errorf("commandCheck requires a command")
	}

	res := build.RunCommand(ctx, spec.Command, e.path(spec.Dir, "."), spec.Env,
		seconds(spec.TimeoutSeconds, defaultCommandTimeout))

	details := map[string]any{
		"command":  strings.Join(spec.Command, " "),
		"exitCode": res.ExitCode,
		"duration": res.Duration.Round(time.Millisecond).String(),
	}
	if res.Tail != "" {
		details["output"] = res.Tail
	}

	if res.Err != nil {
		return checks.Fail(fmt.Sprintf("command failed: %v", res.Err), details), nil
	}
	return checks.Pass("command exited 0", details), nil
}
