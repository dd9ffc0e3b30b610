// Package build runs the project's production build and verifies that it
// produced an output directory.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

const (
	CheckName = "build"

	DefaultTimeout = 60 * time.Second

	// outputTailLines is how much build output is kept on failure.
	outputTailLines = 20
)

// DefaultCommand is used when the policy does not name a build command.
var DefaultCommand = []string{"npm", "run", "build"}

// Config holds build check configuration.
type Config struct {
	Command   []string
	Dir       string
	OutputDir string
	Timeout   time.Duration
	Env       []string
}

// Check runs the build command.
type Check struct {
	cfg Config
}

// New creates a build Check.
func New(cfg Config) *Check {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "dist"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Check{cfg: cfg}
}

func (c *Check) Name() string {
	return CheckName
}

func (c *Check) DefaultTier() releasev1alpha1.Tier {
	return releasev1alpha1.TierCritical
}

func (c *Check) Run(ctx context.Context) (checks.Result, error) {
	logger := log.FromContext(ctx).WithValues("command", strings.Join(c.cfg.Command, " "))

	res := RunCommand(ctx, c.cfg.Command, c.cfg.Dir, c.cfg.Env, c.cfg.Timeout)
	details := map[string]any{
		"command":  strings.Join(c.cfg.Command, " "),
		"duration": res.Duration.Round(time.Millisecond).String(),
	}
	if res.Err != nil {
		logger.V(1).Info("build failed", "error", res.Err.Error())
		details["output"] = res.Tail
		return checks.Result{
			Critical:         true,
			BlocksDeployment: true,
			Message:          fmt.Sprintf("build failed: %v", res.Err),
			Details:          details,
		}, nil
	}

	outDir := c.cfg.OutputDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(c.cfg.Dir, outDir)
	}
	details["outputDir"] = outDir

	entries, err := os.ReadDir(outDir)
	if err != nil || len(entries) == 0 {
		return checks.Result{
			Critical:         true,
			BlocksDeployment: true,
			Message:          fmt.Sprintf("build succeeded but produced no output in %s", outDir),
			Details:          details,
		}, nil
	}
	details["outputEntries"] = len(entries)

	return checks.Result{
		Success: true,
		Message: fmt.Sprintf("build completed in %s", res.Duration.Round(time.Millisecond)),
		Details: details,
	}, nil
}

// CommandResult is the outcome of RunCommand.
type CommandResult struct {
	ExitCode int
	Duration time.Duration

	// Tail holds the last lines of combined stdout and stderr.
	Tail string

	// Err is set when the command could not start, exited non-zero or
	// timed out.
	Err error
}

// RunCommand runs argv in dir with a bounded lifetime. A timeout is
// reported through Err, never as a hang.
func RunCommand(ctx context.Context, argv []string, dir string, env []string, timeout time.Duration) CommandResult {
	if len(argv) == 0 {
		return CommandResult{ExitCode: -1, Err: errors.New("no command specified")}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	res := CommandResult{
		Duration: time.Since(start),
		Tail:     tail(out.String(), outputTailLines),
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.Err = fmt.Errorf("timed out after %s", timeout)
	case err != nil:
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		res.Err = err
	}
	return res
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
