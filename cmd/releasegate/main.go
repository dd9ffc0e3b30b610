// releasegate validates that a frontend release is ready for production.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Process exit codes.
const (
	exitReady   = 0
	exitBlocked = 1
	exitAborted = 2
	exitSetup   = 3
)

// exitCode is returned by RunE functions that already reported their
// outcome and only need the process to exit with the given code.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the releasegate CLI with the given args, writing results to
// stdout and the log transcript to stderr. Returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			return int(code)
		}
		fmt.Fprintf(stderr, "releasegate: %v\n", err) //nolint:errcheck // best-effort stderr
		return exitSetup
	}
	return exitReady
}

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		zapOpts = zap.Options{TimeEncoder: zapcore.ISO8601TimeEncoder}
		noColor bool
	)

	root := &cobra.Command{
		Use:           "releasegate",
		Short:         "Production readiness gate for frontend releases",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := newLogger(&zapOpts, stderr, noColor)
			ctrllog.SetLogger(logger)
			cmd.SetContext(ctrllog.IntoContext(cmd.Context(), logger))
		},
	}

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	zapOpts.BindFlags(goFlags)
	root.PersistentFlags().AddGoFlagSet(goFlags)
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured log levels")

	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newCheckCmd(stdout),
		newListCmd(stdout),
		newInitCmd(stdout),
		newSchemaCmd(stdout),
		newVersionCmd(stdout),
	)
	return root
}

// newLogger builds the console transcript logger: ISO8601 timestamps and
// level names, coloured unless disabled.
func newLogger(opts *zap.Options, w io.Writer, noColor bool) logr.Logger {
	levelEncoder := zapcore.CapitalColorLevelEncoder
	if noColor {
		levelEncoder = zapcore.CapitalLevelEncoder
	}
	return zap.New(
		zap.UseFlagOptions(opts),
		zap.WriteTo(w),
		zap.ConsoleEncoder(func(ec *zapcore.EncoderConfig) {
			ec.EncodeLevel = levelEncoder
		}),
	)
}
