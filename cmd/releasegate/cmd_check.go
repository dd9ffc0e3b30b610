package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks/dynamic"
	"github.com/clustergate/releasegate/internal/cli"
	"github.com/clustergate/releasegate/internal/metrics"
	"github.com/clustergate/releasegate/internal/policy"
	"github.com/clustergate/releasegate/internal/validation"
)

// defaultPolicyFile is picked up from the working directory when --policy
// is not given.
const defaultPolicyFile = "releasegate.yaml"

type checkOptions struct {
	policyPath      string
	projectDir      string
	reportPath      string
	output          string
	checks          []string
	parallelism     int
	kubeconfig      string
	metricsTextfile string
	pushgateway     string
	pushJob         string
}

func newCheckCmd(stdout io.Writer) *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the release checks and decide whether deployment is allowed",
		Long: `Run every enabled check of the release policy, print a summary and write
the JSON report.

Exit codes: 0 deployment approved, 1 deployment blocked, 2 run aborted,
3 usage or setup error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.output != "text" && opts.output != "json" {
				return fmt.Errorf("unknown output format %q (want text or json)", opts.output)
			}
			return runCheck(cmd.Context(), opts, stdout)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.policyPath, "policy", "p", "", "release policy file (default: ./"+defaultPolicyFile+" if present, else the built-in policy)")
	f.StringVar(&opts.projectDir, "project-dir", "", "project directory, overrides the policy")
	f.StringVar(&opts.reportPath, "report", "", "JSON report path, overrides the policy")
	f.StringVarP(&opts.output, "output", "o", "text", "summary format: text or json")
	f.StringSliceVar(&opts.checks, "checks", nil, "only run these checks (comma-separated)")
	f.IntVar(&opts.parallelism, "parallelism", 0, "run up to N checks at once, overrides the policy")
	f.StringVar(&opts.kubeconfig, "kubeconfig", "", "kubeconfig for rollout and resource checks (default: in-cluster, then default rules)")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write run metrics in Prometheus text format to this file")
	f.StringVar(&opts.pushgateway, "pushgateway", "", "push run metrics to this Pushgateway URL")
	f.StringVar(&opts.pushJob, "push-job", "releasegate", "Pushgateway job name")
	return cmd
}

func runCheck(ctx context.Context, opts checkOptions, stdout io.Writer) error {
	logger := log.FromContext(ctx)

	p, err := loadPolicy(opts.policyPath)
	if err != nil {
		return err
	}
	if opts.projectDir != "" {
		p.Spec.ProjectDir = opts.projectDir
	}
	if opts.reportPath != "" {
		p.Spec.ReportPath = opts.reportPath
	}
	if opts.parallelism < 0 {
		return fmt.Errorf("--parallelism must not be negative")
	}
	for i, name := range opts.checks {
		opts.checks[i] = strings.TrimSpace(name)
	}

	var execOpts []dynamic.Option
	if needsCluster(p, opts.checks) {
		c, err := newClusterClient(opts.kubeconfig)
		if err != nil {
			return err
		}
		execOpts = append(execOpts, dynamic.WithClient(c))
	}
	executor := dynamic.NewExecutor(p.Spec.ProjectDir, execOpts...)

	recorder := metrics.NewRecorder()
	logger.Info("validating release", "policy", p.Name, "projectDir", p.Spec.ProjectDir, "checks", len(p.Spec.Checks))

	report, err := cli.RunPolicy(ctx, cli.RunOptions{
		Policy:      p,
		Executor:    executor,
		Only:        opts.checks,
		Parallelism: opts.parallelism,
		Observers:   []validation.Observer{cli.Transcript{}, recorder},
	})
	aborted := errors.Is(err, validation.ErrRunAborted)
	if err != nil && !aborted {
		return err
	}

	if err := printSummary(stdout, opts.output, report); err != nil {
		return err
	}

	recorder.ObserveReport(report)
	// Metrics go out even for aborted runs; run_complete marks them.
	exportMetrics(context.WithoutCancel(ctx), recorder, opts, p.Name)

	if aborted {
		logger.Info("run aborted, report not written")
		return exitCode(exitAborted)
	}

	reportPath := resolve(p.Spec.ProjectDir, p.Spec.ReportPath)
	if err := cli.WriteReport(reportPath, report); err != nil {
		return err
	}
	logger.Info("report written", "path", reportPath, "ready", report.Summary.DeploymentReady, "risk", report.Summary.DeploymentRisk)

	if code := validation.ExitCode(report); code != exitReady {
		return exitCode(code)
	}
	return nil
}

func printSummary(w io.Writer, format string, report *validation.Report) error {
	if format == "json" {
		return cli.FormatJSON(w, report)
	}
	cli.FormatText(w, report)
	return nil
}

// exportMetrics writes and pushes metrics when configured. Failures are
// logged and do not change the verdict.
func exportMetrics(ctx context.Context, recorder *metrics.Recorder, opts checkOptions, project string) {
	logger := log.FromContext(ctx)
	if opts.metricsTextfile != "" {
		if err := recorder.WriteTextfile(opts.metricsTextfile); err != nil {
			logger.Error(err, "writing metrics")
		}
	}
	if opts.pushgateway != "" {
		if err := recorder.Push(ctx, opts.pushgateway, opts.pushJob, project); err != nil {
			logger.Error(err, "pushing metrics")
		}
	}
}

// loadPolicy reads the policy at path. Without a path it falls back to
// ./releasegate.yaml, then to the built-in policy.
func loadPolicy(path string) (*releasev1alpha1.ReleasePolicy, error) {
	if path != "" {
		return policy.Load(path)
	}
	if _, err := os.Stat(defaultPolicyFile); err == nil {
		return policy.Load(defaultPolicyFile)
	}
	return policy.Default(), nil
}

// needsCluster reports whether any check that will run talks to Kubernetes.
func needsCluster(p *releasev1alpha1.ReleasePolicy, only []string) bool {
	for i := range p.Spec.Checks {
		cs := &p.Spec.Checks[i]
		if !cs.IsEnabled() || !cs.NeedsCluster() {
			continue
		}
		if len(only) == 0 || slices.Contains(only, cs.Name) {
			return true
		}
	}
	return false
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

func newClusterClient(kubeconfig string) (client.Client, error) {
	cfg, err := loadConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	c, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating Kubernetes client: %w", err)
	}
	return c, nil
}

func loadConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	// Try in-cluster first, then fall back to default kubeconfig loading rules.
	cfg, err := rest.InClusterConfig()
	if err == nil {
		return cfg, nil
	}
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, nil).ClientConfig()
}
