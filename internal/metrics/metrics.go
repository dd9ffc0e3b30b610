// Package metrics exports the outcome of a validation run as Prometheus
// metrics, either to a node-exporter textfile or to a Pushgateway.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
	"github.com/clustergate/releasegate/internal/validation"
)

const namespace = "releasegate"

// Recorder collects per-check and per-run metrics on its own registry. It
// implements validation.Observer.
type Recorder struct {
	registry *prometheus.Registry

	// CheckPassed reports whether each check passed (1) or failed (0).
	// Labels: check, tier.
	CheckPassed *prometheus.GaugeVec

	// CheckCritical reports whether a check failure was critical.
	// Labels: check, tier.
	CheckCritical *prometheus.GaugeVec

	// CheckDuration records how long each check took.
	// Labels: check, tier.
	CheckDuration *prometheus.HistogramVec

	// Checks counts checks per result: passed, failed, critical.
	Checks *prometheus.GaugeVec

	// Warnings is the number of warnings raised in the run.
	Warnings prometheus.Gauge

	// DeploymentReady is 1 when the run approved deployment.
	DeploymentReady prometheus.Gauge

	// DeploymentRisk has value 1 for the active risk level and 0 for others.
	// Labels: risk (LOW, MEDIUM, HIGH).
	DeploymentRisk *prometheus.GaugeVec

	// RunComplete is 0 when the run was aborted.
	RunComplete prometheus.Gauge

	// LastRunTimestamp is when the run finished, in Unix seconds.
	LastRunTimestamp prometheus.Gauge
}

var _ validation.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder with its metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		CheckPassed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "check_passed",
				Help:      "Whether a release check passed (1) or failed (0).",
			},
			[]string{"check", "tier"},
		),
		CheckCritical: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "check_critical",
				Help:      "Whether a release check failed with a critical issue.",
			},
			[]string{"check", "tier"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Duration of release check execution in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"check", "tier"},
		),
		Checks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "checks",
				Help:      "Number of checks in the last run by result.",
			},
			[]string{"result"},
		),
		Warnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warnings",
			Help:      "Number of warnings raised in the last run.",
		}),
		DeploymentReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deployment_ready",
			Help:      "Whether the last run approved deployment.",
		}),
		DeploymentRisk: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deployment_risk",
				Help:      "Deployment risk of the last run: LOW, MEDIUM or HIGH. Active level=1.",
			},
			[]string{"risk"},
		),
		RunComplete: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_complete",
			Help:      "Whether every registered check ran in the last run.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.registry.MustRegister(
		r.CheckPassed, r.CheckCritical, r.CheckDuration, r.Checks,
		r.Warnings, r.DeploymentReady, r.DeploymentRisk, r.RunComplete, r.LastRunTimestamp,
	)
	return r
}

// Gatherer returns the registry holding the recorder's metrics.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// CheckStarted implements validation.Observer.
func (r *Recorder) CheckStarted(context.Context, checks.Spec) {}

// CheckFinished implements validation.Observer.
func (r *Recorder) CheckFinished(_ context.Context, entry validation.TestEntry, _ checks.Result) {
	tier := string(entry.Tier)
	r.CheckPassed.WithLabelValues(entry.Name, tier).Set(boolToFloat(entry.Success))
	r.CheckCritical.WithLabelValues(entry.Name, tier).Set(boolToFloat(entry.Critical))
	r.CheckDuration.WithLabelValues(entry.Name, tier).Observe(float64(entry.DurationMs) / 1000)
}

// ObserveReport records the run summary.
func (r *Recorder) ObserveReport(report *validation.Report) {
	s := report.Summary
	r.Checks.WithLabelValues("passed").Set(float64(s.Passed))
	r.Checks.WithLabelValues("failed").Set(float64(s.Failed))
	r.Checks.WithLabelValues("critical").Set(float64(s.Critical))
	r.Warnings.Set(float64(s.Warnings))
	r.DeploymentReady.Set(boolToFloat(s.DeploymentReady))
	for _, risk := range []releasev1alpha1.DeploymentRisk{releasev1alpha1.RiskLow, releasev1alpha1.RiskMedium, releasev1alpha1.RiskHigh} {
		r.DeploymentRisk.WithLabelValues(string(risk)).Set(boolToFloat(risk == s.DeploymentRisk))
	}
	r.RunComplete.Set(boolToFloat(report.Complete))
	r.LastRunTimestamp.Set(float64(report.GeneratedAt.Unix()))
}

// WriteTextfile writes the metrics in the Prometheus text format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Push sends the metrics to a Pushgateway, replacing earlier pushes of the
// same job and project.
func (r *Recorder) Push(ctx context.Context, url, job, project string) error {
	pusher := push.New(url, job).Gatherer(r.registry)
	if project != "" {
		pusher = pusher.Grouping("project", project)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
