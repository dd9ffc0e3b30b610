package dynamic

import (
	"context"
	"fmt"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

const defaultPromQLTimeout = 10 * time.Second

func (e *Executor) executePromQLCheck(ctx context.Context, spec *releasev1alpha1.PromQLCheckSpec) (checks.Result, error) {
	timeout := seconds(spec.TimeoutSeconds, defaultPromQLTimeout)

	promClient, err := promapi.NewClient(promapi.Config{
		Address: spec.Endpoint,
		Client:  httpClientForSpec(false, timeout),
	})
	if err != nil {
		return checks.Fail(fmt.Sprintf("invalid Prometheus endpoint URL: %v", err), nil), nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, promWarnings, err := promv1.NewAPI(promClient).Query(ctx, spec.Query, time.Now())
	if err != nil {
		return checks.Fail(fmt.Sprintf("Prometheus query failed: %v", err), map[string]any{
			"endpoint": spec.Endpoint,
			"query":    spec.Query,
		}), nil
	}

	samples := sampleValues(value)
	details := map[string]any{
		"endpoint":    spec.Endpoint,
		"query":       spec.Query,
		"resultType":  value.Type().String(),
		"resultCount": len(samples),
	}
	warnings := []string(promWarnings)
	cond := spec.Condition

	switch cond.Type {
	case "resultCount":
		if compareFloat64(float64(len(samples)), cond.Operator, cond.Threshold) {
			return checks.Result{
				Success:  true,
				Message:  fmt.Sprintf("query returned %d results (resultCount %s %.0f)", len(samples), cond.Operator, cond.Threshold),
				Warnings: warnings,
				Details:  details,
			}, nil
		}
		return checks.Result{
			Message:  fmt.Sprintf("query returned %d results, expected %s %.0f", len(samples), cond.Operator, cond.Threshold),
			Warnings: warnings,
			Details:  details,
		}, nil

	case "value":
		if len(samples) == 0 {
			return checks.Result{
				Message:  "query returned no results to evaluate",
				Warnings: warnings,
				Details:  details,
			}, nil
		}
		var failed []string
		for _, v := range samples {
			if !compareFloat64(v, cond.Operator, cond.Threshold) {
				failed = append(failed, fmt.Sprintf("%.4f", v))
			}
		}
		if len(failed) == 0 {
			return checks.Result{
				Success:  true,
				Message:  fmt.Sprintf("all %d sample values satisfy %s %.4f", len(samples), cond.Operator, cond.Threshold),
				Warnings: warnings,
				Details:  details,
			}, nil
		}
		details["failedValues"] = failed
		return checks.Result{
			Message:  fmt.Sprintf("%d values failed condition %s %.4f", len(failed), cond.Operator, cond.Threshold),
			Warnings: warnings,
			Details:  details,
		}, nil

	default:
		return checks.Result{}, fmt.Errorf("unknown PromQL condition type %q", cond.Type)
	}
}

// sampleValues flattens a query result into one value per series. Range
// results contribute their latest sample.
func sampleValues(v model.Value) []float64 {
	var out []float64
	switch val := v.(type) {
	case model.Vector:
		for _, s := range val {
			out = append(out, float64(s.Value))
		}
	case model.Matrix:
		for _, stream := range val {
			if n := len(stream.Values); n > 0 {
				out = append(out, float64(stream.Values[n-1].Value))
			}
		}
	case *model.Scalar:
		out = append(out, float64(val.Value))
	}
	return out
}

// compareFloat64 evaluates a comparison between two float64 values.
func compareFloat64(actual float64, operator string, threshold float64) bool {
	switch operator {
	case "gte":
		return actual >= threshold
	case "lte":
		return actual <= threshold
	case "eq":
		return actual == threshold
	case "gt":
		return actual > threshold
	case "lt":
		return actual < threshold
	default:
		return false
	}
}
