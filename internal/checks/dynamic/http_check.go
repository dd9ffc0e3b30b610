package dynamic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

const (
	defaultHTTPTimeout   = 5 * time.Second
	defaultSlowThreshold = time.Second
)

// endpointProbe is the outcome of probing one URL.
type endpointProbe struct {
	URL          string `json:"url"`
	StatusCode   int    `json:"statusCode,omitempty"`
	ResponseTime string `json:"responseTime"`
	Error        string `json:"error,omitempty"`

	elapsed time.Duration
	healthy bool
}

// executeHTTPCheck probes every URL. An unhealthy endpoint makes the check
// critical but not blocking: the release may still ship with its runtime
// fallback, but the operator must know.
func (e *Executor) executeHTTPCheck(ctx context.Context, spec *releasev1alpha1.HTTPCheckSpec) (checks.Result, error) {
	if len(spec.URLs) == 0 {
		return checks.Result{}, fmt.Errorf("httpCheck requires at least one URL")
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	expectedCodes := spec.ExpectedStatusCodes
	if len(expectedCodes) == 0 {
		expectedCodes = []int{http.StatusOK}
	}
	slow := defaultSlowThreshold
	if spec.SlowThreshold != nil {
		slow = spec.SlowThreshold.Duration
	}

	httpClient := httpClientForSpec(spec.InsecureSkipTLSVerify, seconds(spec.TimeoutSeconds, defaultHTTPTimeout))
	logger := log.FromContext(ctx)

	var (
		probes   []endpointProbe
		failures []string
		warnings []string
	)
	for _, u := range spec.URLs {
		p := probe(ctx, httpClient, method, u, spec.Headers, expectedCodes)
		probes = append(probes, p)
		logger.V(1).Info("probed endpoint", "url", u, "status", p.StatusCode, "elapsed", p.elapsed)

		if !p.healthy {
			failures = append(failures, fmt.Sprintf("%s: %s", u, p.Error))
			continue
		}
		if p.elapsed > slow {
			warnings = append(warnings, fmt.Sprintf("%s responded in %s, slower than %s", u, p.ResponseTime, slow))
		}
	}

	details := map[string]any{
		"method":    method,
		"endpoints": probes,
	}
	if len(failures) > 0 {
		return checks.Result{
			Critical: true,
			Message: fmt.Sprintf("%d of %d endpoints unhealthy: %s",
				len(failures), len(spec.URLs), strings.Join(failures, "; ")),
			Warnings: warnings,
			Details:  details,
		}, nil
	}

	return checks.Result{
		Success:  true,
		Message:  fmt.Sprintf("all %d endpoints healthy", len(spec.URLs)),
		Warnings: warnings,
		Details:  details,
	}, nil
}

func probe(ctx context.Context, httpClient *http.Client, method, url string, headers map[string]string, expected []int) endpointProbe {
	p := endpointProbe{URL: url}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		p.Error = fmt.Sprintf("failed to create request: %v", err)
		return p
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	p.elapsed = time.Since(start)
	p.ResponseTime = p.elapsed.Round(time.Millisecond).String()
	if err != nil {
		p.Error = fmt.Sprintf("request failed: %v", err)
		return p
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	p.StatusCode = resp.StatusCode
	if !slices.Contains(expected, resp.StatusCode) {
		p.Error = fmt.Sprintf("returned %d, expected one of %v", resp.StatusCode, expected)
		return p
	}
	p.healthy = true
	return p
}
