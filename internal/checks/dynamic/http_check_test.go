package dynamic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
)

func statusServer(code int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
}

func runHTTPCheck(t *testing.T, spec *releasev1alpha1.HTTPCheckSpec) (bool, bool, string, []string) {
	t.Helper()
	result, err := NewExecutor("").Execute(context.Background(), releasev1alpha1.CheckSpec{Name: "health", HTTPCheck: spec})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result.Success, result.Critical, result.Message, result.Warnings
}

func TestHTTPCheck_Returns200(t *testing.T) {
	srv := statusServer(http.StatusOK)
	defer srv.Close()

	ok, _, msg, warnings := runHTTPCheck(t, &releasev1alpha1.HTTPCheckSpec{URLs: []string{srv.URL, srv.URL + "/health"}})
	if !ok {
		t.Errorf("expected success, got %s", msg)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestHTTPCheck_UnhealthyIsCriticalNotBlocking(t *testing.T) {
	healthy := statusServer(http.StatusOK)
	defer healthy.Close()
	broken := statusServer(http.StatusInternalServerError)
	defer broken.Close()

	result, err := NewExecutor("").Execute(context.Background(), releasev1alpha1.CheckSpec{
		Name:      "health",
		HTTPCheck: &releasev1alpha1.HTTPCheckSpec{URLs: []string{healthy.URL, broken.URL}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || !result.Critical || result.BlocksDeployment {
		t.Errorf("expected critical non-blocking failure, got %+v", result)
	}
	if !strings.HasPrefix(result.Message, "1 of 2 endpoints unhealthy") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestHTTPCheck_CustomExpectedCodes(t *testing.T) {
	srv := statusServer(http.StatusCreated)
	defer srv.Close()

	ok, _, msg, _ := runHTTPCheck(t, &releasev1alpha1.HTTPCheckSpec{
		URLs:                []string{srv.URL},
		ExpectedStatusCodes: []int{200, 201},
	})
	if !ok {
		t.Errorf("expected success for 201 with expected codes [200,201]: %s", msg)
	}
}

func TestHTTPCheck_CustomHeadersAndMethod(t *testing.T) {
	var receivedAuth, receivedMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		receivedMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runHTTPCheck(t, &releasev1alpha1.HTTPCheckSpec{
		URLs:    []string{srv.URL},
		Method:  http.MethodHead,
		Headers: map[string]string{"Authorization": "Bearer token123"},
	})
	if receivedAuth != "Bearer token123" {
		t.Errorf("expected Authorization header = %q, got %q", "Bearer token123", receivedAuth)
	}
	if receivedMethod != http.MethodHead {
		t.Errorf("expected method = %q, got %q", http.MethodHead, receivedMethod)
	}
}

func TestHTTPCheck_SlowResponseWarns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok, _, _, warnings := runHTTPCheck(t, &releasev1alpha1.HTTPCheckSpec{
		URLs:          []string{srv.URL},
		SlowThreshold: &metav1.Duration{Duration: 10 * time.Millisecond},
	})
	if !ok {
		t.Fatal("slow endpoints should still pass")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "slower than 10ms") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestHTTPCheck_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	timeout := int32(1)
	ok, critical, msg, _ := runHTTPCheck(t, &releasev1alpha1.HTTPCheckSpec{
		URLs:           []string{srv.URL},
		TimeoutSeconds: &timeout,
	})
	if ok || !critical {
		t.Errorf("expected critical failure on timeout, got ok=%v critical=%v", ok, critical)
	}
	if !strings.Contains(msg, "request failed") {
		t.Errorf("message = %q", msg)
	}
}

func TestHTTPCheck_InvalidURL(t *testing.T) {
	ok, _, _, _ := runHTTPCheck(t, &releasev1alpha1.HTTPCheckSpec{URLs: []string{"://not-a-valid-url"}})
	if ok {
		t.Error("expected failure for invalid URL")
	}
}

func TestHTTPCheck_NoURLs(t *testing.T) {
	_, err := NewExecutor("").Execute(context.Background(), releasev1alpha1.CheckSpec{
		Name:      "health",
		HTTPCheck: &releasev1alpha1.HTTPCheckSpec{},
	})
	if err == nil {
		t.Error("expected configuration error")
	}
}
