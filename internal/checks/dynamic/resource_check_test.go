package dynamic

import (
	"context"
	"strings"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

func deploymentWithConditions(name, namespace string, conditions []any) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"})
	obj.SetName(name)
	obj.SetNamespace(namespace)
	if conditions != nil {
		obj.Object["status"] = map[string]any{"conditions": conditions}
	}
	return obj
}

func available(status string) []any {
	return []any{map[string]any{"type": "Available", "status": status}}
}

func runResourceCheck(t *testing.T, executor *Executor, spec *releasev1alpha1.ResourceCheckSpec) checks.Result {
	t.Helper()
	if spec.APIVersion == "" {
		spec.APIVersion = "apps/v1"
		spec.Kind = "Deployment"
	}
	if spec.Conditions == nil {
		spec.Conditions = []releasev1alpha1.ResourceConditionCheck{{Type: "Available", Status: "True"}}
	}
	result, err := executor.Execute(context.Background(), releasev1alpha1.CheckSpec{Name: "api", ResourceCheck: spec})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestResourceCheck_NamedResourceMatching(t *testing.T) {
	executor := newTestExecutor(newFakeClient(deploymentWithConditions("api", "prod", available("True"))))

	result := runResourceCheck(t, executor, &releasev1alpha1.ResourceCheckSpec{Namespace: "prod", Name: "api"})
	if !result.Success {
		t.Errorf("expected success, got %s", result.Message)
	}
}

func TestResourceCheck_ConditionMismatch(t *testing.T) {
	executor := newTestExecutor(newFakeClient(deploymentWithConditions("api", "prod", available("False"))))

	result := runResourceCheck(t, executor, &releasev1alpha1.ResourceCheckSpec{Namespace: "prod", Name: "api"})
	if result.Success {
		t.Fatal("expected failure for condition mismatch")
	}
	if !strings.Contains(result.Message, "Available is False, want True") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestResourceCheck_ResourceNotFound(t *testing.T) {
	executor := newTestExecutor(newFakeClient())

	result := runResourceCheck(t, executor, &releasev1alpha1.ResourceCheckSpec{Namespace: "prod", Name: "missing"})
	if result.Success {
		t.Error("expected failure for missing resource")
	}
}

func TestResourceCheck_NoConditions(t *testing.T) {
	executor := newTestExecutor(newFakeClient(deploymentWithConditions("bare", "prod", nil)))

	result := runResourceCheck(t, executor, &releasev1alpha1.ResourceCheckSpec{Namespace: "prod", Name: "bare"})
	if result.Success || !strings.Contains(result.Message, "no conditions found") {
		t.Errorf("expected no-conditions failure, got %+v", result)
	}
}

func TestResourceCheck_NeitherNameNorSelector(t *testing.T) {
	executor := newTestExecutor(newFakeClient())
	_, err := executor.Execute(context.Background(), releasev1alpha1.CheckSpec{
		Name: "api",
		ResourceCheck: &releasev1alpha1.ResourceCheckSpec{
			APIVersion: "apps/v1",
			Kind:       "Deployment",
			Conditions: []releasev1alpha1.ResourceConditionCheck{{Type: "Available", Status: "True"}},
		},
	})
	if err == nil {
		t.Error("expected configuration error when neither name nor labelSelector is set")
	}
}

func TestResourceCheck_LabelSelectorMultiple(t *testing.T) {
	a := deploymentWithConditions("web-a", "prod", available("True"))
	a.SetLabels(map[string]string{"tier": "frontend"})
	b := deploymentWithConditions("web-b", "prod", available("True"))
	b.SetLabels(map[string]string{"tier": "frontend"})
	other := deploymentWithConditions("worker", "prod", available("False"))
	other.SetLabels(map[string]string{"tier": "backend"})

	executor := newTestExecutor(newFakeClient(a, b, other))
	result := runResourceCheck(t, executor, &releasev1alpha1.ResourceCheckSpec{
		Namespace:     "prod",
		LabelSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"tier": "frontend"}},
	})
	if !result.Success {
		t.Errorf("expected success for matching resources: %s", result.Message)
	}
	if result.Details["resourceCount"] != 2 {
		t.Errorf("resourceCount = %v", result.Details["resourceCount"])
	}
}
