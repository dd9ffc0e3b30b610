package dynamic

import (
	"context"
	"fmt"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

func (e *Executor) executeResourceCheck(ctx context.Context, spec *releasev1alpha1.ResourceCheckSpec) (checks.Result, error) {
	if e.client == nil {
		return checks.Result{}, ErrNoCluster
	}

	gv, err := schema.ParseGroupVersion(spec.APIVersion)
	if err != nil {
		return checks.Result{}, fmt.Errorf("invalid apiVersion %q: %w", spec.APIVersion, err)
	}
	gvk := gv.WithKind(spec.Kind)

	details := map[string]any{
		"apiVersion": spec.APIVersion,
		"kind":       spec.Kind,
		"namespace":  spec.Namespace,
	}

	resources, err := e.fetchResources(ctx, gvk, spec)
	if apierrors.IsNotFound(err) {
		details["name"] = spec.Name
		return checks.Fail(fmt.Sprintf("%s %s not found", spec.Kind, spec.Name), details), nil
	}
	if err != nil {
		return checks.Result{}, err
	}
	details["resourceCount"] = len(resources)
	if len(resources) == 0 {
		return checks.Fail(fmt.Sprintf("no %s resources found", spec.Kind), details), nil
	}

	var mismatches []string
	for i := range resources {
		mismatches = append(mismatches, conditionMismatches(&resources[i], spec.Conditions)...)
	}
	if len(mismatches) > 0 {
		details["mismatches"] = mismatches
		return checks.Fail(fmt.Sprintf("condition check failed: %s", strings.Join(mismatches, "; ")), details), nil
	}

	return checks.Pass(fmt.Sprintf("all %d %s resources have expected conditions", len(resources), spec.Kind), details), nil
}

// fetchResources returns the single named resource or every resource
// matching the label selector.
func (e *Executor) fetchResources(ctx context.Context, gvk schema.GroupVersionKind, spec *releasev1alpha1.ResourceCheckSpec) ([]unstructured.Unstructured, error) {
	switch {
	case spec.Name != "":
		obj := &unstructured.Unstructured{}
		obj.SetGroupVersionKind(gvk)
		if err := e.client.Get(ctx, types.NamespacedName{Namespace: spec.Namespace, Name: spec.Name}, obj); err != nil {
			return nil, err
		}
		return []unstructured.Unstructured{*obj}, nil

	case spec.LabelSelector != nil:
		selector, err := metav1.LabelSelectorAsSelector(spec.LabelSelector)
		if err != nil {
			return nil, fmt.Errorf("invalid label selector: %w", err)
		}
		list := &unstructured.UnstructuredList{}
		list.SetGroupVersionKind(gvk.GroupVersion().WithKind(gvk.Kind + "List"))
		opts := []client.ListOption{client.MatchingLabelsSelector{Selector: selector}}
		if spec.Namespace != "" {
			opts = append(opts, client.InNamespace(spec.Namespace))
		}
		if err := e.client.List(ctx, list, opts...); err != nil {
			return nil, fmt.Errorf("listing %s resources: %w", spec.Kind, err)
		}
		return list.Items, nil

	default:
		return nil, fmt.Errorf("resourceCheck requires either name or labelSelector")
	}
}

// conditionMismatches lists every expected condition obj does not report.
func conditionMismatches(obj *unstructured.Unstructured, expected []releasev1alpha1.ResourceConditionCheck) []string {
	conditions, found, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil || !found {
		return []string{fmt.Sprintf("%s: no conditions found", obj.GetName())}
	}

	observed := make(map[string]string, len(conditions))
	for _, c := range conditions {
		cond, ok := c.(map[string]any)
		if !ok {
			continue
		}
		condType, _ := cond["type"].(string)
		condStatus, _ := cond["status"].(string)
		observed[condType] = condStatus
	}

	var out []string
	for _, want := range expected {
		got, ok := observed[want.Type]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("%s: condition %s not reported", obj.GetName(), want.Type))
		case got != want.Status:
			out = append(out, fmt.Sprintf("%s: condition %s is %s, want %s", obj.GetName(), want.Type, got, want.Status))
		}
	}
	return out
}
