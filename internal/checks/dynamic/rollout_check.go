package dynamic

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

// executeRolloutCheck verifies that the target Deployment has finished
// rolling out and has enough available replicas.
func (e *Executor) executeRolloutCheck(ctx context.Context, spec *releasev1alpha1.RolloutCheckSpec) (checks.Result, error) {
	if e.client == nil {
		return checks.Result{}, ErrNoCluster
	}

	ref := fmt.Sprintf("%s/%s", spec.Namespace, spec.Name)
	dep := &appsv1.Deployment{}
	err := e.client.Get(ctx, types.NamespacedName{Namespace: spec.Namespace, Name: spec.Name}, dep)
	if apierrors.IsNotFound(err) {
		return checks.Fail(fmt.Sprintf("deployment %s not found", ref), map[string]any{"deployment": ref}), nil
	}
	if err != nil {
		return checks.Result{}, fmt.Errorf("getting deployment %s: %w", ref, err)
	}

	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	minAvailable := desired
	if spec.MinAvailable != nil {
		minAvailable = *spec.MinAvailable
	}

	details := map[string]any{
		"deployment":        ref,
		"desiredReplicas":   desired,
		"updatedReplicas":   dep.Status.UpdatedReplicas,
		"availableReplicas": dep.Status.AvailableReplicas,
		"minAvailable":      minAvailable,
	}

	readyPods, totalPods, err := e.countReadyPods(ctx, spec.Namespace, dep.Spec.Selector)
	if err != nil {
		return checks.Result{}, err
	}
	details["readyPods"] = readyPods
	details["totalPods"] = totalPods

	if dep.Status.ObservedGeneration < dep.Generation {
		return checks.Fail(fmt.Sprintf("deployment %s has not observed generation %d yet", ref, dep.Generation), details), nil
	}
	if dep.Status.UpdatedReplicas < desired {
		return checks.Fail(fmt.Sprintf("deployment %s rollout in progress: %d of %d replicas updated",
			ref, dep.Status.UpdatedReplicas, desired), details), nil
	}
	if dep.Status.AvailableReplicas < minAvailable {
		return checks.Fail(fmt.Sprintf("only %d replicas of %s available, need at least %d",
			dep.Status.AvailableReplicas, ref, minAvailable), details), nil
	}

	return checks.Pass(fmt.Sprintf("deployment %s available: %d/%d replicas (minimum %d)",
		ref, dep.Status.AvailableReplicas, desired, minAvailable), details), nil
}

func (e *Executor) countReadyPods(ctx context.Context, namespace string, ls *metav1.LabelSelector) (int, int, error) {
	selector, err := convertLabelSelector(ls)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid label selector: %w", err)
	}

	podList := &corev1.PodList{}
	if err := e.client.List(ctx, podList,
		client.InNamespace(namespace),
		client.MatchingLabelsSelector{Selector: selector},
	); err != nil {
		return 0, 0, fmt.Errorf("listing pods: %w", err)
	}

	ready := 0
	for i := range podList.Items {
		if podList.Items[i].Status.Phase == corev1.PodRunning && isPodReady(&podList.Items[i]) {
			ready++
		}
	}
	return ready, len(podList.Items), nil
}

func isPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func convertLabelSelector(ls *metav1.LabelSelector) (labels.Selector, error) {
	if ls == nil {
		return labels.Everything(), nil
	}
	return metav1.LabelSelectorAsSelector(ls)
}
