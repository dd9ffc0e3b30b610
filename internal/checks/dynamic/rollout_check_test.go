package dynamic

import (
	"context"
	"strings"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
)

func int32Ptr(v int32) *int32 { return &v }

func frontendDeployment(replicas, updated, availableReplicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "frontend", Namespace: "web", Generation: 2},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(replicas),
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": "frontend"}},
		},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: 2,
			UpdatedReplicas:    updated,
			AvailableReplicas:  availableReplicas,
		},
	}
}

func readyPod(name, namespace string, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Status: corev1.PodStatus{
			Phase:      corev1.PodRunning,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
		},
	}
}

func runningButNotReadyPod(name, namespace string, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
}

func TestRolloutCheck(t *testing.T) {
	labels := map[string]string{"app": "frontend"}

	tests := []struct {
		name         string
		deployment   *appsv1.Deployment
		minAvailable *int32
		wantPass     bool
		wantMsg      string
	}{
		{
			name:       "fully available",
			deployment: frontendDeployment(3, 3, 3),
			wantPass:   true,
		},
		{
			name:       "rollout in progress",
			deployment: frontendDeployment(3, 1, 3),
			wantMsg:    "rollout in progress",
		},
		{
			name:       "not enough available",
			deployment: frontendDeployment(3, 3, 1),
			wantMsg:    "only 1 replicas",
		},
		{
			name:         "min available override",
			deployment:   frontendDeployment(3, 3, 2),
			minAvailable: int32Ptr(2),
			wantPass:     true,
		},
		{
			name: "generation not observed",
			deployment: func() *appsv1.Deployment {
				d := frontendDeployment(3, 3, 3)
				d.Status.ObservedGeneration = 1
				return d
			}(),
			wantMsg: "has not observed generation 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeClient(tt.deployment,
				readyPod("frontend-1", "web", labels),
				runningButNotReadyPod("frontend-2", "web", labels),
				readyPod("other", "web", map[string]string{"app": "other"}),
			)
			result, err := newTestExecutor(c).Execute(context.Background(), releasev1alpha1.CheckSpec{
				Name: "rollout",
				RolloutCheck: &releasev1alpha1.RolloutCheckSpec{
					Namespace:    "web",
					Name:         "frontend",
					MinAvailable: tt.minAvailable,
				},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Success != tt.wantPass {
				t.Fatalf("Success = %v, want %v: %s", result.Success, tt.wantPass, result.Message)
			}
			if tt.wantMsg != "" && !strings.Contains(result.Message, tt.wantMsg) {
				t.Errorf("message = %q, want substring %q", result.Message, tt.wantMsg)
			}
			if result.Details["readyPods"] != 1 || result.Details["totalPods"] != 2 {
				t.Errorf("pod counts = %v/%v", result.Details["readyPods"], result.Details["totalPods"])
			}
		})
	}
}

func TestRolloutCheck_NotFound(t *testing.T) {
	result, err := newTestExecutor(newFakeClient()).Execute(context.Background(), releasev1alpha1.CheckSpec{
		Name:         "rollout",
		RolloutCheck: &releasev1alpha1.RolloutCheckSpec{Namespace: "web", Name: "frontend"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || !strings.Contains(result.Message, "not found") {
		t.Errorf("expected not-found failure, got %+v", result)
	}
}

func TestIsPodReady(t *testing.T) {
	if !isPodReady(readyPod("a", "ns", nil)) {
		t.Error("expected ready pod")
	}
	if isPodReady(runningButNotReadyPod("b", "ns", nil)) {
		t.Error("expected not-ready pod")
	}
}
