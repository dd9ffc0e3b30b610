package v1alpha1

import "testing"

func TestCheckSpecIsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		enabled *bool
		want    bool
	}{
		{"nil defaults to true", nil, true},
		{"explicit true", boolPtr(true), true},
		{"explicit false", boolPtr(false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := CheckSpec{Enabled: tt.enabled}
			if got := cs.IsEnabled(); got != tt.want {
				t.Errorf("CheckSpec.IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckSpecType(t *testing.T) {
	tests := []struct {
		name    string
		spec    CheckSpec
		want    string
		wantErr bool
	}{
		{"env", CheckSpec{Name: "env", EnvCheck: &EnvCheckSpec{}}, "envCheck", false},
		{"http", CheckSpec{Name: "api", HTTPCheck: &HTTPCheckSpec{}}, "httpCheck", false},
		{"rollout", CheckSpec{Name: "web", RolloutCheck: &RolloutCheckSpec{}}, "rolloutCheck", false},
		{"none", CheckSpec{Name: "empty"}, "", true},
		{"two", CheckSpec{Name: "both", BuildCheck: &BuildCheckSpec{}, BundleCheck: &BundleCheckSpec{}}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Type()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Type() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Type() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckSpecNeedsCluster(t *testing.T) {
	if (&CheckSpec{HTTPCheck: &HTTPCheckSpec{}}).NeedsCluster() {
		t.Error("http check should not need a cluster")
	}
	if !(&CheckSpec{ResourceCheck: &ResourceCheckSpec{}}).NeedsCluster() {
		t.Error("resource check should need a cluster")
	}
}

func TestTierRankAndParse(t *testing.T) {
	if TierCritical.Rank() >= TierHigh.Rank() || TierMedium.Rank() >= TierLow.Rank() {
		t.Fatal("expected critical < high < medium < low")
	}
	if Tier("urgent").Valid() {
		t.Error("unknown tier reported valid")
	}
	if Tier("urgent").Rank() != len(Tiers) {
		t.Errorf("unknown tier rank = %d, want %d", Tier("urgent").Rank(), len(Tiers))
	}

	got, err := ParseTier("high")
	if err != nil || got != TierHigh {
		t.Errorf("ParseTier(high) = %q, %v", got, err)
	}
	if _, err := ParseTier("HIGH"); err == nil {
		t.Error("expected error for upper-case tier")
	}
}

func boolPtr(b bool) *bool {
	return &b
}
