// Package policy loads, defaults, and validates ReleasePolicy documents.
package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"

	"github.com/invopop/jsonschema"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
)

// DefaultReportPath is where the JSON report is written when the policy
// does not say otherwise.
const DefaultReportPath = "production-readiness-report.json"

var validOperators = map[string]bool{"gte": true, "lte": true, "eq": true, "gt": true, "lt": true}

// Load reads a ReleasePolicy from a YAML or JSON file. Unknown fields are
// rejected. The returned policy is defaulted and validated.
func Load(path string) (*releasev1alpha1.ReleasePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy: %w", err)
	}
	return Parse(data)
}

// Parse decodes a ReleasePolicy document, then defaults and validates it.
func Parse(data []byte) (*releasev1alpha1.ReleasePolicy, error) {
	var p releasev1alpha1.ReleasePolicy
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	if p.APIVersion != "" && p.APIVersion != releasev1alpha1.GroupVersion {
		return nil, fmt.Errorf("unsupported apiVersion %q, want %s", p.APIVersion, releasev1alpha1.GroupVersion)
	}
	if p.Kind != "" && p.Kind != releasev1alpha1.KindReleasePolicy {
		return nil, fmt.Errorf("unsupported kind %q, want %s", p.Kind, releasev1alpha1.KindReleasePolicy)
	}
	ApplyDefaults(&p)
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Default returns the reference policy for a static frontend project:
// environment, build, bundle, and secret checks followed by the version
// check.
func Default() *releasev1alpha1.ReleasePolicy {
	maxTotal := resource.MustParse("5Mi")
	maxAsset := resource.MustParse("500Ki")
	p := &releasev1alpha1.ReleasePolicy{
		TypeMeta:   metav1.TypeMeta{APIVersion: releasev1alpha1.GroupVersion, Kind: releasev1alpha1.KindReleasePolicy},
		ObjectMeta: metav1.ObjectMeta{Name: "default"},
		Spec: releasev1alpha1.ReleasePolicySpec{
			Checks: []releasev1alpha1.CheckSpec{
				{
					Name:          "environment",
					Description:   "Environment variables are present and not placeholders",
					Tier:          releasev1alpha1.TierHigh,
					ForceCritical: true,
					EnvCheck:      &releasev1alpha1.EnvCheckSpec{},
				},
				{
					Name:        "build",
					Description: "Production build succeeds and produces output",
					Tier:        releasev1alpha1.TierCritical,
					BuildCheck:  &releasev1alpha1.BuildCheckSpec{},
				},
				{
					Name:        "secrets",
					Description: "Built assets contain no credentials",
					Tier:        releasev1alpha1.TierCritical,
					SecretScan:  &releasev1alpha1.SecretScanSpec{},
				},
				{
					Name:        "bundle",
					Description: "Bundle is complete and within size budget",
					Tier:        releasev1alpha1.TierHigh,
					BundleCheck: &releasev1alpha1.BundleCheckSpec{
						MaxTotalSize: &maxTotal,
						MaxAssetSize: &maxAsset,
					},
				},
				{
					Name:         "version",
					Description:  "Release version is valid semver",
					Tier:         releasev1alpha1.TierMedium,
					VersionCheck: &releasev1alpha1.VersionCheckSpec{},
				},
			},
		},
	}
	ApplyDefaults(p)
	return p
}

// ApplyDefaults fills in unset top-level fields.
func ApplyDefaults(p *releasev1alpha1.ReleasePolicy) {
	if p.APIVersion == "" {
		p.APIVersion = releasev1alpha1.GroupVersion
	}
	if p.Kind == "" {
		p.Kind = releasev1alpha1.KindReleasePolicy
	}
	if p.Spec.ProjectDir == "" {
		p.Spec.ProjectDir = "."
	}
	if p.Spec.ReportPath == "" {
		p.Spec.ReportPath = DefaultReportPath
	}
}

// Validate returns every problem found in the policy, joined.
func Validate(p *releasev1alpha1.ReleasePolicy) error {
	var errs []error
	if p.Spec.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism must not be negative, got %d", p.Spec.Parallelism))
	}
	if len(p.Spec.Checks) == 0 {
		errs = append(errs, errors.New("policy declares no checks"))
	}

	seen := make(map[string]bool, len(p.Spec.Checks))
	for i := range p.Spec.Checks {
		cs := &p.Spec.Checks[i]
		if cs.Name == "" {
			errs = append(errs, fmt.Errorf("checks[%d]: name is required", i))
		} else if seen[cs.Name] {
			errs = append(errs, fmt.Errorf("checks[%d]: duplicate name %q", i, cs.Name))
		}
		seen[cs.Name] = true

		if cs.Tier != "" && !cs.Tier.Valid() {
			errs = append(errs, fmt.Errorf("check %q: unknown tier %q", cs.Name, cs.Tier))
		}
		if cs.Timeout != nil && cs.Timeout.Duration <= 0 {
			errs = append(errs, fmt.Errorf("check %q: timeout must be positive", cs.Name))
		}
		if _, err := cs.Type(); err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, validateCheck(cs)...)
	}
	return errors.Join(errs...)
}

func validateCheck(cs *releasev1alpha1.CheckSpec) []error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("check %q: "+format, append([]any{cs.Name}, args...)...))
	}

	switch {
	case cs.HTTPCheck != nil:
		if len(cs.HTTPCheck.URLs) == 0 {
			invalid("httpCheck.urls must not be empty")
		}
	case cs.DNSCheck != nil:
		if len(cs.DNSCheck.Hosts) == 0 {
			invalid("dnsCheck.hosts must not be empty")
		}
	case cs.CommandCheck != nil:
		if len(cs.CommandCheck.Command) == 0 {
			invalid("commandCheck.command must not be empty")
		}
	case cs.PromQLCheck != nil:
		pc := cs.PromQLCheck
		if pc.Endpoint == "" || pc.Query == "" {
			invalid("promqlCheck.endpoint and promqlCheck.query are required")
		}
		if pc.Condition.Type != "resultCount" && pc.Condition.Type != "value" {
			invalid("promqlCheck.condition.type must be resultCount or value, got %q", pc.Condition.Type)
		}
		if !validOperators[pc.Condition.Operator] {
			invalid("promqlCheck.condition.operator %q is not one of gte, lte, eq, gt, lt", pc.Condition.Operator)
		}
	case cs.RolloutCheck != nil:
		if cs.RolloutCheck.Namespace == "" || cs.RolloutCheck.Name == "" {
			invalid("rolloutCheck.namespace and rolloutCheck.name are required")
		}
	case cs.ResourceCheck != nil:
		rc := cs.ResourceCheck
		if rc.APIVersion == "" || rc.Kind == "" {
			invalid("resourceCheck.apiVersion and resourceCheck.kind are required")
		}
		if (rc.Name == "") == (rc.LabelSelector == nil) {
			invalid("resourceCheck needs exactly one of name or labelSelector")
		}
		if len(rc.Conditions) == 0 {
			invalid("resourceCheck.conditions must not be empty")
		}
	case cs.SecretScan != nil:
		for _, pattern := range cs.SecretScan.ExtraPatterns {
			if _, err := regexp.Compile(pattern); err != nil {
				invalid("secretScan.extraPatterns: %v", err)
			}
		}
	}
	return errs
}

// Schema returns the JSON Schema of the ReleasePolicy document.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
		Mapper:         mapKubernetesTypes,
	}
	s := r.Reflect(&releasev1alpha1.ReleasePolicy{})
	s.Title = releasev1alpha1.KindReleasePolicy
	s.Description = "Checks a release must pass before deployment."
	return json.MarshalIndent(s, "", "  ")
}

// mapKubernetesTypes describes apimachinery types by their wire form
// rather than their Go structure.
func mapKubernetesTypes(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeOf(metav1.Duration{}):
		return &jsonschema.Schema{Type: "string", Description: "Go duration, e.g. 30s or 2m"}
	case reflect.TypeOf(resource.Quantity{}):
		return &jsonschema.Schema{
			OneOf:       []*jsonschema.Schema{{Type: "string"}, {Type: "integer"}},
			Description: "Kubernetes quantity, e.g. 500Ki or 5Mi",
		}
	case reflect.TypeOf(metav1.ObjectMeta{}):
		return &jsonschema.Schema{Type: "object", Description: "Standard object metadata"}
	}
	return nil
}
