package v1alpha1

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// GroupVersion is the apiVersion accepted in policy documents.
	GroupVersion = "releasegate.io/v1alpha1"

	// KindReleasePolicy is the kind accepted in policy documents.
	KindReleasePolicy = "ReleasePolicy"
)

// ReleasePolicy declares the checks a release must pass before deployment.
type ReleasePolicy struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ReleasePolicySpec `json:"spec"`
}

// ReleasePolicySpec defines the checks and run settings of a ReleasePolicy.
type ReleasePolicySpec struct {
	// ProjectDir is the root of the project under validation. Relative
	// check paths are resolved against it.
	// +optional
	ProjectDir string `json:"projectDir,omitempty"`

	// ReportPath is where the JSON report is written.
	// +optional
	// +kubebuilder:default=production-readiness-report.json
	ReportPath string `json:"reportPath,omitempty"`

	// Parallelism bounds how many checks run at once. 0 or 1 runs checks
	// sequentially.
	// +optional
	Parallelism int `json:"parallelism,omitempty"`

	// Checks are executed in tier order (critical first), keeping the
	// declared order within a tier.
	Checks []CheckSpec `json:"checks"`
}

// CheckSpec is one entry of a ReleasePolicy. Exactly one check type must be
// specified.
type CheckSpec struct {
	// Name uniquely identifies the check within the policy.
	Name string `json:"name"`

	// Description is a human-readable summary of what the check validates.
	// +optional
	Description string `json:"description,omitempty"`

	// Tier controls execution order and default severity. When unset it
	// depends on the check type: critical for envCheck, buildCheck and
	// secretScan, high for bundleCheck, httpCheck, dnsCheck and
	// rolloutCheck, medium otherwise.
	// +optional
	Tier Tier `json:"tier,omitempty"`

	// ForceCritical escalates a failure of a non-critical tier check to a
	// critical issue.
	// +optional
	ForceCritical bool `json:"forceCritical,omitempty"`

	// BlocksDeployment overrides whether a failure of this check vetoes
	// deployment. When unset the check type decides.
	// +optional
	BlocksDeployment *bool `json:"blocksDeployment,omitempty"`

	// Enabled controls whether this check is active.
	// +optional
	Enabled *bool `json:"enabled,omitempty"`

	// Timeout bounds the whole check. A check that exceeds it is recorded
	// as a critical fault.
	// +optional
	Timeout *metav1.Duration `json:"timeout,omitempty"`

	// EnvCheck validates the environment configuration.
	// +optional
	EnvCheck *EnvCheckSpec `json:"envCheck,omitempty"`

	// BuildCheck invokes the project's build command.
	// +optional
	BuildCheck *BuildCheckSpec `json:"buildCheck,omitempty"`

	// BundleCheck inspects the built bundle on disk.
	// +optional
	BundleCheck *BundleCheckSpec `json:"bundleCheck,omitempty"`

	// SecretScan searches the bundle for leaked credentials.
	// +optional
	SecretScan *SecretScanSpec `json:"secretScan,omitempty"`

	// HTTPCheck probes health endpoints.
	// +optional
	HTTPCheck *HTTPCheckSpec `json:"httpCheck,omitempty"`

	// DNSCheck resolves production hostnames.
	// +optional
	DNSCheck *DNSCheckSpec `json:"dnsCheck,omitempty"`

	// PromQLCheck queries a Prometheus endpoint and evaluates the result.
	// +optional
	PromQLCheck *PromQLCheckSpec `json:"promqlCheck,omitempty"`

	// CommandCheck runs a local command and uses its exit code as the result.
	// +optional
	CommandCheck *CommandCheckSpec `json:"commandCheck,omitempty"`

	// RolloutCheck verifies a Deployment in the target cluster.
	// +optional
	RolloutCheck *RolloutCheckSpec `json:"rolloutCheck,omitempty"`

	// ResourceCheck asserts conditions on any Kubernetes resource.
	// +optional
	ResourceCheck *ResourceCheckSpec `json:"resourceCheck,omitempty"`

	// VersionCheck validates the release version declared by the project.
	// +optional
	VersionCheck *VersionCheckSpec `json:"versionCheck,omitempty"`
}

// IsEnabled returns true if the check is enabled (defaults to true if not set).
func (c *CheckSpec) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// Type returns the name of the single check type configured on c, or an
// error when none or several are set.
func (c *CheckSpec) Type() (string, error) {
	var types []string
	if c.EnvCheck != nil {
		types = append(types, "envCheck")
	}
	if c.BuildCheck != nil {
		types = append(types, "buildCheck")
	}
	if c.BundleCheck != nil {
		types = append(types, "bundleCheck")
	}
	if c.SecretScan != nil {
		types = append(types, "secretScan")
	}
	if c.HTTPCheck != nil {
		types = append(types, "httpCheck")
	}
	if c.DNSCheck != nil {
		types = append(types, "dnsCheck")
	}
	if c.PromQLCheck != nil {
		types = append(types, "promqlCheck")
	}
	if c.CommandCheck != nil {
		types = append(types, "commandCheck")
	}
	if c.RolloutCheck != nil {
		types = append(types, "rolloutCheck")
	}
	if c.ResourceCheck != nil {
		types = append(types, "resourceCheck")
	}
	if c.VersionCheck != nil {
		types = append(types, "versionCheck")
	}
	switch len(types) {
	case 0:
		return "", fmt.Errorf("check %q: no check type specified", c.Name)
	case 1:
		return types[0], nil
	default:
		return "", fmt.Errorf("check %q: exactly one check type allowed, got %v", c.Name, types)
	}
}

// NeedsCluster reports whether the check talks to a Kubernetes API server.
func (c *CheckSpec) NeedsCluster() bool {
	return c.RolloutCheck != nil || c.ResourceCheck != nil
}

// --- Check type specs ---

// EnvCheckSpec validates a dotenv file and the process environment.
type EnvCheckSpec struct {
	// Path of the dotenv file. Defaults to ".env".
	// +optional
	Path string `json:"path,omitempty"`

	// Required lists keys that must be set to a non-empty value.
	Required []string `json:"required"`

	// IgnoreProcessEnv disables falling back to the process environment
	// for keys missing from the file.
	// +optional
	IgnoreProcessEnv bool `json:"ignoreProcessEnv,omitempty"`
}

// BuildCheckSpec runs the project's build.
type BuildCheckSpec struct {
	// Command is the build command and its arguments.
	// Defaults to ["npm", "run", "build"].
	// +optional
	Command []string `json:"command,omitempty"`

	// Dir is the working directory. Defaults to the project directory.
	// +optional
	Dir string `json:"dir,omitempty"`

	// OutputDir must exist and be non-empty after a successful build.
	// Defaults to "dist".
	// +optional
	OutputDir string `json:"outputDir,omitempty"`

	// TimeoutSeconds bounds the build. Defaults to 60.
	// +optional
	TimeoutSeconds *int32 `json:"timeoutSeconds,omitempty"`

	// Env holds extra KEY=VALUE entries for the build process.
	// +optional
	Env []string `json:"env,omitempty"`
}

// BundleCheckSpec inspects the built bundle.
type BundleCheckSpec struct {
	// Dir is the bundle directory. Defaults to "dist".
	// +optional
	Dir string `json:"dir,omitempty"`

	// RequiredFiles must exist relative to Dir. Defaults to ["index.html"].
	// +optional
	RequiredFiles []string `json:"requiredFiles,omitempty"`

	// MaxTotalSize fails the check when the bundle is larger.
	// +optional
	MaxTotalSize *resource.Quantity `json:"maxTotalSize,omitempty"`

	// MaxAssetSize raises a warning for each larger asset.
	// +optional
	MaxAssetSize *resource.Quantity `json:"maxAssetSize,omitempty"`

	// AllowSourceMaps suppresses the warning for shipped *.map files.
	// +optional
	AllowSourceMaps bool `json:"allowSourceMaps,omitempty"`
}

// SecretScanSpec searches bundle assets for credentials.
type SecretScanSpec struct {
	// Dir is the directory to scan. Defaults to "dist".
	// +optional
	Dir string `json:"dir,omitempty"`

	// Extensions limits the scan to files with these suffixes.
	// +optional
	Extensions []string `json:"extensions,omitempty"`

	// ExtraPatterns are additional regular expressions to flag.
	// +optional
	ExtraPatterns []string `json:"extraPatterns,omitempty"`

	// MaxFileSize skips larger files, each with a warning. Defaults to 5Mi.
	// +optional
	MaxFileSize *resource.Quantity `json:"maxFileSize,omitempty"`
}

// HTTPCheckSpec probes one or more HTTP endpoints.
type HTTPCheckSpec struct {
	// URLs to probe. Every URL must answer with an expected status code.
	URLs []string `json:"urls"`

	// Method is the HTTP method. Defaults to GET.
	// +optional
	Method string `json:"method,omitempty"`

	// ExpectedStatusCodes is the set of acceptable HTTP response codes.
	// Defaults to [200].
	// +optional
	ExpectedStatusCodes []int `json:"expectedStatusCodes,omitempty"`

	// TimeoutSeconds is the per-request timeout. Defaults to 5.
	// +optional
	TimeoutSeconds *int32 `json:"timeoutSeconds,omitempty"`

	// SlowThreshold raises a warning for slower responses. Defaults to 1s.
	// +optional
	SlowThreshold *metav1.Duration `json:"slowThreshold,omitempty"`

	// InsecureSkipTLSVerify disables TLS certificate verification.
	// +optional
	InsecureSkipTLSVerify bool `json:"insecureSkipTLSVerify,omitempty"`

	// Headers to include in the request.
	// +optional
	Headers map[string]string `json:"headers,omitempty"`
}

// DNSCheckSpec resolves hostnames.
type DNSCheckSpec struct {
	// Hosts must each resolve to at least one address.
	Hosts []string `json:"hosts"`
}

// PromQLCheckSpec defines a check that queries Prometheus and evaluates the result.
type PromQLCheckSpec struct {
	// Endpoint is the Prometheus server URL.
	Endpoint string `json:"endpoint"`

	// Query is the PromQL expression to evaluate.
	Query string `json:"query"`

	// Condition defines how to evaluate the query result.
	Condition PromQLCondition `json:"condition"`

	// TimeoutSeconds is the query timeout. Defaults to 10.
	// +optional
	TimeoutSeconds *int32 `json:"timeoutSeconds,omitempty"`
}

// PromQLCondition defines how to evaluate a PromQL query result.
type PromQLCondition struct {
	// Type is either "resultCount" or "value".
	// +kubebuilder:validation:Enum=resultCount;value
	Type string `json:"type"`

	// Operator is the comparison operator: gte, lte, eq, gt, lt.
	// +kubebuilder:validation:Enum=gte;lte;eq;gt;lt
	Operator string `json:"operator"`

	// Threshold is the value to compare against.
	Threshold float64 `json:"threshold"`
}

// CommandCheckSpec runs a local command.
type CommandCheckSpec struct {
	// Command is the executable and its arguments.
	Command []string `json:"command"`

	// Dir is the working directory. Defaults to the project directory.
	// +optional
	Dir string `json:"dir,omitempty"`

	// Env holds extra KEY=VALUE entries.
	// +optional
	Env []string `json:"env,omitempty"`

	// TimeoutSeconds bounds the command. Defaults to 30.
	// +optional
	TimeoutSeconds *int32 `json:"timeoutSeconds,omitempty"`
}

// RolloutCheckSpec verifies that a Deployment is available.
type RolloutCheckSpec struct {
	// Namespace of the Deployment.
	Namespace string `json:"namespace"`

	// Name of the Deployment.
	Name string `json:"name"`

	// MinAvailable is the minimum number of available replicas. Defaults
	// to the Deployment's desired replica count.
	// +optional
	MinAvailable *int32 `json:"minAvailable,omitempty"`
}

// ResourceCheckSpec defines a check that asserts conditions on a Kubernetes resource.
type ResourceCheckSpec struct {
	// APIVersion of the resource (e.g. "apps/v1").
	APIVersion string `json:"apiVersion"`

	// Kind of the resource (e.g. "Deployment").
	Kind string `json:"kind"`

	// Namespace of the resource. Empty for cluster-scoped resources.
	// +optional
	Namespace string `json:"namespace,omitempty"`

	// Name of the resource. Mutually exclusive with LabelSelector.
	// +optional
	Name string `json:"name,omitempty"`

	// LabelSelector selects resources to check. Mutually exclusive with Name.
	// +optional
	LabelSelector *metav1.LabelSelector `json:"labelSelector,omitempty"`

	// Conditions to assert on the resource.
	Conditions []ResourceConditionCheck `json:"conditions"`
}

// ResourceConditionCheck defines an expected condition on a resource.
type ResourceConditionCheck struct {
	// Type is the condition type to check.
	Type string `json:"type"`

	// Status is the expected condition status (e.g. "True", "False").
	Status string `json:"status"`
}

// VersionCheckSpec validates the semantic version of the release.
type VersionCheckSpec struct {
	// File is a JSON manifest carrying a top-level "version" field.
	// Defaults to "package.json".
	// +optional
	File string `json:"file,omitempty"`

	// Constraint the version must satisfy, e.g. ">= 1.0.0".
	// +optional
	Constraint string `json:"constraint,omitempty"`

	// AllowPrerelease accepts versions such as 1.2.0-rc.1.
	// +optional
	AllowPrerelease bool `json:"allowPrerelease,omitempty"`
}
