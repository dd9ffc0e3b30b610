package dynamic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
	"github.com/clustergate/releasegate/internal/checks/build"
	"github.com/clustergate/releasegate/internal/checks/bundle"
	"github.com/clustergate/releasegate/internal/checks/envfile"
	"github.com/clustergate/releasegate/internal/checks/secrets"
	"github.com/clustergate/releasegate/internal/checks/version"
)

// ErrNoCluster is returned by cluster checks when no Kubernetes client is
// configured.
var ErrNoCluster = errors.New("no Kubernetes client configured")

// Resolver resolves hostnames. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Executor evaluates policy check entries at runtime.
type Executor struct {
	client     client.Client
	projectDir string
	resolver   Resolver
}

// Option configures an Executor.
type Option func(*Executor)

// WithClient sets the Kubernetes client used by rollout and resource checks.
func WithClient(c client.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithResolver replaces the DNS resolver.
func WithResolver(r Resolver) Option {
	return func(e *Executor) { e.resolver = r }
}

// NewExecutor creates an executor resolving relative paths against projectDir.
func NewExecutor(projectDir string, opts ...Option) *Executor {
	e := &Executor{
		projectDir: projectDir,
		resolver:   net.DefaultResolver,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// fileCheckTiers holds the tiers the file-based checkers declare.
var fileCheckTiers = map[string]releasev1alpha1.Tier{
	"envCheck":     (&envfile.Check{}).DefaultTier(),
	"buildCheck":   (&build.Check{}).DefaultTier(),
	"bundleCheck":  (&bundle.Check{}).DefaultTier(),
	"secretScan":   (&secrets.Check{}).DefaultTier(),
	"versionCheck": (&version.Check{}).DefaultTier(),
}

// DefaultTier returns the tier a check type runs in when the policy does
// not set one.
func DefaultTier(checkType string) releasev1alpha1.Tier {
	if tier, ok := fileCheckTiers[checkType]; ok {
		return tier
	}
	switch checkType {
	case "httpCheck", "dnsCheck", "rolloutCheck":
		return releasev1alpha1.TierHigh
	default:
		return releasev1alpha1.TierMedium
	}
}

// Execute runs the check type configured on spec.
func (e *Executor) Execute(ctx context.Context, spec releasev1alpha1.CheckSpec) (checks.Result, error) {
	c, err := e.checker(spec)
	if err != nil {
		return checks.Result{}, err
	}
	if c != nil {
		log.FromContext(ctx).V(1).Info("running checker", "check", spec.Name, "checker", c.Name())
		return c.Run(ctx)
	}

	switch {
	case spec.HTTPCheck != nil:
		return e.executeHTTPCheck(ctx, spec.HTTPCheck)
	case spec.DNSCheck != nil:
		return e.executeDNSCheck(ctx, spec.DNSCheck)
	case spec.PromQLCheck != nil:
		return e.executePromQLCheck(ctx, spec.PromQLCheck)
	case spec.CommandCheck != nil:
		return e.executeCommandCheck(ctx, spec.CommandCheck)
	case spec.RolloutCheck != nil:
		return e.executeRolloutCheck(ctx, spec.RolloutCheck)
	case spec.ResourceCheck != nil:
		return e.executeResourceCheck(ctx, spec.ResourceCheck)
	default:
		return checks.Result{}, fmt.Errorf("no check type specified for %q", spec.Name)
	}
}

// checker builds the concrete checker of a file-based check entry. It
// returns nil for the network and cluster types Execute handles inline.
func (e *Executor) checker(spec releasev1alpha1.CheckSpec) (checks.Checker, error) {
	switch {
	case spec.EnvCheck != nil:
		return envfile.New(envfile.Config{
			Path:             e.path(spec.EnvCheck.Path, ".env"),
			Required:         spec.EnvCheck.Required,
			IgnoreProcessEnv: spec.EnvCheck.IgnoreProcessEnv,
		}), nil
	case spec.BuildCheck != nil:
		return build.New(build.Config{
			Command:   spec.BuildCheck.Command,
			Dir:       e.path(spec.BuildCheck.Dir, "."),
			OutputDir: spec.BuildCheck.OutputDir,
			Timeout:   seconds(spec.BuildCheck.TimeoutSeconds, build.DefaultTimeout),
			Env:       spec.BuildCheck.Env,
		}), nil
	case spec.BundleCheck != nil:
		cfg := bundle.Config{
			Dir:             e.path(spec.BundleCheck.Dir, "dist"),
			RequiredFiles:   spec.BundleCheck.RequiredFiles,
			AllowSourceMaps: spec.BundleCheck.AllowSourceMaps,
		}
		if spec.BundleCheck.MaxTotalSize != nil {
			cfg.MaxTotalSize = spec.BundleCheck.MaxTotalSize.Value()
		}
		if spec.BundleCheck.MaxAssetSize != nil {
			cfg.MaxAssetSize = spec.BundleCheck.MaxAssetSize.Value()
		}
		return bundle.New(cfg), nil
	case spec.SecretScan != nil:
		cfg := secrets.Config{
			Dir:           e.path(spec.SecretScan.Dir, "dist"),
			Extensions:    spec.SecretScan.Extensions,
			ExtraPatterns: spec.SecretScan.ExtraPatterns,
		}
		if spec.SecretScan.MaxFileSize != nil {
			cfg.MaxFileSize = spec.SecretScan.MaxFileSize.Value()
		}
		c, err := secrets.New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case spec.VersionCheck != nil:
		c, err := version.New(version.Config{
			File:            e.path(spec.VersionCheck.File, "package.json"),
			Constraint:      spec.VersionCheck.Constraint,
			AllowPrerelease: spec.VersionCheck.AllowPrerelease,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, nil
	}
}

// path resolves p against the project directory, falling back to def.
func (e *Executor) path(p, def string) string {
	if p == "" {
		p = def
	}
	if filepath.IsAbs(p) || e.projectDir == "" {
		return p
	}
	return filepath.Join(e.projectDir, p)
}

func seconds(s *int32, def time.Duration) time.Duration {
	if s == nil || *s <= 0 {
		return def
	}
	return time.Duration(*s) * time.Second
}

// httpClientForSpec returns an HTTP client configured for the check spec.
func httpClientForSpec(insecureSkipTLS bool, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
