package dynamic

import (
	"context"
	"fmt"
	"strings"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

func (e *Executor) executeDNSCheck(ctx context.Context, spec *releasev1alpha1.DNSCheckSpec) (checks.Result, error) {
	if len(spec.Hosts) == 0 {
		return checks.Result{}, fmt.Errorf("dnsCheck requires at least one host")
	}

	resolved := make(map[string][]string, len(spec.Hosts))
	var failures []string
	for _, host := range spec.Hosts {
		addrs, err := e.resolver.LookupHost(ctx, host)
		if err != nil || len(addrs) == 0 {
			msg := "no addresses"
			if err != nil {
				msg = err.Error()
			}
			failures = append(failures, fmt.Sprintf("%s: %s", host, msg))
			continue
		}
		resolved[host] = addrs
	}

	details := map[string]any{"resolved": resolved}
	if len(failures) > 0 {
		details["failures"] = failures
		return checks.Fail(fmt.Sprintf("DNS resolution failed for %s", strings.Join(failures, "; ")), details), nil
	}
	return checks.Pass(fmt.Sprintf("%d hosts resolve", len(spec.Hosts)), details), nil
}
