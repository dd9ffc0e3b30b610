package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gofrs/flock"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks/dynamic"
	"github.com/clustergate/releasegate/internal/validation"
)

const (
	bannerApproved = "DEPLOYMENT APPROVED"
	bannerBlocked  = "DEPLOYMENT BLOCKED"
)

// FormatText writes a human-readable summary of the report to the writer.
func FormatText(w io.Writer, report *validation.Report) {
	fmt.Fprintln(w, "RELEASEGATE PRODUCTION READINESS")
	fmt.Fprintln(w, "================================")
	fmt.Fprintln(w)

	for _, t := range report.Tests {
		fmt.Fprintf(w, "%s %s (%s, %s)\n", marker(t), t.Name, t.Tier, time.Duration(t.DurationMs)*time.Millisecond)
		fmt.Fprintf(w, "       %s\n", t.Message)
		for _, warning := range t.Warnings {
			fmt.Fprintf(w, "       warning: %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	s := report.Summary
	fmt.Fprintln(w, strings.Repeat("-", 32))
	fmt.Fprintf(w, "Results: %d/%d passed (%d%%), %d failed, %d critical, %d warnings\n",
		s.Passed, s.Total, s.SuccessRate, s.Failed, s.Critical, s.Warnings)
	if !report.Complete {
		fmt.Fprintln(w, "Run aborted: not every check completed, the verdict is not authoritative")
	}
	if len(report.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recommendations:")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(w, "  [%s] %s: %s\n", rec.Priority, rec.Action, rec.Details)
		}
	}
	fmt.Fprintln(w)

	// The verdict always closes the summary.
	if s.DeploymentReady {
		fmt.Fprintln(w, bannerApproved)
	} else {
		fmt.Fprintln(w, bannerBlocked)
	}
	fmt.Fprintf(w, "Deployment Risk: %s\n", s.DeploymentRisk)
	if !s.DeploymentReady {
		writeIssues(w, "Deployment blockers", report.DeploymentBlockers)
		writeIssues(w, "Critical issues", report.CriticalIssues)
	}
}

func marker(t validation.TestEntry) string {
	switch {
	case t.Success:
		return "[PASS]"
	case t.Critical:
		return "[CRIT]"
	default:
		return "[FAIL]"
	}
}

func writeIssues(w io.Writer, title string, issues []validation.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for i, issue := range issues {
		fmt.Fprintf(w, "  %d. %s: %s\n", i+1, issue.Name, issue.Message)
	}
}

// FormatJSON writes the report as indented JSON to the writer.
func FormatJSON(w io.Writer, report *validation.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// FormatCheckList writes the checks of a policy in execution order.
func FormatCheckList(w io.Writer, policy *releasev1alpha1.ReleasePolicy) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tTIER\tENABLED\tDESCRIPTION")
	for _, tier := range releasev1alpha1.Tiers {
		for _, cs := range policy.Spec.Checks {
			typ, err := cs.Type()
			if err != nil {
				return err
			}
			if effectiveTier(cs.Tier, typ) != tier {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", cs.Name, typ, tier, cs.IsEnabled(), cs.Description)
		}
	}
	return tw.Flush()
}

func effectiveTier(tier releasev1alpha1.Tier, checkType string) releasev1alpha1.Tier {
	if tier == "" {
		return dynamic.DefaultTier(checkType)
	}
	return tier
}

// WriteReport writes the report as JSON to path. The file is replaced
// atomically under an advisory lock so concurrent runs never interleave.
func WriteReport(path string, report *validation.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking report: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp report: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("replacing report: %w", err)
	}
	return nil
}
