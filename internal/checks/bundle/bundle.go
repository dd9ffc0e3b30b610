// Package bundle inspects a built web bundle on disk: required entry
// points, total and per-asset size budgets, and shipped source maps.
package bundle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"

	releasev1alpha1 "github.com/clustergate/releasegate/api/v1alpha1"
	"github.com/clustergate/releasegate/internal/checks"
)

const CheckName = "bundle"

// Config holds bundle check configuration. Zero size budgets are disabled.
type Config struct {
	Dir             string
	RequiredFiles   []string
	MaxTotalSize    int64
	MaxAssetSize    int64
	AllowSourceMaps bool
}

// Check inspects the bundle directory.
type Check struct {
	cfg Config
}

// New creates a bundle Check.
func New(cfg Config) *Check {
	if cfg.Dir == "" {
		cfg.Dir = "dist"
	}
	if cfg.RequiredFiles == nil {
		cfg.RequiredFiles = []string{"index.html"}
	}
	return &Check{cfg: cfg}
}

func (c *Check) Name() string {
	return CheckName
}

func (c *Check) DefaultTier() releasev1alpha1.Tier {
	return releasev1alpha1.TierHigh
}

// Stats summarizes a bundle directory.
type Stats struct {
	Files      int
	TotalBytes int64

	// GzipBytes is the size of the bundle compressed as one gzip stream.
	GzipBytes int64

	// Fingerprint is an xxhash over relative paths and contents, stable
	// for identical bundles.
	Fingerprint uint64

	LargeAssets []Asset
	SourceMaps  []string
}

// Asset is a file exceeding the per-asset budget.
type Asset struct {
	Path string
	Size int64
}

func (c *Check) Run(ctx context.Context) (checks.Result, error) {
	info, err := os.Stat(c.cfg.Dir)
	if err != nil || !info.IsDir() {
		return checks.Result{
			BlocksDeployment: true,
			Message:          fmt.Sprintf("bundle directory %s not found, run the build first", c.cfg.Dir),
			Details:          map[string]any{"dir": c.cfg.Dir},
		}, nil
	}

	var missing []string
	for _, f := range c.cfg.RequiredFiles {
		if _, err := os.Stat(filepath.Join(c.cfg.Dir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return checks.Result{
			BlocksDeployment: true,
			Message:          fmt.Sprintf("bundle is missing required files: %s", strings.Join(missing, ", ")),
			Details:          map[string]any{"dir": c.cfg.Dir, "missing": missing},
		}, nil
	}

	stats, err := Analyze(ctx, c.cfg.Dir, c.cfg.MaxAssetSize)
	if err != nil {
		return checks.Result{}, fmt.Errorf("analyzing bundle %s: %w", c.cfg.Dir, err)
	}

	details := map[string]any{
		"dir":         c.cfg.Dir,
		"files":       stats.Files,
		"totalBytes":  stats.TotalBytes,
		"totalSize":   humanize.IBytes(uint64(stats.TotalBytes)),
		"gzipSize":    humanize.IBytes(uint64(stats.GzipBytes)),
		"fingerprint": fmt.Sprintf("%016x", stats.Fingerprint),
	}

	var warnings []string
	for _, a := range stats.LargeAssets {
		warnings = append(warnings, fmt.Sprintf("%s is %s, above the %s asset budget",
			a.Path, humanize.IBytes(uint64(a.Size)), humanize.IBytes(uint64(c.cfg.MaxAssetSize))))
	}
	if !c.cfg.AllowSourceMaps {
		for _, m := range stats.SourceMaps {
			warnings = append(warnings, fmt.Sprintf("source map %s is shipped with the bundle", m))
		}
	}

	if c.cfg.MaxTotalSize > 0 && stats.TotalBytes > c.cfg.MaxTotalSize {
		details["budget"] = humanize.IBytes(uint64(c.cfg.MaxTotalSize))
		return checks.Result{
			Message: fmt.Sprintf("bundle is %s, above the %s budget",
				humanize.IBytes(uint64(stats.TotalBytes)), humanize.IBytes(uint64(c.cfg.MaxTotalSize))),
			Warnings: warnings,
			Details:  details,
		}, nil
	}

	return checks.Result{
		Success:  true,
		Message:  fmt.Sprintf("%d files, %s (%s gzipped)", stats.Files, details["totalSize"], details["gzipSize"]),
		Warnings: warnings,
		Details:  details,
	}, nil
}

// Analyze walks dir in lexical order and collects bundle statistics.
// Files above maxAsset are listed in LargeAssets when maxAsset is positive.
func Analyze(ctx context.Context, dir string, maxAsset int64) (*Stats, error) {
	stats := &Stats{}
	hasher := xxhash.New()
	counter := &countingWriter{}
	zw := gzip.NewWriter(counter)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		size, err := digestFile(path, rel, hasher, zw)
		if err != nil {
			return err
		}
		stats.Files++
		stats.TotalBytes += size
		if maxAsset > 0 && size > maxAsset {
			stats.LargeAssets = append(stats.LargeAssets, Asset{Path: rel, Size: size})
		}
		if strings.HasSuffix(rel, ".map") {
			stats.SourceMaps = append(stats.SourceMaps, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	stats.GzipBytes = counter.n
	stats.Fingerprint = hasher.Sum64()
	return stats, nil
}

func digestFile(path, rel string, hasher *xxhash.Digest, zw io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	_, _ = hasher.WriteString(rel)
	return io.Copy(io.MultiWriter(hasher, zw), f)
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
