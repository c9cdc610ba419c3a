// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/office2pdf/internal/formats"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int `yaml:"converted"`
	Skipped   int `yaml:"skipped"`
	Failed    int `yaml:"failed"`

	// Records are in the order the sources were given.
	Records []types.ConversionRecord `yaml:"records"`
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertBatch converts srcs with up to cfg.Jobs conversions at a time,
// printing per-file status to w and returning a summary. A failed file
// does not stop the others; cancelling ctx does.
func (c *Converter) ConvertBatch(ctx context.Context, srcs []string, t Target, w io.Writer) BatchResult {
	jobs := c.cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}

	records := make([]types.ConversionRecord, len(srcs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, src := range srcs {
		g.Go(func() error {
			rec, err := c.Convert(gctx, src, t)
			records[i] = rec

			mu.Lock()
			defer mu.Unlock()
			printStatus(w, rec, err)
			return nil
		})
	}
	_ = g.Wait()

	var result BatchResult
	result.Records = records
	for _, rec := range records {
		switch rec.Status {
		case types.ConversionDone:
			result.Converted++
		case types.ConversionSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

func printStatus(w io.Writer, rec types.ConversionRecord, err error) {
	name := filepath.Base(rec.Source)
	switch {
	case err != nil:
		fmt.Fprintf(w, "failed:    %s (%v)\n", name, err)
	case rec.Status == types.ConversionSkipped:
		fmt.Fprintf(w, "skipped:   %s (already exists)\n", name)
	default:
		fmt.Fprintf(w, "converted: %s -> %s [%s, %d pages, %s]\n",
			name, rec.Output, rec.Engine, rec.Pages, rec.Duration().Round(time.Millisecond))
	}
}

// Collect expands paths into the list of convertible files. Directories
// contribute their supported files (recursively when recursive is set),
// skipping Office lock files. Explicit file arguments are kept as given so
// that validation can report why they are rejected.
func Collect(paths []string, recursive bool) ([]string, error) {
	var out []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil || !st.IsDir() {
			out = append(out, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if formats.IsSupported(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// WriteReport writes result as YAML to path.
func WriteReport(path string, result BatchResult) error {
	data, err := yaml.Marshal(&result)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
