// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert orchestrates a conversion: validate the source, stage the
// output in the temp directory, walk the engine fallback plan, verify the
// PDF, and publish it to its destination.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/office2pdf/internal/engine"
	"github.com/pdiddy/office2pdf/internal/fileio"
	"github.com/pdiddy/office2pdf/internal/formats"
	"github.com/pdiddy/office2pdf/internal/imagepdf"
	"github.com/pdiddy/office2pdf/internal/logging"
	"github.com/pdiddy/office2pdf/internal/pdfcheck"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// ErrNoEngine is returned when no configured engine can render a document.
var ErrNoEngine = errors.New("no engine supports this document")

// Recorder persists finished conversions. history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, rec types.ConversionRecord) (types.ConversionRecord, error)
}

// Target says where a converted PDF goes. Path wins over Downloads, which
// wins over Dir; with none set the configured output directory is used.
type Target struct {
	// Path is an explicit output file.
	Path string

	// Dir is an output directory; the file keeps the source's stem.
	Dir string

	// Downloads publishes into the user's Downloads folder.
	Downloads bool

	// Overwrite replaces an existing output instead of picking name_1.pdf.
	Overwrite bool

	// Sheet exports a single worksheet of an Excel workbook, by name or
	// 1-based index. Only engines implementing engine.SheetConverter can
	// honor it.
	Sheet string
}

// ErrSheetUnsupported is returned when a sheet is requested for a document
// that is not a workbook.
var ErrSheetUnsupported = errors.New("sheet selection applies only to Excel workbooks")

// FallbackError reports that every engine in the plan failed. It lists
// each attempt in order.
type FallbackError struct {
	Source   string
	Attempts []types.Attempt

	errs []error
}

func (e *FallbackError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "converting %s: all engines failed", filepath.Base(e.Source))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %s", a.Engine, a.Error)
	}
	return b.String()
}

// Unwrap exposes the individual engine errors to errors.Is and errors.As.
func (e *FallbackError) Unwrap() []error {
	return e.errs
}

// Converter runs conversions against a set of engines.
type Converter struct {
	cfg      types.ConversionConfig
	paths    types.PathsConfig
	engines  *engine.Registry
	recorder Recorder
	now      func() time.Time
}

// New returns a Converter. recorder may be nil.
func New(cfg types.Config, engines *engine.Registry, recorder Recorder) *Converter {
	return &Converter{
		cfg:      cfg.Conversion,
		paths:    cfg.Paths,
		engines:  engines,
		recorder: recorder,
		now:      time.Now,
	}
}

// Destination returns the path a source would be published to before any
// conflict renaming.
func (c *Converter) Destination(src string, t Target) (string, error) {
	if t.Path != "" {
		if !strings.EqualFold(filepath.Ext(t.Path), ".pdf") {
			return t.Path + ".pdf", nil
		}
		return t.Path, nil
	}
	name := fileio.OutputName(src)
	if t.Downloads {
		dir, err := fileio.DownloadsDir(c.paths.DownloadsDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, name), nil
	}
	dir := t.Dir
	if dir == "" {
		dir = c.paths.OutputDir
	}
	return filepath.Join(dir, name), nil
}

// Convert converts one source file and publishes the PDF per t. The
// returned record describes the outcome even when err is non-nil.
func (c *Converter) Convert(ctx context.Context, src string, t Target) (types.ConversionRecord, error) {
	rec := types.ConversionRecord{
		ID:        ulid.Make().String(),
		Source:    src,
		Kind:      formats.Detect(src),
		StartedAt: c.now(),
	}

	doc, err := formats.Validate(src)
	if err != nil {
		return c.finish(ctx, rec, err), err
	}
	rec.Source = doc.Path
	rec.Kind = doc.Kind

	if t.Sheet != "" && doc.Kind != types.KindExcel {
		err := fmt.Errorf("%s: %w", filepath.Base(doc.Path), ErrSheetUnsupported)
		return c.finish(ctx, rec, err), err
	}

	dst, err := c.Destination(doc.Path, t)
	if err != nil {
		return c.finish(ctx, rec, err), err
	}

	if c.cfg.SkipExisting && !t.Overwrite {
		if _, err := os.Stat(dst); err == nil {
			rec.Status = types.ConversionSkipped
			rec.Output = dst
			return c.finish(ctx, rec, nil), nil
		}
	}

	staged, err := c.stagePath(rec.ID, doc.Path)
	if err != nil {
		return c.finish(ctx, rec, err), err
	}
	defer os.Remove(staged)

	plan := c.Plan(doc)
	if t.Sheet != "" {
		plan = sheetEngines(plan)
	}
	if len(plan) == 0 {
		err := fmt.Errorf("%s (%s): %w", filepath.Base(doc.Path), doc.Kind, ErrNoEngine)
		if t.Sheet != "" {
			err = fmt.Errorf("%s: selecting sheet %q: %w", filepath.Base(doc.Path), t.Sheet, ErrNoEngine)
		}
		return c.finish(ctx, rec, err), err
	}

	name, info, attempts, err := c.run(ctx, plan, doc.Path, staged, t.Sheet)
	rec.Attempts = attempts
	if err != nil {
		return c.finish(ctx, rec, err), err
	}
	rec.Engine = name
	rec.Pages = info.Pages

	out, err := fileio.Publish(ctx, staged, dst, t.Overwrite)
	if err != nil {
		return c.finish(ctx, rec, err), err
	}
	rec.Output = out
	if st, err := os.Stat(out); err == nil {
		rec.OutputSize = st.Size()
	}
	rec.Status = types.ConversionDone
	return c.finish(ctx, rec, nil), nil
}

// stagePath returns a fresh path in the temp directory for src's PDF.
// The record ID prefix keeps concurrent conversions of same-named files apart.
func (c *Converter) stagePath(id, src string) (string, error) {
	dir, err := filepath.Abs(c.paths.TempDir)
	if err != nil {
		return "", fmt.Errorf("resolving temp dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	return filepath.Join(dir, id+"-"+fileio.OutputName(src)), nil
}

// sheetEngines keeps the engines in plan that can export a single sheet.
func sheetEngines(plan []engine.Engine) []engine.Engine {
	var out []engine.Engine
	for _, e := range plan {
		if _, ok := e.(engine.SheetConverter); ok {
			out = append(out, e)
		}
	}
	return out
}

// run tries each engine in plan until one produces a valid PDF at staged.
func (c *Converter) run(ctx context.Context, plan []engine.Engine, src, staged, sheet string) (string, pdfcheck.Info, []types.Attempt, error) {
	var attempts []types.Attempt
	var errs []error

	for _, e := range plan {
		if err := ctx.Err(); err != nil {
			return "", pdfcheck.Info{}, attempts, err
		}

		if !c.engines.Available(ctx, e) {
			err := fmt.Errorf("%s: %w", e.Name(), engine.ErrUnavailable)
			attempts = append(attempts, types.Attempt{Engine: e.Name(), Error: err.Error()})
			errs = append(errs, err)
			logging.Debug().Add(logging.Engine(e.Name())).Add(logging.Source(src)).Msg("engine unavailable, skipping")
			continue
		}

		start := time.Now()
		info, err := c.attempt(ctx, e, src, staged, sheet)
		a := types.Attempt{Engine: e.Name(), Duration: time.Since(start)}
		if err == nil {
			attempts = append(attempts, a)
			return e.Name(), info, attempts, nil
		}

		a.Error = err.Error()
		attempts = append(attempts, a)
		errs = append(errs, err)
		logging.Warn().
			Add(logging.Engine(e.Name())).
			Add(logging.Source(src)).
			Add(logging.Duration(a.Duration)).
			Add(logging.ErrorField(err)).
			Msg("engine failed, trying next")
	}

	if err := ctx.Err(); err != nil {
		return "", pdfcheck.Info{}, attempts, err
	}
	return "", pdfcheck.Info{}, attempts, &FallbackError{Source: src, Attempts: attempts, errs: errs}
}

func (c *Converter) attempt(ctx context.Context, e engine.Engine, src, staged, sheet string) (pdfcheck.Info, error) {
	_ = os.Remove(staged)

	actx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	render := e.Convert
	if sc, ok := e.(engine.SheetConverter); ok && sheet != "" {
		render = func(ctx context.Context, src, dst string) error {
			return sc.ConvertSheet(ctx, src, dst, sheet)
		}
	}
	if err := render(actx, src, staged); err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return pdfcheck.Info{}, fmt.Errorf("%s: timed out after %s: %w", e.Name(), c.cfg.Timeout, err)
		}
		return pdfcheck.Info{}, err
	}

	if !c.cfg.Verify {
		st, err := os.Stat(staged)
		if err != nil {
			return pdfcheck.Info{}, fmt.Errorf("%s: no output: %w", e.Name(), err)
		}
		return pdfcheck.Info{Size: st.Size()}, nil
	}
	info, err := pdfcheck.Inspect(staged)
	if err != nil {
		return pdfcheck.Info{}, fmt.Errorf("%s: verifying output: %w", e.Name(), err)
	}
	return info, nil
}

// finish stamps rec with its outcome, logs it and hands it to the recorder.
func (c *Converter) finish(ctx context.Context, rec types.ConversionRecord, err error) types.ConversionRecord {
	rec.FinishedAt = c.now()
	if err != nil {
		rec.Status = types.ConversionFailed
		rec.Error = err.Error()
		logging.Error().
			Add(logging.Source(rec.Source)).
			Add(logging.Kind(rec.Kind)).
			Add(logging.ErrorField(err)).
			Msg("conversion failed")
	} else {
		logging.Info().
			Add(logging.Source(rec.Source)).
			Add(logging.Output(rec.Output)).
			Add(logging.Engine(rec.Engine)).
			Add(logging.Status(rec.Status)).
			Add(logging.Pages(rec.Pages)).
			Add(logging.Duration(rec.Duration())).
			Msg("conversion finished")
	}

	if c.recorder != nil {
		// Recording must not be skipped because the caller's context ended.
		saved, rerr := c.recorder.Record(context.WithoutCancel(ctx), rec)
		if rerr != nil {
			logging.Warn().Add(logging.Source(rec.Source)).Add(logging.ErrorField(rerr)).Msg("recording history failed")
		} else {
			rec = saved
		}
	}
	return rec
}

// Combine writes every image in srcs, in order, into one PDF at dst and
// returns the published path.
func (c *Converter) Combine(ctx context.Context, srcs []string, dst string, overwrite bool) (types.ConversionRecord, error) {
	rec := types.ConversionRecord{
		ID:        ulid.Make().String(),
		Source:    strings.Join(srcs, string(os.PathListSeparator)),
		Kind:      types.KindImage,
		Engine:    string(types.MethodImage),
		StartedAt: c.now(),
	}
	if len(srcs) == 0 {
		err := errors.New("no images to combine")
		return c.finish(ctx, rec, err), err
	}

	abs := make([]string, len(srcs))
	for i, s := range srcs {
		doc, err := formats.Validate(s)
		if err != nil {
			return c.finish(ctx, rec, err), err
		}
		if doc.Kind != types.KindImage {
			err := fmt.Errorf("%s: only images can be combined: %w", s, formats.ErrUnsupported)
			return c.finish(ctx, rec, err), err
		}
		abs[i] = doc.Path
	}

	if !strings.EqualFold(filepath.Ext(dst), ".pdf") {
		dst += ".pdf"
	}
	staged, err := c.stagePath(rec.ID, dst)
	if err != nil {
		return c.finish(ctx, rec, err), err
	}
	defer os.Remove(staged)

	start := time.Now()
	err = imagepdf.Write(ctx, abs, staged, c.imageOptions())
	rec.Attempts = []types.Attempt{{Engine: rec.Engine, Duration: time.Since(start)}}
	if err != nil {
		rec.Attempts[0].Error = err.Error()
		return c.finish(ctx, rec, err), err
	}
	info, err := pdfcheck.Inspect(staged)
	if err != nil {
		return c.finish(ctx, rec, err), err
	}
	rec.Pages = info.Pages

	out, err := fileio.Publish(ctx, staged, dst, overwrite)
	if err != nil {
		return c.finish(ctx, rec, err), err
	}
	rec.Output = out
	rec.OutputSize = info.Size
	rec.Status = types.ConversionDone
	return c.finish(ctx, rec, nil), nil
}

func (c *Converter) imageOptions() imagepdf.Options {
	return imagepdf.Options{
		DPI:     c.cfg.DPI,
		Format:  c.cfg.ImageFormat,
		Quality: c.cfg.JPEGQuality,
		Creator: "office2pdf",
	}
}
