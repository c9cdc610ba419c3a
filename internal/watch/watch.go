// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch converts documents as they appear in a hot folder.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/office2pdf/internal/convert"
	"github.com/pdiddy/office2pdf/internal/formats"
	"github.com/pdiddy/office2pdf/internal/logging"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// DefaultDebounce is how long a file must stay quiet before it is converted.
const DefaultDebounce = 2 * time.Second

// Converter converts one file. *convert.Converter implements it.
type Converter interface {
	Convert(ctx context.Context, src string, t convert.Target) (types.ConversionRecord, error)
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last write (default 2s).
	Debounce time.Duration

	// Jobs bounds concurrent conversions (default 1).
	Jobs int

	// Target is passed to every conversion.
	Target convert.Target

	// Existing also converts supported files already in the folder at start.
	Existing bool

	// OnResult is called after each conversion, from a worker goroutine.
	OnResult func(types.ConversionRecord, error)
}

// Watcher converts supported files created or rewritten in a directory.
// Office lock files and unsupported files are ignored.
type Watcher struct {
	dir  string
	conv Converter
	opts Options
}

// New returns a Watcher for dir.
func New(dir string, conv Converter, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return &Watcher{dir: dir, conv: conv, opts: opts}
}

// Run watches until ctx is cancelled, then waits for running conversions
// to finish. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logging.Info().Add(logging.Component("watch")).Add(logging.Str("dir", w.dir)).Msg("watching for documents")

	queue := make(chan string, 64)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Jobs; i++ {
		g.Go(func() error {
			for path := range queue {
				if gctx.Err() != nil {
					continue
				}
				rec, err := w.conv.Convert(gctx, path, w.opts.Target)
				if w.opts.OnResult != nil {
					w.opts.OnResult(rec, err)
				}
			}
			return nil
		})
	}

	d := newDebouncer(w.opts.Debounce, func(path string) {
		select {
		case queue <- path:
		case <-ctx.Done():
		}
	})

	if w.opts.Existing {
		existing, err := supportedFiles(w.dir)
		if err != nil {
			logging.Warn().Add(logging.Component("watch")).Add(logging.ErrorField(err)).Msg("listing existing files")
		}
		for _, p := range existing {
			d.trigger(p)
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-fw.Events:
			if !ok {
				break loop
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !formats.IsSupported(ev.Name) {
				continue
			}
			logging.Debug().Add(logging.Component("watch")).Add(logging.Source(ev.Name)).Msg(ev.Op.String())
			d.trigger(ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				break loop
			}
			logging.Warn().Add(logging.Component("watch")).Add(logging.ErrorField(err)).Msg("watch error")
		}
	}

	d.stop()
	close(queue)
	return g.Wait()
}

func supportedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && formats.IsSupported(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// debouncer calls fire for a path once no trigger for it has arrived
// within delay.
type debouncer struct {
	delay time.Duration
	fire  func(string)

	mu       sync.Mutex
	timers   map[string]*time.Timer
	stopped  bool
	inflight sync.WaitGroup
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.inflight.Add(1)
		d.mu.Unlock()

		defer d.inflight.Done()
		d.fire(path)
	})
}

// stop cancels pending timers and waits for fires already in progress.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	for p, t := range d.timers {
		t.Stop()
		delete(d.timers, p)
	}
	d.mu.Unlock()
	d.inflight.Wait()
}
