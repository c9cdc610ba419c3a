// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/pdiddy/office2pdf/internal/imagepdf"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// Status describes one engine for listings.
type Status struct {
	Name      string               `json:"name" yaml:"name"`
	Kinds     []types.DocumentKind `json:"kinds" yaml:"kinds"`
	Available bool                 `json:"available" yaml:"available"`
}

// UnavailableTTL is how long a negative availability result is trusted.
// Positive results are kept until Refresh; a failing engine is caught by
// the fallback chain anyway.
const UnavailableTTL = 30 * time.Second

// Registry holds the configured engines and memoizes their availability,
// since checking an office suite can take seconds.
type Registry struct {
	engines []Engine
	byName  map[string]Engine

	mu    sync.Mutex
	avail map[string]availability
	now   func() time.Time
}

type availability struct {
	ok        bool
	checkedAt time.Time
}

// NewRegistry returns a registry over engines. Later engines with a
// duplicate name are ignored.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{
		byName: make(map[string]Engine, len(engines)),
		avail:  make(map[string]availability, len(engines)),
		now:    time.Now,
	}
	for _, e := range engines {
		if _, dup := r.byName[e.Name()]; dup {
			continue
		}
		r.engines = append(r.engines, e)
		r.byName[e.Name()] = e
	}
	return r
}

// Default builds every engine from cfg. secrets supplies remote engine
// credentials and may be nil.
func Default(cfg types.Config, secrets map[string]string) *Registry {
	exec := OSExecutor{}
	return NewRegistry(
		NewMSOffice(cfg.Engines.PowerShell, exec),
		NewDocx2PDF(cfg.Engines.Docx2PDF, exec),
		NewLibreOffice(cfg.Engines.LibreOffice, filepath.Join(cfg.Paths.TempDir, ".lo-profile"), exec),
		NewContainer(cfg.Engines.ContainerImage, nil),
		NewGotenberg(cfg.Engines.GotenbergURL, &http.Client{Timeout: cfg.Conversion.Timeout},
			secrets[SecretGotenbergUser], secrets[SecretGotenbergPassword]),
		NewImage(imagepdf.Options{
			DPI:     cfg.Conversion.DPI,
			Format:  cfg.Conversion.ImageFormat,
			Quality: cfg.Conversion.JPEGQuality,
			Creator: "office2pdf",
		}),
	)
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// All returns the engines in registration order.
func (r *Registry) All() []Engine {
	out := make([]Engine, len(r.engines))
	copy(out, r.engines)
	return out
}

// Available reports whether e is usable. A positive answer is remembered;
// a negative one is rechecked once it is older than UnavailableTTL, so an
// engine started after a long-running watch or serve begins gets picked up.
func (r *Registry) Available(ctx context.Context, e Engine) bool {
	r.mu.Lock()
	a, ok := r.avail[e.Name()]
	now := r.now()
	r.mu.Unlock()
	if ok && (a.ok || now.Sub(a.checkedAt) < UnavailableTTL) {
		return a.ok
	}

	v := e.Available(ctx)

	r.mu.Lock()
	r.avail[e.Name()] = availability{ok: v, checkedAt: now}
	r.mu.Unlock()
	return v
}

// Refresh forgets memoized availability so the next call checks again.
func (r *Registry) Refresh() {
	r.mu.Lock()
	r.avail = make(map[string]availability, len(r.engines))
	r.mu.Unlock()
}

// Detect checks every engine and reports what it supports.
func (r *Registry) Detect(ctx context.Context) []Status {
	out := make([]Status, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, Status{
			Name:      e.Name(),
			Kinds:     kindsOf(e),
			Available: r.Available(ctx, e),
		})
	}
	return out
}
