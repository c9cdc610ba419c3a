// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/office2pdf/internal/container"
	"github.com/pdiddy/office2pdf/pkg/types"
)

const (
	containerIn  = "/work/in"
	containerOut = "/work/out"
)

// Container runs LibreOffice inside a local container image, for hosts
// without an office suite. The image must provide soffice on PATH.
type Container struct {
	image  string
	detect func(context.Context) (container.Runtime, error)

	mu sync.Mutex
	rt container.Runtime
}

// NewContainer returns an engine that runs image with the first container
// runtime found by detect (container.DetectRuntime when nil).
func NewContainer(image string, detect func(context.Context) (container.Runtime, error)) *Container {
	if detect == nil {
		detect = container.DetectRuntime
	}
	return &Container{image: image, detect: detect}
}

func (c *Container) Name() string { return string(types.MethodContainer) }

func (c *Container) Supports(kind types.DocumentKind) bool {
	return kind == types.KindWord || kind == types.KindExcel
}

func (c *Container) runtime(ctx context.Context) (container.Runtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt != nil {
		return c.rt, nil
	}
	rt, err := c.detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", c.Name(), ErrUnavailable, err)
	}
	c.rt = rt
	return rt, nil
}

func (c *Container) Available(ctx context.Context) bool {
	rt, err := c.runtime(ctx)
	if err != nil {
		return false
	}
	return rt.ImageExists(ctx, c.image) == nil
}

func (c *Container) Convert(ctx context.Context, src, dst string) error {
	rt, err := c.runtime(ctx)
	if err != nil {
		return err
	}

	outDir, err := os.MkdirTemp(filepath.Dir(dst), ".container-*")
	if err != nil {
		return fmt.Errorf("creating container output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	var logs bytes.Buffer
	spec := container.RunSpec{
		Image: c.image,
		Name:  "office2pdf-" + strings.ToLower(ulid.Make().String()),
		Mounts: []container.Mount{
			{Host: filepath.Dir(src), Container: containerIn, ReadOnly: true},
			{Host: outDir, Container: containerOut},
		},
		Args: []string{
			"soffice", "--headless", "--norestore", "--nolockcheck",
			"--convert-to", "pdf",
			"--outdir", containerOut,
			containerIn + "/" + filepath.Base(src),
		},
		Stdout: &logs,
		Stderr: &logs,
	}
	if err := rt.Run(ctx, spec); err != nil {
		return toolError(c.Name(), logs.Bytes(), err)
	}

	produced := filepath.Join(outDir, stem(src)+".pdf")
	if err := requireOutput(c.Name(), produced, logs.Bytes()); err != nil {
		return err
	}
	return moveFile(produced, dst)
}
