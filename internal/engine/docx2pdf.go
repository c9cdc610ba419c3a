// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/pdiddy/office2pdf/pkg/types"
)

// Docx2PDF runs the docx2pdf command-line tool, which itself drives
// Microsoft Word on Windows and macOS. It is the fastest path for .docx.
type Docx2PDF struct {
	binary string
	exec   Executor
	goos   string
}

// NewDocx2PDF returns an engine that runs binary ("docx2pdf" when empty).
func NewDocx2PDF(binary string, exec Executor) *Docx2PDF {
	if binary == "" {
		binary = "docx2pdf"
	}
	return &Docx2PDF{binary: binary, exec: exec, goos: runtime.GOOS}
}

func (d *Docx2PDF) Name() string { return string(types.MethodDocx2PDF) }

func (d *Docx2PDF) Supports(kind types.DocumentKind) bool {
	return kind == types.KindWord
}

func (d *Docx2PDF) Available(ctx context.Context) bool {
	// docx2pdf needs Word, which only exists on these platforms.
	if d.goos != "windows" && d.goos != "darwin" {
		return false
	}
	if _, err := d.exec.LookPath(d.binary); err != nil {
		return false
	}
	_, err := d.exec.Run(ctx, d.binary, "--version")
	return err == nil
}

func (d *Docx2PDF) Convert(ctx context.Context, src, dst string) error {
	if _, err := d.exec.LookPath(d.binary); err != nil {
		return fmt.Errorf("%s: %w: %v", d.Name(), ErrUnavailable, err)
	}
	out, err := d.exec.Run(ctx, d.binary, src, dst)
	if err != nil {
		return toolError(d.Name(), out, err)
	}
	return requireOutput(d.Name(), dst, out)
}
