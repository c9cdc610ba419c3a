// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine wraps the external programs and libraries that render
// documents to PDF. Each Engine converts one source file into exactly one
// destination PDF, or fails with the external tool's own message.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdiddy/office2pdf/pkg/types"
)

// ErrUnavailable is returned when an engine's external dependency is missing.
var ErrUnavailable = errors.New("engine not available")

// maxOutput caps how much tool output is carried in an error.
const maxOutput = 2048

// Engine converts documents of the kinds it supports into PDF.
type Engine interface {
	// Name returns the engine identifier used in configuration ("libreoffice").
	Name() string

	// Supports reports whether the engine can render kind.
	Supports(kind types.DocumentKind) bool

	// Available reports whether the engine's external dependency is
	// installed and responding.
	Available(ctx context.Context) bool

	// Convert renders src into a PDF written at dst. dst's directory exists.
	Convert(ctx context.Context, src, dst string) error
}

// SheetConverter is implemented by engines that can export a single
// worksheet of an Excel workbook. sheet is a worksheet name or a 1-based
// index.
type SheetConverter interface {
	ConvertSheet(ctx context.Context, src, dst, sheet string) error
}

// Executor abstracts process execution for testing.
type Executor interface {
	LookPath(file string) (string, error)
	// Run executes name with args and returns combined stdout and stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// OSExecutor is the production Executor backed by os/exec.
type OSExecutor struct{}

func (OSExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (OSExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ToolError reports a failed external invocation together with what the
// tool printed, so the message can be shown to the user verbatim.
type ToolError struct {
	Engine string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Engine, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func toolError(engine string, out []byte, err error) error {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutput {
		s = s[:maxOutput] + "..."
	}
	return &ToolError{Engine: engine, Output: s, Err: err}
}

// stem returns the file name of path without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// moveFile renames src to dst, copying when they live on different volumes.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return os.Remove(src)
}

// requireOutput returns a ToolError when the tool exited cleanly but wrote nothing.
func requireOutput(engine, path string, out []byte) error {
	if _, err := os.Stat(path); err != nil {
		return toolError(engine, out, fmt.Errorf("no PDF produced at %s", path))
	}
	return nil
}

func kindsOf(e Engine) []types.DocumentKind {
	var kinds []types.DocumentKind
	for _, k := range []types.DocumentKind{types.KindWord, types.KindExcel, types.KindImage} {
		if e.Supports(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
