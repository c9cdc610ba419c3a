// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfcheck verifies that an engine produced a readable PDF.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmptyOutput = errors.New("engine produced an empty file")
	ErrNotPDF      = errors.New("output is not a PDF")
	ErrNoPages     = errors.New("PDF has no pages")
)

var magic = []byte("%PDF-")

// Info summarizes a verified PDF.
type Info struct {
	Pages int
	Size  int64
}

// Inspect checks that path holds a non-empty, parseable PDF with at least
// one page and returns its page count and size.
func Inspect(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("checking output %s: %w", path, err)
	}
	if st.Size() == 0 {
		return Info{}, ErrEmptyOutput
	}

	if err := checkMagic(path); err != nil {
		return Info{}, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	n := r.NumPage()
	if n == 0 {
		return Info{}, ErrNoPages
	}
	return Info{Pages: n, Size: st.Size()}, nil
}

func checkMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, magic) {
		return ErrNotPDF
	}
	return nil
}
