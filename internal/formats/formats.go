// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package formats detects document kinds from file extensions and validates
// source files before any conversion engine is invoked.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/office2pdf/pkg/types"
)

// lockPrefix marks the owner files Office leaves next to open documents.
const lockPrefix = "~$"

var (
	ErrNotFound    = errors.New("file not found")
	ErrNotRegular  = errors.New("not a regular file")
	ErrEmpty       = errors.New("file is empty")
	ErrLockFile    = errors.New("office lock file")
	ErrUnsupported = errors.New("unsupported file type")
)

var extensions = map[types.DocumentKind][]string{
	types.KindWord:  {".doc", ".docx"},
	types.KindExcel: {".xls", ".xlsb", ".xlsm", ".xlsx", ".xltm", ".xltx"},
	types.KindImage: {".bmp", ".jpeg", ".jpg", ".png", ".tif", ".tiff", ".webp"},
}

var byExt = func() map[string]types.DocumentKind {
	m := make(map[string]types.DocumentKind)
	for kind, exts := range extensions {
		for _, e := range exts {
			m[e] = kind
		}
	}
	return m
}()

// Kinds returns the convertible document kinds in a stable order.
func Kinds() []types.DocumentKind {
	return []types.DocumentKind{types.KindWord, types.KindExcel, types.KindImage}
}

// Detect returns the document kind for path based on its extension.
func Detect(path string) types.DocumentKind {
	if kind, ok := byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return types.KindUnknown
}

// Extensions returns the sorted extensions accepted for kind.
func Extensions(kind types.DocumentKind) []string {
	exts := extensions[kind]
	out := make([]string, len(exts))
	copy(out, exts)
	return out
}

// All returns every supported extension, sorted.
func All() []string {
	out := make([]string, 0, len(byExt))
	for e := range byExt {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// IsLockFile reports whether path names an Office owner file ("~$report.docx").
func IsLockFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), lockPrefix)
}

// IsSupported reports whether path has a supported extension and is not a lock file.
func IsSupported(path string) bool {
	return !IsLockFile(path) && Detect(path) != types.KindUnknown
}

// Validate checks that path exists, is a non-empty regular file with a
// supported extension, and is not an Office lock file. The returned error
// wraps one of the package sentinel errors.
func Validate(path string) (types.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("resolving %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Document{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return types.Document{}, fmt.Errorf("checking %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return types.Document{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	if IsLockFile(abs) {
		return types.Document{}, fmt.Errorf("%s: %w", path, ErrLockFile)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	kind := Detect(abs)
	if kind == types.KindUnknown {
		return types.Document{}, fmt.Errorf("%s (%q): %w", path, ext, ErrUnsupported)
	}
	if info.Size() == 0 {
		return types.Document{}, fmt.Errorf("%s: %w", path, ErrEmpty)
	}

	return types.Document{
		Path: abs,
		Kind: kind,
		Ext:  ext,
		Size: info.Size(),
	}, nil
}
