// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pdiddy/office2pdf/pkg/types"
)

// sofficeCandidates lists where soffice is usually found when no binary is configured.
var sofficeCandidates = []string{
	"soffice",
	"libreoffice",
	`C:\Program Files\LibreOffice\program\soffice.exe`,
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
}

// LibreOffice converts Word and Excel files with a headless soffice process.
// It uses a private user profile so it does not collide with a desktop
// LibreOffice session.
type LibreOffice struct {
	candidates []string
	profileDir string
	exec       Executor

	// soffice refuses a second instance on the same profile.
	mu       sync.Mutex
	resolved string
}

// NewLibreOffice returns an engine using binary, or the usual install
// locations when binary is empty. profileDir holds the soffice user profile.
func NewLibreOffice(binary, profileDir string, exec Executor) *LibreOffice {
	candidates := sofficeCandidates
	if binary != "" {
		candidates = []string{binary}
	}
	return &LibreOffice{candidates: candidates, profileDir: profileDir, exec: exec}
}

func (l *LibreOffice) Name() string { return string(types.MethodLibreOffice) }

func (l *LibreOffice) Supports(kind types.DocumentKind) bool {
	return kind == types.KindWord || kind == types.KindExcel
}

func (l *LibreOffice) Available(ctx context.Context) bool {
	_, err := l.binary()
	return err == nil
}

func (l *LibreOffice) binary() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved != "" {
		return l.resolved, nil
	}
	for _, c := range l.candidates {
		if p, err := l.exec.LookPath(c); err == nil {
			l.resolved = p
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w: none of %s found", l.Name(), ErrUnavailable, strings.Join(l.candidates, ", "))
}

func (l *LibreOffice) Convert(ctx context.Context, src, dst string) error {
	bin, err := l.binary()
	if err != nil {
		return err
	}

	outDir, err := os.MkdirTemp(filepath.Dir(dst), ".soffice-*")
	if err != nil {
		return fmt.Errorf("creating soffice output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	l.mu.Lock()
	out, err := l.exec.Run(ctx, bin, sofficeArgs(l.profileDir, outDir, src)...)
	l.mu.Unlock()
	if err != nil {
		return toolError(l.Name(), out, err)
	}

	// soffice exits 0 even when a filter fails, so the file is the real signal.
	produced := filepath.Join(outDir, stem(src)+".pdf")
	if err := requireOutput(l.Name(), produced, out); err != nil {
		return err
	}
	return moveFile(produced, dst)
}

// sofficeArgs builds the headless conversion command line.
func sofficeArgs(profileDir, outDir, src string) []string {
	args := make([]string, 0, 10)
	if profileDir != "" {
		args = append(args, "-env:UserInstallation="+fileURL(profileDir))
	}
	return append(args,
		"--headless", "--norestore", "--nolockcheck", "--nologo",
		"--convert-to", "pdf",
		"--outdir", outDir,
		src,
	)
}

// fileURL converts a filesystem path to a file:// URL soffice accepts.
func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p := filepath.ToSlash(abs)
	if runtime.GOOS == "windows" || !strings.HasPrefix(p, "/") {
		p = "/" + strings.TrimPrefix(p, "/")
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
