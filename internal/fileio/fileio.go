// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fileio places converted files on disk: unique output names, the
// user's Downloads folder, publishing out of the staging directory, and
// temp cleanup.
package fileio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/felixgeelhaar/fortify/retry"
	"golang.org/x/text/unicode/norm"
)

// LockRetryDelay is the first wait before retrying a locked destination.
// Tests override this to avoid real sleeps.
var LockRetryDelay = 250 * time.Millisecond

const lockAttempts = 4

// errPermanent marks publish failures that retrying cannot fix.
var errPermanent = errors.New("permanent publish failure")

// createDest opens a destination for writing with the extra open flag
// (O_TRUNC or O_EXCL). Tests replace it to simulate files held open by
// another program.
var createDest = func(path string, flag int) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|flag, 0o644)
}

// OutputName returns the PDF file name for src: the source stem in Unicode
// NFC form with a .pdf extension.
func OutputName(src string) string {
	base := filepath.Base(src)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base))) + ".pdf"
}

// UniquePath returns path if nothing exists there, otherwise the first free
// sibling named stem_1.ext, stem_2.ext, and so on. The answer can be stale
// by the time it is used; Publish claims names with O_EXCL instead.
func UniquePath(path string) string {
	for n := 0; ; n++ {
		p := sibling(path, n)
		if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
			return p
		}
	}
}

// sibling returns path for n == 0 and stem_n.ext otherwise.
func sibling(path string, n int) string {
	if n == 0 {
		return path
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
}

// DownloadsDir returns override, or ~/Downloads when override is empty,
// creating the directory if needed.
func DownloadsDir(override string) (string, error) {
	dir := override
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("finding home directory: %w", err)
		}
		dir = filepath.Join(home, "Downloads")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// IsLocked reports whether err means another program holds the file open
// or denies writing to it.
func IsLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY) ||
		isSharingViolation(err)
}

// Publish copies src to dst and returns the path actually written. Unless
// overwrite is set an existing dst is kept and a unique sibling is used;
// names are claimed with O_EXCL so concurrent publishers of the same stem
// never share one. With overwrite a locked destination is retried with
// backoff, and if it stays locked the file is published under the next
// free sibling name instead.
func Publish(ctx context.Context, src, dst string, overwrite bool) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	if !overwrite {
		return claim(src, dst, 0)
	}

	err := copyWithRetry(ctx, src, dst)
	if err == nil {
		return dst, nil
	}
	if !IsLocked(err) {
		return "", err
	}
	return claim(src, dst, 1)
}

// claim writes src to the first sibling of dst, starting at index from,
// that it can create exclusively. Existing siblings, locked or not, are
// skipped.
func claim(src, dst string, from int) (string, error) {
	for n := from; ; n++ {
		p := sibling(dst, n)
		err := copyFile(src, p, os.O_EXCL)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, fs.ErrExist) || (IsLocked(err) && exists(p)) {
			continue
		}
		return "", fmt.Errorf("publishing %s: %w", filepath.Base(src), err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func copyWithRetry(ctx context.Context, src, dst string) error {
	r := retry.New[struct{}](retry.Config{
		MaxAttempts:        lockAttempts,
		InitialDelay:       LockRetryDelay,
		BackoffPolicy:      retry.BackoffExponential,
		Multiplier:         2.0,
		NonRetryableErrors: []error{errPermanent},
	})

	var last error
	_, err := r.Do(ctx, func(context.Context) (struct{}, error) {
		last = copyFile(src, dst, os.O_TRUNC)
		if last != nil && !IsLocked(last) {
			return struct{}{}, errors.Join(errPermanent, last)
		}
		return struct{}{}, last
	})
	if err == nil {
		return nil
	}
	if last != nil {
		return last
	}
	return err
}

// copyFile writes src's contents to dst and carries over its modification
// time. With O_EXCL a partially written dst is removed on failure.
func copyFile(src, dst string, flag int) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return fmt.Errorf("checking %s: %w", src, err)
	}

	out, err := createDest(dst, flag)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		if flag&os.O_EXCL != 0 {
			os.Remove(dst)
		}
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	_ = os.Chtimes(dst, time.Now(), st.ModTime())
	return nil
}

// CopyToDownloads copies src into the Downloads folder (downloadsDir, or
// ~/Downloads when empty) under a unique name and returns the new path.
func CopyToDownloads(ctx context.Context, src, downloadsDir string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("checking %s: %w", src, err)
	}
	dir, err := DownloadsDir(downloadsDir)
	if err != nil {
		return "", err
	}
	return Publish(ctx, src, filepath.Join(dir, norm.NFC.String(filepath.Base(src))), false)
}

// stagingLeftovers are the staging-directory entries a conversion leaves
// behind: staged PDFs and per-attempt engine output directories. Anything
// else there (server uploads, the LibreOffice profile) is live state.
var stagingLeftovers = []string{"*.pdf", "*.tmp", ".soffice-*", ".container-*"}

// CleanTemp removes *.tmp files from outputDir and conversion leftovers from
// stagingDir, returning how many entries were removed. Missing directories
// are not errors.
func CleanTemp(outputDir, stagingDir string) (int, error) {
	removed := 0

	if outputDir != "" {
		matches, err := filepath.Glob(filepath.Join(outputDir, "*.tmp"))
		if err != nil {
			return removed, err
		}
		for _, m := range matches {
			if os.Remove(m) == nil {
				removed++
			}
		}
	}

	if stagingDir == "" {
		return removed, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return removed, nil
		}
		return removed, fmt.Errorf("reading %s: %w", stagingDir, err)
	}
	for _, e := range entries {
		if !isLeftover(e) {
			continue
		}
		p := filepath.Join(stagingDir, e.Name())
		n := countEntries(p)
		if err := os.RemoveAll(p); err == nil {
			removed += n
		}
	}
	return removed, nil
}

func isLeftover(e fs.DirEntry) bool {
	for _, pattern := range stagingLeftovers {
		if ok, _ := filepath.Match(pattern, e.Name()); !ok {
			continue
		}
		// staged PDFs are files, engine output directories are dirs
		return e.IsDir() == strings.HasPrefix(pattern, ".")
	}
	return false
}

func countEntries(root string) int {
	n := 0
	_ = filepath.WalkDir(root, func(string, fs.DirEntry, error) error {
		n++
		return nil
	})
	return n
}

// FileInfo describes a file for display.
type FileInfo struct {
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
	HumanSize string    `json:"human_size" yaml:"human_size"`
	Ext       string    `json:"ext" yaml:"ext"`
	ModTime   time.Time `json:"mod_time" yaml:"mod_time"`
}

// Describe returns display information about path.
func Describe(path string) (FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return FileInfo{}, fmt.Errorf("checking %s: %w", path, err)
	}
	return FileInfo{
		Name:      st.Name(),
		Path:      abs,
		Size:      st.Size(),
		HumanSize: humanize.IBytes(uint64(st.Size())),
		Ext:       strings.ToLower(filepath.Ext(abs)),
		ModTime:   st.ModTime(),
	}, nil
}
