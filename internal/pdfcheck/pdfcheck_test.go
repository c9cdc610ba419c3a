// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectRejectsBadOutput(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := Inspect(empty)
	assert.ErrorIs(t, err, ErrEmptyOutput)

	html := filepath.Join(dir, "error.pdf")
	require.NoError(t, os.WriteFile(html, []byte("<html>503</html>"), 0o644))
	_, err = Inspect(html)
	assert.ErrorIs(t, err, ErrNotPDF)

	truncated := filepath.Join(dir, "truncated.pdf")
	require.NoError(t, os.WriteFile(truncated, []byte("%PDF-1.4\n1 0 obj"), 0o644))
	_, err = Inspect(truncated)
	assert.Error(t, err)

	_, err = Inspect(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}
