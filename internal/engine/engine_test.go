// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/office2pdf/internal/container"
	"github.com/pdiddy/office2pdf/internal/httputil"
	"github.com/pdiddy/office2pdf/internal/imagepdf"
	"github.com/pdiddy/office2pdf/internal/pdfcheck"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// fakePDF is the smallest payload engines are expected to produce in tests.
const fakePDF = "%PDF-1.4\n%fake\n"

type call struct {
	name string
	args []string
}

// fakeExecutor records invocations and runs an optional hook in place of
// the real program.
type fakeExecutor struct {
	mu    sync.Mutex
	paths map[string]string
	calls []call
	run   func(name string, args []string) ([]byte, error)
}

func (f *fakeExecutor) LookPath(file string) (string, error) {
	if p, ok := f.paths[file]; ok {
		return p, nil
	}
	return "", errors.New("not found")
}

func (f *fakeExecutor) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	if f.run != nil {
		return f.run(name, args)
	}
	return nil, nil
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("source"), 0o644))
	return p
}

func TestToolError(t *testing.T) {
	err := toolError("libreoffice", []byte("  boom\n"), errors.New("exit status 1"))
	assert.EqualError(t, err, "libreoffice: exit status 1: boom")

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "boom", te.Output)

	long := strings.Repeat("x", maxOutput+10)
	te = toolError("x", []byte(long), errors.New("e")).(*ToolError)
	assert.Len(t, te.Output, maxOutput+3)

	assert.EqualError(t, toolError("x", nil, errors.New("e")), "x: e")
}

func TestStem(t *testing.T) {
	assert.Equal(t, "report", stem("/a/b/report.docx"))
	assert.Equal(t, "archive.tar", stem("archive.tar.gz"))
	assert.Equal(t, "noext", stem("noext"))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.pdf")
	dst := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(src, []byte(fakePDF), 0o644))

	require.NoError(t, moveFile(src, dst))
	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(data))
}

func TestMSOffice(t *testing.T) {
	t.Run("unavailable off windows", func(t *testing.T) {
		m := NewMSOffice("", &fakeExecutor{paths: map[string]string{"powershell": "ps"}})
		m.goos = "linux"
		assert.False(t, m.Available(context.Background()))
		err := m.Convert(context.Background(), "a.docx", "a.pdf")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("availability check fails", func(t *testing.T) {
		fe := &fakeExecutor{
			paths: map[string]string{"powershell": "ps"},
			run:   func(string, []string) ([]byte, error) { return nil, errors.New("exit status 1") },
		}
		m := NewMSOffice("", fe)
		m.goos = "windows"
		assert.False(t, m.Available(context.Background()))
	})

	tests := []struct {
		name   string
		src    string
		expect string
	}{
		{name: "word", src: "memo.docx", expect: "ExportAsFixedFormat("},
		{name: "excel", src: "book.xlsx", expect: "$wb.ExportAsFixedFormat(0, "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := writeSource(t, dir, tt.src)
			dst := filepath.Join(dir, "out.pdf")

			fe := &fakeExecutor{
				paths: map[string]string{"powershell": "ps"},
				run: func(_ string, args []string) ([]byte, error) {
					return nil, os.WriteFile(dst, []byte(fakePDF), 0o644)
				},
			}
			m := NewMSOffice("", fe)
			m.goos = "windows"

			require.NoError(t, m.Convert(context.Background(), src, dst))
			require.Len(t, fe.calls, 1)
			script := fe.calls[0].args[len(fe.calls[0].args)-1]
			assert.Contains(t, script, tt.expect)
			assert.Contains(t, script, psQuote(src))
			assert.Contains(t, script, psQuote(dst))
		})
	}

	sheets := []struct {
		sheet  string
		expect string
	}{
		{sheet: "2", expect: "$wb.Sheets(2).ExportAsFixedFormat(0, "},
		{sheet: "Q3 Budget", expect: "$wb.Sheets('Q3 Budget').ExportAsFixedFormat(0, "},
		{sheet: "O'Neil", expect: "$wb.Sheets('O''Neil')"},
	}
	for _, tt := range sheets {
		t.Run("sheet "+tt.sheet, func(t *testing.T) {
			dir := t.TempDir()
			src := writeSource(t, dir, "book.xlsx")
			dst := filepath.Join(dir, "out.pdf")
			fe := &fakeExecutor{run: func(string, []string) ([]byte, error) {
				return nil, os.WriteFile(dst, []byte(fakePDF), 0o644)
			}}
			m := NewMSOffice("", fe)
			m.goos = "windows"

			require.NoError(t, m.ConvertSheet(context.Background(), src, dst, tt.sheet))
			script := fe.calls[0].args[len(fe.calls[0].args)-1]
			assert.Contains(t, script, tt.expect)
		})
	}

	t.Run("sheet rejected", func(t *testing.T) {
		m := NewMSOffice("", &fakeExecutor{})
		m.goos = "windows"
		dir := t.TempDir()
		assert.ErrorContains(t, m.ConvertSheet(context.Background(), writeSource(t, dir, "memo.docx"), "out.pdf", "1"), "not a workbook")
		assert.ErrorContains(t, m.ConvertSheet(context.Background(), writeSource(t, dir, "book.xlsx"), "out.pdf", "0"), "1 or greater")
	})

	t.Run("unsupported kind", func(t *testing.T) {
		m := NewMSOffice("", &fakeExecutor{})
		m.goos = "windows"
		err := m.Convert(context.Background(), "photo.png", "out.pdf")
		assert.Error(t, err)
	})

	t.Run("no output", func(t *testing.T) {
		dir := t.TempDir()
		src := writeSource(t, dir, "memo.doc")
		m := NewMSOffice("", &fakeExecutor{run: func(string, []string) ([]byte, error) {
			return []byte("quiet"), nil
		}})
		m.goos = "windows"
		err := m.Convert(context.Background(), src, filepath.Join(dir, "out.pdf"))
		var te *ToolError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "quiet", te.Output)
	})
}

func TestPSQuote(t *testing.T) {
	assert.Equal(t, `'C:\a b\x.docx'`, psQuote(`C:\a b\x.docx`))
	assert.Equal(t, `'O''Brien.docx'`, psQuote("O'Brien.docx"))
}

func TestLibreOffice(t *testing.T) {
	t.Run("searches candidates", func(t *testing.T) {
		fe := &fakeExecutor{paths: map[string]string{"libreoffice": "/usr/bin/libreoffice"}}
		l := NewLibreOffice("", "", fe)
		assert.True(t, l.Available(context.Background()))
		bin, err := l.binary()
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/libreoffice", bin)
	})

	t.Run("missing binary", func(t *testing.T) {
		l := NewLibreOffice("/opt/soffice", "", &fakeExecutor{})
		assert.False(t, l.Available(context.Background()))
		err := l.Convert(context.Background(), "a.docx", "a.pdf")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("converts and moves output", func(t *testing.T) {
		dir := t.TempDir()
		src := writeSource(t, dir, "Quarterly Report.docx")
		dst := filepath.Join(dir, "staged.pdf")
		profile := filepath.Join(dir, "profile")

		fe := &fakeExecutor{
			paths: map[string]string{"soffice": "/usr/bin/soffice"},
			run: func(_ string, args []string) ([]byte, error) {
				out := argAfter(args, "--outdir")
				return nil, os.WriteFile(filepath.Join(out, "Quarterly Report.pdf"), []byte(fakePDF), 0o644)
			},
		}
		l := NewLibreOffice("", profile, fe)
		require.NoError(t, l.Convert(context.Background(), src, dst))

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, fakePDF, string(data))

		args := fe.calls[0].args
		assert.True(t, strings.HasPrefix(args[0], "-env:UserInstallation=file://"))
		assert.Contains(t, args, "--headless")
		assert.Equal(t, src, args[len(args)-1])

		// The per-call output directory is removed.
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasPrefix(e.Name(), ".soffice-"), e.Name())
		}
	})

	t.Run("exit zero without output", func(t *testing.T) {
		dir := t.TempDir()
		src := writeSource(t, dir, "a.xlsx")
		fe := &fakeExecutor{
			paths: map[string]string{"soffice": "/usr/bin/soffice"},
			run: func(string, []string) ([]byte, error) {
				return []byte("Error: source file could not be loaded"), nil
			},
		}
		err := NewLibreOffice("", "", fe).Convert(context.Background(), src, filepath.Join(dir, "a.pdf"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source file could not be loaded")
	})

	t.Run("tool failure", func(t *testing.T) {
		dir := t.TempDir()
		src := writeSource(t, dir, "a.xlsx")
		fe := &fakeExecutor{
			paths: map[string]string{"soffice": "/usr/bin/soffice"},
			run: func(string, []string) ([]byte, error) {
				return []byte("crash"), errors.New("exit status 81")
			},
		}
		err := NewLibreOffice("", "", fe).Convert(context.Background(), src, filepath.Join(dir, "a.pdf"))
		assert.EqualError(t, err, "libreoffice: exit status 81: crash")
	})
}

func TestSofficeArgs(t *testing.T) {
	args := sofficeArgs("", "/out", "/in/a.docx")
	assert.Equal(t, []string{
		"--headless", "--norestore", "--nolockcheck", "--nologo",
		"--convert-to", "pdf", "--outdir", "/out", "/in/a.docx",
	}, args)
}

func TestDocx2PDF(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "memo.docx")
	dst := filepath.Join(dir, "memo.pdf")

	fe := &fakeExecutor{
		paths: map[string]string{"docx2pdf": "/usr/local/bin/docx2pdf"},
		run: func(_ string, args []string) ([]byte, error) {
			if len(args) == 2 {
				return nil, os.WriteFile(args[1], []byte(fakePDF), 0o644)
			}
			return []byte("0.1.8"), nil
		},
	}
	d := NewDocx2PDF("", fe)

	d.goos = "linux"
	assert.False(t, d.Available(context.Background()))
	d.goos = "darwin"
	assert.True(t, d.Available(context.Background()))

	assert.True(t, d.Supports(types.KindWord))
	assert.False(t, d.Supports(types.KindExcel))

	require.NoError(t, d.Convert(context.Background(), src, dst))
	last := fe.calls[len(fe.calls)-1]
	assert.Equal(t, []string{src, dst}, last.args)

	missing := NewDocx2PDF("docx2pdf", &fakeExecutor{})
	assert.ErrorIs(t, missing.Convert(context.Background(), src, dst), ErrUnavailable)
}

type fakeRuntime struct {
	imageErr error
	spec     container.RunSpec
	run      func(spec container.RunSpec) error
}

func (f *fakeRuntime) Name() string { return "fake" }
func (f *fakeRuntime) Available(context.Context) bool { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }
func (f *fakeRuntime) Run(_ context.Context, spec container.RunSpec) error {
	f.spec = spec
	if f.run != nil {
		return f.run(spec)
	}
	return nil
}

func TestContainer(t *testing.T) {
	t.Run("no runtime", func(t *testing.T) {
		c := NewContainer("img", func(context.Context) (container.Runtime, error) {
			return nil, errors.New("neither docker nor podman found")
		})
		assert.False(t, c.Available(context.Background()))
		assert.ErrorIs(t, c.Convert(context.Background(), "a.docx", "a.pdf"), ErrUnavailable)
	})

	t.Run("missing image", func(t *testing.T) {
		rt := &fakeRuntime{imageErr: errors.New("no such image")}
		c := NewContainer("img", func(context.Context) (container.Runtime, error) { return rt, nil })
		assert.False(t, c.Available(context.Background()))
	})

	t.Run("converts", func(t *testing.T) {
		dir := t.TempDir()
		src := writeSource(t, dir, "book.xlsx")
		dst := filepath.Join(dir, "out.pdf")

		rt := &fakeRuntime{run: func(spec container.RunSpec) error {
			return os.WriteFile(filepath.Join(spec.Mounts[1].Host, "book.pdf"), []byte(fakePDF), 0o644)
		}}
		c := NewContainer("lo:7", func(context.Context) (container.Runtime, error) { return rt, nil })
		assert.True(t, c.Available(context.Background()))
		require.NoError(t, c.Convert(context.Background(), src, dst))

		assert.Equal(t, "lo:7", rt.spec.Image)
		assert.True(t, strings.HasPrefix(rt.spec.Name, "office2pdf-"), "containers are named for cleanup: %q", rt.spec.Name)
		assert.Equal(t, container.Mount{Host: dir, Container: containerIn, ReadOnly: true}, rt.spec.Mounts[0])
		assert.Equal(t, containerIn+"/book.xlsx", rt.spec.Args[len(rt.spec.Args)-1])
		_, err := os.Stat(dst)
		assert.NoError(t, err)
	})

	t.Run("run failure carries logs", func(t *testing.T) {
		dir := t.TempDir()
		src := writeSource(t, dir, "book.xlsx")
		rt := &fakeRuntime{run: func(spec container.RunSpec) error {
			io.WriteString(spec.Stderr, "soffice: not found")
			return errors.New("exit status 127")
		}}
		c := NewContainer("lo", func(context.Context) (container.Runtime, error) { return rt, nil })
		err := c.Convert(context.Background(), src, filepath.Join(dir, "out.pdf"))
		assert.EqualError(t, err, "container: exit status 127: soffice: not found")
	})
}

func TestGotenberg(t *testing.T) {
	old := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = 0
	t.Cleanup(func() { httputil.RetryBaseDelay = old })

	var mu sync.Mutex
	var gotFile, gotUser string
	busy := 1
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case gotenbergHealthPath:
			w.WriteHeader(http.StatusOK)
		case gotenbergConvertPath:
			mu.Lock()
			defer mu.Unlock()
			if busy > 0 {
				busy--
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			gotUser, _, _ = r.BasicAuth()
			f, hdr, err := r.FormFile("files")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.Close()
			gotFile = hdr.Filename
			if hdr.Filename == "broken.docx" {
				http.Error(w, "LibreOffice failed to process a document", http.StatusBadRequest)
				return
			}
			io.WriteString(w, fakePDF)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	g := NewGotenberg(ts.URL+"/", ts.Client(), "svc", "pw")
	assert.True(t, g.Available(context.Background()))

	dir := t.TempDir()
	src := writeSource(t, dir, "memo.docx")
	dst := filepath.Join(dir, "memo.pdf")
	require.NoError(t, g.Convert(context.Background(), src, dst))
	assert.Equal(t, "memo.docx", gotFile)
	assert.Equal(t, "svc", gotUser)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(data))

	bad := writeSource(t, dir, "broken.docx")
	err = g.Convert(context.Background(), bad, filepath.Join(dir, "broken.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "failed to process a document")

	off := NewGotenberg("", nil, "", "")
	assert.False(t, off.Available(context.Background()))
	assert.ErrorIs(t, off.Convert(context.Background(), src, dst), ErrUnavailable)
}

func TestImageEngine(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	img := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	e := NewImage(imagepdf.Options{DPI: 300})
	assert.True(t, e.Available(context.Background()))
	assert.True(t, e.Supports(types.KindImage))
	assert.False(t, e.Supports(types.KindWord))

	dst := filepath.Join(dir, "photo.pdf")
	require.NoError(t, e.Convert(context.Background(), src, dst))
	info, err := pdfcheck.Inspect(dst)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
}

// stubEngine is a configurable Engine for registry tests.
type stubEngine struct {
	name   string
	kinds  []types.DocumentKind
	avail  bool
	checks int
}

func (s *stubEngine) Name() string { return s.name }
func (s *stubEngine) Supports(k types.DocumentKind) bool {
	for _, x := range s.kinds {
		if x == k {
			return true
		}
	}
	return false
}
func (s *stubEngine) Available(context.Context) bool { s.checks++; return s.avail }
func (s *stubEngine) Convert(context.Context, string, string) error { return nil }

func TestRegistry(t *testing.T) {
	a := &stubEngine{name: "a", kinds: []types.DocumentKind{types.KindWord, types.KindExcel}, avail: true}
	b := &stubEngine{name: "b", kinds: []types.DocumentKind{types.KindImage}}
	dup := &stubEngine{name: "a"}

	r := NewRegistry(a, b, dup)
	require.Len(t, r.All(), 2)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = r.Get("zzz")
	assert.False(t, ok)

	ctx := context.Background()
	assert.True(t, r.Available(ctx, a))
	assert.True(t, r.Available(ctx, a))
	assert.Equal(t, 1, a.checks)

	st := r.Detect(ctx)
	assert.Equal(t, []Status{
		{Name: "a", Kinds: []types.DocumentKind{types.KindWord, types.KindExcel}, Available: true},
		{Name: "b", Kinds: []types.DocumentKind{types.KindImage}, Available: false},
	}, st)

	r.Refresh()
	r.Available(ctx, a)
	assert.Equal(t, 2, a.checks)
}

func TestRegistryRechecksUnavailable(t *testing.T) {
	clock := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	down := &stubEngine{name: "libreoffice", kinds: []types.DocumentKind{types.KindWord}}
	up := &stubEngine{name: "image", kinds: []types.DocumentKind{types.KindImage}, avail: true}
	r := NewRegistry(down, up)
	r.now = func() time.Time { return clock }
	ctx := context.Background()

	assert.False(t, r.Available(ctx, down))
	assert.True(t, r.Available(ctx, up))

	clock = clock.Add(UnavailableTTL - time.Second)
	down.avail = true
	assert.False(t, r.Available(ctx, down), "negative result still fresh")
	assert.Equal(t, 1, down.checks)

	clock = clock.Add(2 * time.Second)
	assert.True(t, r.Available(ctx, down), "engine started later is picked up")
	assert.Equal(t, 2, down.checks)

	clock = clock.Add(time.Hour)
	assert.True(t, r.Available(ctx, up))
	assert.Equal(t, 1, up.checks, "positive results are kept")
}

func TestDefaultRegistry(t *testing.T) {
	r := Default(types.DefaultConfig(), nil)
	var names []string
	for _, e := range r.All() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"msoffice", "docx2pdf", "libreoffice", "container", "gotenberg", "image"}, names)
}
