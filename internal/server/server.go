// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes conversion over a small local HTTP API.
//
//	GET  /api/health
//	GET  /api/engines[?refresh=1]
//	GET  /api/formats
//	GET  /api/history[?limit=N&status=S&source=Q]
//	POST /api/convert   multipart form, field "file"
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/office2pdf/internal/convert"
	"github.com/pdiddy/office2pdf/internal/engine"
	"github.com/pdiddy/office2pdf/internal/formats"
	"github.com/pdiddy/office2pdf/internal/history"
	"github.com/pdiddy/office2pdf/internal/logging"
	"github.com/pdiddy/office2pdf/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Converter converts one file. *convert.Converter implements it.
type Converter interface {
	Convert(ctx context.Context, src string, t convert.Target) (types.ConversionRecord, error)
}

// History lists past conversions. *history.Store implements it.
type History interface {
	List(ctx context.Context, f history.Filter) ([]types.ConversionRecord, error)
}

// Options configures a Server.
type Options struct {
	Config types.ServerConfig

	// UploadDir holds uploaded sources and their PDFs while a request runs.
	UploadDir string

	Version string
}

// Server is the HTTP front-end. History may be nil.
type Server struct {
	echo    *echo.Echo
	conv    Converter
	engines *engine.Registry
	history History
	opts    Options
}

// New builds a Server and registers its routes.
func New(conv Converter, engines *engine.Registry, hist History, opts Options) *Server {
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(os.TempDir(), "office2pdf-uploads")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	if opts.Config.MaxUpload > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(opts.Config.MaxUpload, 10) + "B"))
	}

	s := &Server{echo: e, conv: conv, engines: engines, history: hist, opts: opts}
	e.GET("/api/health", s.Health)
	e.GET("/api/engines", s.Engines)
	e.GET("/api/formats", s.Formats)
	e.GET("/api/history", s.History)
	e.POST("/api/convert", s.Convert)
	return s
}

// ServeHTTP lets the Server be mounted or driven directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.echo.Start(s.opts.Config.Addr) }()

	logging.Info().Add(logging.Component("server")).Add(logging.Str("addr", s.opts.Config.Addr)).Msg("listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// Health reports that the server is up.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
	})
}

// Engines checks every engine. refresh=1 drops cached availability first.
func (s *Server) Engines(c echo.Context) error {
	if c.QueryParam("refresh") != "" {
		s.engines.Refresh()
	}
	return c.JSON(http.StatusOK, s.engines.Detect(c.Request().Context()))
}

// Formats lists accepted extensions per document kind.
func (s *Server) Formats(c echo.Context) error {
	out := make(map[types.DocumentKind][]string)
	for _, k := range formats.Kinds() {
		out[k] = formats.Extensions(k)
	}
	return c.JSON(http.StatusOK, out)
}

// History returns recent conversions, newest first.
func (s *Server) History(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is disabled")
	}

	f := history.Filter{
		Status: types.ConversionStatus(c.QueryParam("status")),
		Source: c.QueryParam("source"),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		f.Limit = n
	}

	recs, err := s.history.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []types.ConversionRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

// Convert accepts one uploaded document and responds with its PDF.
func (s *Server) Convert(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing form file \"file\"")
	}
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(fh.Filename, `\`, "/")))
	if name == "/" || name == "." {
		return echo.NewHTTPError(http.StatusBadRequest, "upload has no file name")
	}
	if !formats.IsSupported(name) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType,
			fmt.Sprintf("%s: %s", name, formats.ErrUnsupported))
	}

	job := filepath.Join(s.opts.UploadDir, ulid.Make().String())
	if err := os.MkdirAll(job, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}
	defer os.RemoveAll(job)

	src := filepath.Join(job, name)
	if err := saveUpload(fh, src); err != nil {
		return err
	}

	rec, err := s.conv.Convert(c.Request().Context(), src, convert.Target{
		Dir:       job,
		Overwrite: true,
		Sheet:     c.FormValue("sheet"),
	})
	if err != nil {
		return convertError(err)
	}
	logging.Info().Add(logging.Component("server")).Add(logging.Source(name)).Add(logging.Engine(rec.Engine)).Msg("served conversion")
	c.Response().Header().Set("X-Office2pdf-Engine", rec.Engine)
	return c.Attachment(rec.Output, filepath.Base(rec.Output))
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	in, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("saving upload: %w", err)
	}
	return out.Close()
}

// convertError maps a conversion failure onto an HTTP status.
func convertError(err error) error {
	var fb *convert.FallbackError
	switch {
	case errors.Is(err, formats.ErrEmpty), errors.Is(err, formats.ErrLockFile),
		errors.Is(err, formats.ErrUnsupported), errors.Is(err, formats.ErrNotRegular),
		errors.Is(err, convert.ErrSheetUnsupported):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, convert.ErrNoEngine), errors.As(err, &fb):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(499, "request cancelled").SetInternal(err)
	default:
		return err
	}
}

// errorHandler renders every error as {"error": ...}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		logging.Error().Add(logging.Component("server")).Add(logging.Str("path", c.Request().URL.Path)).Add(logging.ErrorField(err)).Msg("request failed")
	}

	body := map[string]string{"error": msg, "path": c.Request().URL.Path}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		logging.Warn().Add(logging.Component("server")).Add(logging.ErrorField(err)).Msg("writing error response")
	}
}
