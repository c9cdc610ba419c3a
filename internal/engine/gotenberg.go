// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/office2pdf/internal/httputil"
	"github.com/pdiddy/office2pdf/pkg/types"
)

const (
	gotenbergConvertPath = "/forms/libreoffice/convert"
	gotenbergHealthPath  = "/health"

	// Secret file names read from the secrets directory.
	SecretGotenbergUser     = "gotenberg-username"
	SecretGotenbergPassword = "gotenberg-password"
)

// Gotenberg posts documents to a Gotenberg service, which renders them with
// its bundled LibreOffice. Busy responses are retried.
type Gotenberg struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
	retries  int
}

// NewGotenberg returns an engine for the service at baseURL. Basic auth is
// sent when user is non-empty.
func NewGotenberg(baseURL string, client *http.Client, user, password string) *Gotenberg {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gotenberg{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		user:     user,
		password: password,
	}
}

func (g *Gotenberg) Name() string { return string(types.MethodGotenberg) }

func (g *Gotenberg) Supports(kind types.DocumentKind) bool {
	return kind == types.KindWord || kind == types.KindExcel
}

func (g *Gotenberg) Available(ctx context.Context) bool {
	if g.baseURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+gotenbergHealthPath, nil)
	if err != nil {
		return false
	}
	g.authorize(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (g *Gotenberg) authorize(req *http.Request) {
	if g.user != "" {
		req.SetBasicAuth(g.user, g.password)
	}
}

func (g *Gotenberg) Convert(ctx context.Context, src, dst string) error {
	if g.baseURL == "" {
		return fmt.Errorf("%s: %w: no URL configured", g.Name(), ErrUnavailable)
	}

	body, contentType, err := multipartFile(src)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+gotenbergConvertPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	g.authorize(req)

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.retries)
	if err != nil {
		return fmt.Errorf("%s: posting %s: %w", g.Name(), filepath.Base(src), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxOutput))
		return toolError(g.Name(), msg, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("%s: reading response: %w", g.Name(), err)
	}
	return out.Close()
}

// multipartFile encodes src as the "files" field Gotenberg expects.
func multipartFile(src string) ([]byte, string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", filepath.Base(src))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", src, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
