// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"

	"github.com/pdiddy/office2pdf/internal/imagepdf"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// Image converts raster images in-process; it is always available.
type Image struct {
	opts imagepdf.Options
}

// NewImage returns the in-process image engine.
func NewImage(opts imagepdf.Options) *Image {
	return &Image{opts: opts}
}

func (i *Image) Name() string { return string(types.MethodImage) }

func (i *Image) Supports(kind types.DocumentKind) bool { return kind == types.KindImage }

func (i *Image) Available(context.Context) bool { return true }

func (i *Image) Convert(ctx context.Context, src, dst string) error {
	return imagepdf.Write(ctx, []string{src}, dst, i.opts)
}
