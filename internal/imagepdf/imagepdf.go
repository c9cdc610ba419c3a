// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package imagepdf writes raster images into a PDF, one page per image.
//
// Each page is sized so the image keeps its native pixel density at the
// requested DPI: a 3000x2400 scan at 300 DPI becomes a 10x8 inch page. Images
// are never upscaled. EXIF orientation is applied and transparent areas are
// flattened onto white so viewers and printers do not render a black background.
package imagepdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/webp"

	"github.com/pdiddy/office2pdf/pkg/types"
)

const (
	pointsPerInch = 72.0

	defaultDPI     = 300
	defaultQuality = 95
)

// Options controls page sizing and image embedding.
type Options struct {
	// DPI maps pixels to points (default 300).
	DPI int
	// Format selects PNG (lossless, default) or JPEG embedding.
	Format types.ImageFormat
	// Quality is the JPEG quality, 1-100 (default 95).
	Quality int
	// Creator is written to the PDF info dictionary when non-empty.
	Creator string
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = defaultDPI
	}
	if o.Format == "" {
		o.Format = types.ImagePNG
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = defaultQuality
	}
	return o
}

// PageSize returns the page size in points for an image of w x h pixels.
func PageSize(w, h, dpi int) (float64, float64) {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return float64(w) * pointsPerInch / float64(dpi), float64(h) * pointsPerInch / float64(dpi)
}

// Load decodes the image at path, applies its EXIF orientation, and
// flattens any transparency onto a white background.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return Flatten(img), nil
}

// Flatten composites img over an opaque white canvas of the same size.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// Write renders srcs into a single PDF at dst, one page per image in order.
func Write(ctx context.Context, srcs []string, dst string, opts Options) error {
	if len(srcs) == 0 {
		return fmt.Errorf("no images to write")
	}
	opts = opts.withDefaults()

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: 612, Ht: 792},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opts.Creator != "" {
		pdf.SetCreator(opts.Creator, true)
	}

	for i, src := range srcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addPage(pdf, src, "img"+strconv.Itoa(i), opts); err != nil {
			return err
		}
	}

	if err := pdf.OutputFileAndClose(dst); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

func addPage(pdf *fpdf.Fpdf, src, name string, opts Options) error {
	img, err := Load(src)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
	if opts.Format == types.ImageJPEG {
		imgOpts.ImageType = "JPG"
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
	} else {
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", src, err)
	}

	b := img.Bounds()
	w, h := PageSize(b.Dx(), b.Dy(), opts.DPI)

	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	pdf.RegisterImageOptionsReader(name, imgOpts, &buf)
	pdf.ImageOptions(name, 0, 0, w, h, false, imgOpts, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("embedding %s: %w", src, err)
	}
	return nil
}
