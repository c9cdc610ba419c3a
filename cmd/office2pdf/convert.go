// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/office2pdf/internal/convert"
	"github.com/pdiddy/office2pdf/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files or directories...]",
	Short: "Convert documents and images to PDF",
	Long: `Convert renders each file to PDF and publishes it to the output directory,
an explicit path (-o), or the Downloads folder (--downloads).

Engines are tried in order: with --method auto the order depends on the file
type; with an explicit method that engine runs first and --backup second.
An existing PDF is never overwritten unless --overwrite is given; the new
file is saved as name_1.pdf, name_2.pdf, and so on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringP("output", "o", "", "output PDF path (single input only)")
	f.String("dir", "", "output directory (default: paths.output_dir)")
	f.Bool("downloads", false, "save into the Downloads folder")
	f.Bool("overwrite", false, "replace existing PDFs instead of renaming")
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.String("report", "", "write a YAML batch report to this path")
	f.String("sheet", "", "export one Excel worksheet, by name or 1-based index (msoffice only)")

	f.String("method", "", "engine: auto, msoffice, docx2pdf, libreoffice, container, gotenberg, image")
	f.String("backup", "", "engine tried when --method fails")
	f.IntP("jobs", "j", 0, "concurrent conversions")
	f.Duration("timeout", 0, "time limit per engine attempt")
	f.Bool("skip-existing", false, "skip files whose PDF already exists")
	f.Bool("verify", true, "check that every produced PDF parses and has pages")
	f.Int("dpi", 0, "image resolution used for page size")
	f.String("image-format", "", "image embedding: png or jpeg")

	bindFlag("conversion.method", f.Lookup("method"))
	bindFlag("conversion.backup_method", f.Lookup("backup"))
	bindFlag("conversion.jobs", f.Lookup("jobs"))
	bindFlag("conversion.timeout", f.Lookup("timeout"))
	bindFlag("conversion.skip_existing", f.Lookup("skip-existing"))
	bindFlag("conversion.verify", f.Lookup("verify"))
	bindFlag("conversion.dpi", f.Lookup("dpi"))
	bindFlag("conversion.image_format", f.Lookup("image-format"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	dir, _ := cmd.Flags().GetString("dir")
	downloads, _ := cmd.Flags().GetBool("downloads")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	recursive, _ := cmd.Flags().GetBool("recursive")
	report, _ := cmd.Flags().GetString("report")
	sheet, _ := cmd.Flags().GetString("sheet")

	srcs, err := convert.Collect(args, recursive)
	if err != nil {
		return err
	}
	if len(srcs) == 0 {
		return errors.New("no supported files found")
	}
	if output != "" && len(srcs) > 1 {
		return fmt.Errorf("-o names a single file but %d inputs were given; use --dir", len(srcs))
	}

	conv, _, _, closeFn, err := newConverter()
	if err != nil {
		return err
	}
	defer closeFn()

	target := convert.Target{Path: output, Dir: dir, Downloads: downloads, Overwrite: overwrite, Sheet: sheet}
	out := cmd.OutOrStdout()

	if len(srcs) == 1 && report == "" {
		rec, err := conv.Convert(cmd.Context(), srcs[0], target)
		if err != nil {
			return err
		}
		printRecord(cmd, rec)
		return nil
	}

	result := conv.ConvertBatch(cmd.Context(), srcs, target, out)
	if report != "" {
		if err := convert.WriteReport(report, result); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", report)
	}
	if result.HasFailures() {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Total())
	}
	return cmd.Context().Err()
}

func printRecord(cmd *cobra.Command, rec types.ConversionRecord) {
	out := cmd.OutOrStdout()
	if rec.Status == types.ConversionSkipped {
		fmt.Fprintf(out, "Skipped %s: %s already exists\n", rec.Source, rec.Output)
		return
	}
	fmt.Fprintf(out, "Converted %s\n", rec.Source)
	fmt.Fprintf(out, "  output:   %s\n", rec.Output)
	fmt.Fprintf(out, "  engine:   %s\n", rec.Engine)
	if rec.Pages > 0 {
		fmt.Fprintf(out, "  pages:    %d\n", rec.Pages)
	}
	fmt.Fprintf(out, "  size:     %s\n", humanize.IBytes(uint64(rec.OutputSize)))
	fmt.Fprintf(out, "  duration: %s\n", rec.Duration().Round(time.Millisecond))
}

var combineCmd = &cobra.Command{
	Use:   "combine -o out.pdf images...",
	Short: "Combine images into one multi-page PDF",
	Long: `Combine writes every image, in the order given, as one page of a single PDF.
Each page is sized from the image's pixels at the configured DPI.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		if output == "" {
			return errors.New("-o is required")
		}

		conv, _, _, closeFn, err := newConverter()
		if err != nil {
			return err
		}
		defer closeFn()

		rec, err := conv.Combine(cmd.Context(), args, output, overwrite)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Combined %d images into %s (%d pages, %s)\n",
			len(args), rec.Output, rec.Pages, humanize.IBytes(uint64(rec.OutputSize)))
		return nil
	},
}

func init() {
	combineCmd.Flags().StringP("output", "o", "", "output PDF path")
	combineCmd.Flags().Bool("overwrite", false, "replace an existing PDF instead of renaming")
	rootCmd.AddCommand(combineCmd)
}
