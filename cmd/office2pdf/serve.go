// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pdiddy/office2pdf/internal/convert"
	"github.com/pdiddy/office2pdf/internal/server"
	"github.com/pdiddy/office2pdf/internal/watch"
	"github.com/pdiddy/office2pdf/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch dir",
	Short: "Convert documents as they are dropped into a folder",
	Long: `Watch converts every supported file created or rewritten in dir once it has
been quiet for the debounce period. Office lock files are ignored. Press
Ctrl-C to stop; running conversions finish first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		existing, _ := cmd.Flags().GetBool("existing")
		dir, _ := cmd.Flags().GetString("dir")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		jobs, _ := cmd.Flags().GetInt("jobs")
		if jobs < 1 {
			jobs = cfg.Conversion.Jobs
		}

		conv, _, _, closeFn, err := newConverter()
		if err != nil {
			return err
		}
		defer closeFn()

		out := cmd.OutOrStdout()
		var mu sync.Mutex
		w := watch.New(args[0], conv, watch.Options{
			Debounce: debounce,
			Jobs:     jobs,
			Existing: existing,
			Target:   convert.Target{Dir: dir, Overwrite: overwrite},
			OnResult: func(rec types.ConversionRecord, err error) {
				name := filepath.Base(rec.Source)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					fmt.Fprintf(out, "failed:    %s (%v)\n", name, err)
				case rec.Status == types.ConversionSkipped:
					fmt.Fprintf(out, "skipped:   %s (already exists)\n", name)
				default:
					fmt.Fprintf(out, "converted: %s -> %s [%s]\n", name, rec.Output, rec.Engine)
				}
			},
		})
		fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", args[0])
		return w.Run(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP conversion API",
	Long: `Serve exposes conversion over HTTP on server.addr:

  GET  /api/health
  GET  /api/engines
  GET  /api/formats
  GET  /api/history?limit=N
  POST /api/convert   (multipart form field "file", optional "sheet";
                       responds with the PDF)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, engines, store, closeFn, err := newConverter()
		if err != nil {
			return err
		}
		defer closeFn()

		var hist server.History
		if store != nil {
			hist = store
		}
		s := server.New(conv, engines, hist, server.Options{
			Config:    cfg.Server,
			UploadDir: filepath.Join(cfg.Paths.TempDir, "uploads"),
			Version:   version,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl-C to stop)\n", cfg.Server.Addr)
		return s.Start(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a file is converted")
	watchCmd.Flags().Bool("existing", false, "also convert supported files already in the folder")
	watchCmd.Flags().String("dir", "", "output directory (default: paths.output_dir)")
	watchCmd.Flags().Bool("overwrite", false, "replace existing PDFs instead of renaming")
	watchCmd.Flags().IntP("jobs", "j", 0, "concurrent conversions (default: conversion.jobs)")

	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
	bindFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(watchCmd, serveCmd)
}
