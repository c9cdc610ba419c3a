// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/office2pdf/internal/engine"
	"github.com/pdiddy/office2pdf/internal/fileio"
	"github.com/pdiddy/office2pdf/internal/formats"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List conversion engines and whether they are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses := engine.Default(cfg, loadedSecrets).Detect(cmd.Context())

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENGINE\tKINDS\tAVAILABLE")
		for _, s := range statuses {
			avail := "no"
			if s.Available {
				avail = "yes"
			}
			fmt.Fprintf(tw, "%s\t%v\t%s\n", s.Name, s.Kinds, avail)
		}
		return tw.Flush()
	},
}

var infoCmd = &cobra.Command{
	Use:   "info file",
	Short: "Show file details and whether it can be converted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fi, err := fileio.Describe(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Name:      %s\n", fi.Name)
		fmt.Fprintf(out, "Path:      %s\n", fi.Path)
		fmt.Fprintf(out, "Size:      %s (%d bytes)\n", fi.HumanSize, fi.Size)
		fmt.Fprintf(out, "Modified:  %s\n", fi.ModTime.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Kind:      %s\n", formats.Detect(fi.Path))
		if _, err := formats.Validate(fi.Path); err != nil {
			fmt.Fprintf(out, "Supported: no (%v)\n", err)
		} else {
			fmt.Fprintln(out, "Supported: yes")
		}
		return nil
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported file extensions",
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range formats.Kinds() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %v\n", k, formats.Extensions(k))
		}
	},
}

var saveCmd = &cobra.Command{
	Use:   "save pdf [destination]",
	Short: "Copy a converted PDF to a destination or the Downloads folder",
	Long: `Save copies a PDF to destination, renaming it to name_1.pdf and so on when
the name is taken or the existing file is locked. Without a destination, or
with --downloads, the PDF is copied into the Downloads folder.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		downloads, _ := cmd.Flags().GetBool("downloads")

		var (
			saved string
			err   error
		)
		if len(args) == 1 || downloads {
			saved, err = fileio.CopyToDownloads(cmd.Context(), args[0], cfg.Paths.DownloadsDir)
		} else {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("checking %s: %w", args[0], err)
			}
			saved, err = fileio.Publish(cmd.Context(), args[0], args[1], overwrite)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", saved)
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove staged PDFs and temporary files",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := fileio.CleanTemp(cfg.Paths.OutputDir, cfg.Paths.TempDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d temporary files\n", n)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	saveCmd.Flags().Bool("overwrite", false, "replace an existing destination")
	saveCmd.Flags().Bool("downloads", false, "copy into the Downloads folder")

	rootCmd.AddCommand(enginesCmd, infoCmd, formatsCmd, saveCmd, cleanCmd, configCmd)
}
