// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/office2pdf/internal/history"
	"github.com/pdiddy/office2pdf/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the conversion history",
	RunE:  runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversions, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show id",
	Short: "Show one conversion with every engine attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(store *history.Store) error {
			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", rec.ID)
			fmt.Fprintf(out, "Source:   %s\n", rec.Source)
			fmt.Fprintf(out, "Output:   %s\n", rec.Output)
			fmt.Fprintf(out, "Kind:     %s\n", rec.Kind)
			fmt.Fprintf(out, "Status:   %s\n", rec.Status)
			fmt.Fprintf(out, "Started:  %s\n", rec.StartedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Duration: %s\n", rec.Duration().Round(time.Millisecond))
			if rec.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", rec.Error)
			}
			for i, a := range rec.Attempts {
				result := "ok"
				if !a.Succeeded() {
					result = a.Error
				}
				fmt.Fprintf(out, "  %d. %-12s %8s  %s\n", i+1, a.Engine, a.Duration.Round(time.Millisecond), result)
			}
			return nil
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize conversions by status, engine and kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(store *history.Store) error {
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Conversions: %d (%d converted, %d skipped, %d failed)\n",
				st.Total, st.Converted, st.Skipped, st.Failed)
			fmt.Fprintf(out, "Pages:       %d\n", st.Pages)
			fmt.Fprintf(out, "Output:      %s\n", humanize.IBytes(uint64(st.OutputSize)))
			if !st.Last.IsZero() {
				fmt.Fprintf(out, "Last:        %s\n", humanize.Time(st.Last))
			}
			printCounts(out, "By engine", st.ByEngine)
			printCounts(out, "By kind", st.ByKind)
			return nil
		})
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete conversions older than a given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		age, _ := cmd.Flags().GetDuration("older-than")
		if age <= 0 {
			return errors.New("--older-than must be positive")
		}
		return withHistory(func(store *history.Store) error {
			n, err := store.Prune(cmd.Context(), time.Now().Add(-age))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d records\n", n)
			return nil
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the history as YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		f, err := historyFilter(cmd)
		if err != nil {
			return err
		}
		return withHistory(func(store *history.Store) error {
			switch format {
			case "yaml":
				return store.ExportYAML(cmd.Context(), cmd.OutOrStdout(), f)
			case "json":
				return store.ExportJSON(cmd.Context(), cmd.OutOrStdout(), f)
			default:
				return fmt.Errorf("unknown export format %q (want yaml or json)", format)
			}
		})
	},
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	f, err := historyFilter(cmd)
	if err != nil {
		return err
	}
	return withHistory(func(store *history.Store) error {
		recs, err := store.List(cmd.Context(), f)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No conversions recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWHEN\tSTATUS\tENGINE\tSOURCE\tOUTPUT")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, humanize.Time(r.StartedAt), r.Status, dash(r.Engine),
				filepath.Base(r.Source), dash(r.Output))
		}
		return tw.Flush()
	})
}

func historyFilter(cmd *cobra.Command) (history.Filter, error) {
	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	source, _ := cmd.Flags().GetString("source")

	f := history.Filter{Limit: limit, Status: types.ConversionStatus(status), Source: source}
	switch f.Status {
	case "", types.ConversionDone, types.ConversionSkipped, types.ConversionFailed:
	default:
		return history.Filter{}, fmt.Errorf("unknown status %q", status)
	}
	return f, nil
}

// withHistory opens the store for the duration of fn.
func withHistory(fn func(*history.Store) error) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("history is disabled (paths.history_db is empty)")
	}
	defer store.Close()
	return fn(store)
}

func printCounts(w io.Writer, title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	fmt.Fprintf(w, "%-12s %s\n", title+":", strings.Join(parts, " "))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, historyListCmd, historyExportCmd} {
		c.Flags().IntP("limit", "n", 20, "maximum number of records")
		c.Flags().String("status", "", "only records with this status: converted, skipped, failed")
		c.Flags().String("source", "", "only records whose source path contains this text")
	}
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete records started before now minus this age")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd, historyPruneCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
