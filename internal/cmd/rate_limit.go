package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/riftlens/riftlens/internal/core/store"
	"github.com/riftlens/riftlens/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect or clear persisted upstream backoff",
	Long: `The dispatch queue persists provider-imposed backoff (after a 429) so a
restart keeps honouring it. These commands read and clear that state.`,
}

type rateLimitFlags struct {
	format string
	out    string
	outDir string
	query  store.BackoffQuery
}

func (f *rateLimitFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "output-format", string(output.FormatTable), "Output format: table|json")
	cmd.Flags().StringVar(&f.out, "out", "", "Write output to a file (default stdout)")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Write output to a directory")
	cmd.Flags().BoolVar(&f.query.All, "all", false, "Select all limiter keys")
	cmd.Flags().StringVar(&f.query.Key, "key", "", "Select a single limiter key (exact match)")
	cmd.Flags().StringVar(&f.query.Prefix, "prefix", "", "Select limiter keys with matching prefix")
}

var (
	listFlags  rateLimitFlags
	resetFlags rateLimitFlags
	resetYes   bool
	resetDry   bool
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted upstream backoff state",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := listFlags.query
		if query.Validate() != nil {
			query.All = true
		}
		return withBackoffStore(cmd.Context(), listFlags, "rate-limit.list", func(ctx context.Context, db *store.Store, format output.Format, w io.Writer) error {
			entries, err := db.ListBackoff(ctx, query)
			if err != nil {
				return err
			}
			if format == output.FormatJSON {
				return writeJSON(w, entries)
			}
			_, err = fmt.Fprint(w, backoffTable(entries, time.Now()))
			return err
		})
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear persisted upstream backoff state",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := resetFlags.query
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !resetYes && !resetDry {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		return withBackoffStore(cmd.Context(), resetFlags, "rate-limit.reset", func(ctx context.Context, db *store.Store, format output.Format, w io.Writer) error {
			matched, err := db.CountBackoff(ctx, query)
			if err != nil {
				return err
			}
			var deleted int64
			if !resetDry {
				if deleted, err = db.ClearBackoff(ctx, query); err != nil {
					return err
				}
			}
			return writeResetResult(format, w, matched, deleted, resetDry)
		})
	},
}

type backoffAction func(ctx context.Context, db *store.Store, format output.Format, w io.Writer) error

func withBackoffStore(ctx context.Context, flags rateLimitFlags, base string, action backoffAction) error {
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	sink, err := sinkFor(format, flags.out, flags.outDir, base)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	return action(ctx, db, format, sink.writer)
}

func writeJSON(w io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func backoffTable(entries []store.BackoffEntry, now time.Time) string {
	if len(entries) == 0 {
		return ascii.DrawBox("Upstream Backoff\n\n(no stored backoff state)", 0)
	}

	tw := table.NewWriter()
	tw.SetTitle("Upstream Backoff")
	tw.AppendHeader(table.Row{"KEY", "CALLS", "BACKOFF UNTIL", "REMAINING", "LAST 429"})
	for _, entry := range entries {
		until, remaining := "-", "-"
		if b := entry.State.BackoffUntil; b != nil {
			until = b.Format(time.RFC3339)
			if b.After(now) {
				remaining = b.Sub(now).Round(time.Second).String()
			}
		}
		last429 := "-"
		if entry.State.Last429At != nil {
			last429 = entry.State.Last429At.Format(time.RFC3339)
		}
		tw.AppendRow(table.Row{entry.Key, entry.State.RequestCount, until, remaining, last429})
	}
	tw.SetStyle(table.StyleRounded)
	return tw.Render() + "\n"
}

func writeResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		return writeJSON(w, map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		})
	}

	var err error
	if dryRun {
		_, err = fmt.Fprintf(w, "Would clear %d backoff entr(ies)\n", matched)
	} else {
		_, err = fmt.Fprintf(w, "Cleared %d/%d backoff entr(ies); restart serve to drop in-memory backoff\n", deleted, matched)
	}
	return err
}

func init() {
	listFlags.bind(rateLimitListCmd)
	resetFlags.bind(rateLimitResetCmd)
	rateLimitResetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&resetDry, "dry-run", false, "Show what would be deleted")

	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
