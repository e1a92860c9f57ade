package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/arxiv"
	"github.com/csheth/ragtoxiv/internal/snapshot"
)

// now is swapped out in tests.
var now = time.Now

var fetchCmd = &cobra.Command{
	Use:   "fetch [categories...]",
	Short: "Download today's arXiv announcements into snapshot files",
	Long: `Fetches the arXiv announcement feed for each category and writes one
snapshot file per category to the data directory. Without arguments the
categories come from feed.categories, or the session category.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		categories := args
		if len(categories) == 0 {
			categories = cfg.Feed.Categories
		}
		if len(categories) == 0 {
			categories = []string{cfg.Session.Category}
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		collector := arxiv.NewCollector(arxiv.CollectorConfig{
			BaseURL:         cfg.Feed.BaseURL,
			RequestInterval: cfg.Feed.RequestInterval,
			Retry:           cfg.Feed.Retry,
			Logger:          logger,
		})
		out := cmd.OutOrStdout()
		var failed []string
		for _, cat := range categories {
			snap, err := collector.Fetch(ctx, cat)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("fetch failed", zap.String("category", cat), zap.Error(err))
				failed = append(failed, cat)
				continue
			}
			target := "(dry run)"
			if !dryRun {
				path, err := arxiv.WriteSnapshotFile(cfg.DataDir, snap)
				if err != nil {
					return fmt.Errorf("write snapshot for %s: %w", cat, err)
				}
				target = path
			}
			fmt.Fprintf(out, "%s %s: %d papers (%d new, %d cross-lists) -> %s\n",
				snap.Date.Format("2006-01-02"), cat, snap.Stats.Total,
				snap.Stats.NewSubmissions, snap.Stats.CrossLists, target)
		}
		if len(failed) > 0 {
			return fmt.Errorf("fetch failed for %d of %d categories: %v", len(failed), len(categories), failed)
		}
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect and prune snapshot files",
}

// categoryFilter returns the --category value only when it was given, so the
// session default never narrows a listing.
func categoryFilter(cmd *cobra.Command) string {
	if cmd.Flags().Changed("category") {
		return category
	}
	return ""
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshot files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := snapshot.NewStore(cfg.DataDir).List(categoryFilter(cmd))
		if err != nil {
			return err
		}
		printSnapshots(cmd.OutOrStdout(), files)
		return nil
	},
}

func printSnapshots(out io.Writer, files []snapshot.FileInfo) {
	if len(files) == 0 {
		fmt.Fprintln(out, "No snapshot files found.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	var total int64
	for _, f := range files {
		note := ""
		if f.Empty {
			note = "(empty)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, humanSize(f.Size), note)
		total += f.Size
	}
	_ = tw.Flush()
	noun := "files"
	if len(files) == 1 {
		noun = "file"
	}
	fmt.Fprintf(out, "%d %s, %s total\n", len(files), noun, humanSize(total))
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old snapshot files",
	Long: `Deletes snapshot files by age (--older-than N days) or by count
(--keep N most recent per category). Exactly one rule must be given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		olderThan, _ := flags.GetInt("older-than")
		keep, _ := flags.GetInt("keep")
		skipEmpty, _ := flags.GetBool("skip-empty")
		dryRun, _ := flags.GetBool("dry-run")

		byAge, byCount := flags.Changed("older-than"), flags.Changed("keep")
		switch {
		case byAge == byCount:
			return errors.New("specify exactly one of --older-than or --keep")
		case byAge && olderThan < 1:
			return errors.New("--older-than must be at least 1")
		case byCount && keep < 1:
			return errors.New("--keep must be at least 1")
		}

		store := snapshot.NewStore(cfg.DataDir)
		filter := categoryFilter(cmd)
		var (
			removed []snapshot.FileInfo
			err     error
		)
		if byAge {
			removed, err = store.PruneOlderThan(now(), olderThan, filter, dryRun)
		} else {
			removed, err = store.PruneKeepRecent(keep, filter, skipEmpty, dryRun)
		}
		for _, f := range removed {
			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, f.Name)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d snapshot files pruned\n", len(removed))
		return nil
	},
}
