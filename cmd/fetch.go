package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rankwatch/models"
	"rankwatch/scraper/rakuten"
	"rankwatch/services"
	"rankwatch/storage"
)

type fetchOptions struct {
	pages   int
	parquet bool
}

func newFetchCmd(a *app) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch today's ranking and save it as a snapshot",
		Long: `Fetch reads the configured genre ranking page by page (Ichiba ranking API when
APP_ID is set, the public ranking page otherwise), cleans the rows and writes
data/rank_base_<date>.csv. A failing page aborts the fetch and nothing is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := a.fetch(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.pages, "pages", 0, "ranking pages to fetch (default PAGES_TO_FETCH)")
	cmd.Flags().BoolVar(&opts.parquet, "parquet", false, "also export the snapshot as Parquet")

	return cmd
}

func (a *app) fetch(ctx context.Context, opts *fetchOptions) (*models.Snapshot, string, error) {
	pages := opts.pages
	if pages <= 0 {
		pages = a.cfg.PagesToFetch
	}

	a.logger.Info("=== Fetching ranking: genre %d, %s ===", a.cfg.GenreID, plural(pages, "page"))

	raw, err := rakuten.NewSource(a.cfg, a.logger).Fetch(ctx, pages)
	if err != nil {
		return nil, "", fmt.Errorf("fetch ranking: %w", err)
	}

	now := time.Now()
	path := a.snapshotPath(now, ".csv")
	snap, err := services.NewCleaner(a.logger, a.catalog).Clean(storage.SnapshotFileName(now, false, ".csv"), now, raw)
	if err != nil {
		return nil, "", err
	}

	csvWriter, err := storage.NewCSVWriter(path)
	if err != nil {
		return nil, "", err
	}
	if err := csvWriter.WriteSnapshot(snap); err != nil {
		csvWriter.Close()
		return nil, "", fmt.Errorf("write snapshot: %w", err)
	}
	csvWriter.Close()
	a.logger.Info("Snapshot saved to %s (%s)", path, plural(snap.Len(), "item"))

	if opts.parquet {
		pqPath := a.snapshotPath(now, ".parquet")
		if err := storage.WriteParquet(pqPath, snap); err != nil {
			a.logger.Error("Parquet export failed: %v", err)
		} else {
			a.logger.Info("Parquet export saved to %s", pqPath)
		}
	}

	for _, w := range a.archives() {
		if err := w.WriteSnapshot(snap); err != nil {
			a.logger.Error("Archive write failed: %v", err)
		}
		w.Close()
	}

	return snap, path, nil
}
