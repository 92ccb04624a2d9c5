package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"rankwatch/models"
	"rankwatch/storage"
	"rankwatch/vision"
)

func newImagesCmd(a *app) *cobra.Command {
	var maxItems int

	cmd := &cobra.Command{
		Use:   "images [snapshot]",
		Short: "Analyse item images of a snapshot",
		Long: `Images downloads the image of every ranked item (up to --max), extracts its
color palette, quality metrics and classification, and writes
data/images/image_analysis_<timestamp>.json. Without an argument the newest
snapshot in the data directory is used. Failed items are recorded, not fatal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				latest, err := storage.FindLatest(a.cfg.DataDir)
				if err != nil {
					return err
				}
				path = latest
			}

			snap, err := a.loadSnapshot(path)
			if err != nil {
				return err
			}
			report, out, err := a.analyzeImages(snap, maxItems)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysed %d images (%d ok) → %s\n",
				report.Metadata.AnalyzedItems, report.Metadata.SuccessCount, out)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxItems, "max", 0, "maximum number of images to analyse (default MAX_IMAGES)")
	return cmd
}

func (a *app) analyzeImages(snap *models.Snapshot, maxItems int) (*models.VisualReport, string, error) {
	if maxItems <= 0 {
		maxItems = a.cfg.MaxImages
	}
	a.logger.Info("=== Image analysis: %s, up to %d images ===", snap.Source, maxItems)

	started := time.Now()
	results := a.newExtractor(maxItems).Batch(snap.Items)
	report := vision.BuildReport(a.newAssembler().Insights(), snap.Len(), results, started)

	store, err := storage.NewReportStore(a.cfg.DataDir)
	if err != nil {
		return nil, "", err
	}
	out, err := store.WriteVisualReport(report)
	if err != nil {
		return nil, "", err
	}
	a.logger.Info("Visual report saved to %s (success rate %.1f%%)", out, report.Metadata.SuccessRate)

	if err := a.writeWithImages(snap, results); err != nil {
		a.logger.Warn("Enriched snapshot not written: %v", err)
	}
	return report, out, nil
}

// writeWithImages stores snap next to the plain snapshot with an
// image_analysis column (success, failed or empty when not analysed), so
// that later comparisons prefer it.
func (a *app) writeWithImages(snap *models.Snapshot, results []models.VisualAnalysisResult) error {
	day, ok := storage.SnapshotDate(snap.Source)
	if !ok {
		day = snap.TakenAt
	}

	status := make(map[string]string, len(results))
	for i := range results {
		status[results[i].Code] = string(results[i].Status)
	}

	path := filepath.Join(a.cfg.DataDir, storage.SnapshotFileName(day, true, ".csv"))
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WriteAnnotated(snap, "image_analysis", status); err != nil {
		return err
	}
	a.logger.Info("Enriched snapshot saved to %s", path)
	return nil
}
