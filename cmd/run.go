package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rankwatch/models"
)

func newRunCmd(a *app) *cobra.Command {
	fetchOpts := &fetchOptions{}
	changesOpts := &changesOptions{}
	var maxItems int
	var skipImages bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, analyse images and report changes in one go",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, _, err := a.fetch(cmd.Context(), fetchOpts)
			if err != nil {
				return err
			}

			if !skipImages {
				if _, _, err := a.analyzeImages(snap, maxItems); err != nil {
					a.logger.Error("Image analysis failed, continuing without it: %v", err)
				}
			}

			changesOpts.noImages = skipImages
			report, out, err := a.changes(nil, changesOpts)
			if errors.Is(err, models.ErrInputUnavailable) {
				a.logger.Warn("No comparison yet: %v", err)
				return nil
			}
			if err != nil {
				return err
			}
			if !changesOpts.quiet {
				a.newAssembler().Insights().Print(report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", out)
			return nil
		},
	}

	cmd.Flags().IntVar(&fetchOpts.pages, "pages", 0, "ranking pages to fetch (default PAGES_TO_FETCH)")
	cmd.Flags().BoolVar(&fetchOpts.parquet, "parquet", false, "also export the snapshot as Parquet")
	cmd.Flags().IntVar(&maxItems, "max-images", 0, "maximum number of images to analyse (default MAX_IMAGES)")
	cmd.Flags().BoolVar(&skipImages, "skip-images", false, "skip image analysis")
	cmd.Flags().BoolVarP(&changesOpts.quiet, "quiet", "q", false, "do not print the report to the terminal")

	return cmd
}
