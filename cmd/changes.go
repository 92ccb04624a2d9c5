package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rankwatch/models"
	"rankwatch/services"
	"rankwatch/storage"
)

type changesOptions struct {
	noImages     bool
	fromPostgres bool
	quiet        bool
}

func newChangesCmd(a *app) *cobra.Command {
	opts := &changesOptions{}

	cmd := &cobra.Command{
		Use:   "changes [current previous]",
		Short: "Compare the latest two snapshots and report important changes",
		Long: `Changes diffs two snapshots (by default the newest two in the data directory,
preferring _with_images files), scores every change, keeps the most important
ones per tier and writes data/changes/enhanced_changes_<timestamp>.json.

The newest visual report, when present, adds color and quality statistics.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or exactly two snapshot files, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, out, err := a.changes(args, opts)
			if err != nil {
				return err
			}
			if !opts.quiet {
				a.newAssembler().Insights().Print(report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.noImages, "no-images", false, "ignore visual reports")
	cmd.Flags().BoolVar(&opts.fromPostgres, "from-postgres", false, "compare the two newest snapshots archived in PostgreSQL")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the report to the terminal")

	return cmd
}

func (a *app) changes(args []string, opts *changesOptions) (*models.ChangeReport, string, error) {
	prev, curr, err := a.snapshotPair(args, opts.fromPostgres)
	if err != nil {
		return nil, "", err
	}
	a.logger.Info("=== Comparing %s → %s ===", prev.Source, curr.Source)

	store, err := storage.NewReportStore(a.cfg.DataDir)
	if err != nil {
		return nil, "", err
	}

	var visual []models.VisualAnalysisResult
	if !opts.noImages {
		vr, path, err := store.LatestVisualReport()
		switch {
		case err != nil:
			a.logger.Warn("Visual report unreadable, continuing without it: %v", err)
		case vr != nil:
			a.logger.Info("Using visual report %s", path)
			visual = vr.DetailedResults
		}
	}

	report, err := a.newAssembler().Assemble(services.Input{Previous: prev, Current: curr, Visual: visual})
	if err != nil {
		return nil, "", err
	}

	out, err := store.WriteChangeReport(report)
	if err != nil {
		return nil, "", err
	}

	sinks := a.reportSinks()
	defer closeAll(a.logger, sinks)
	for _, sink := range sinks {
		if err := sink.PublishReport(report); err != nil {
			a.logger.Error("Publishing report failed: %v", err)
		}
	}
	return report, out, nil
}

// snapshotPair resolves the previous and current snapshot from explicit
// paths, the data directory or the Postgres archive.
func (a *app) snapshotPair(args []string, fromPostgres bool) (prev, curr *models.Snapshot, err error) {
	if fromPostgres {
		return a.postgresPair()
	}

	var currentPath, previousPath string
	if len(args) == 2 {
		currentPath, previousPath = args[0], args[1]
	} else {
		currentPath, previousPath, err = storage.FindLatestPair(a.cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
	}

	if curr, err = a.loadSnapshot(currentPath); err != nil {
		return nil, nil, err
	}
	if prev, err = a.loadSnapshot(previousPath); err != nil {
		return nil, nil, err
	}
	return prev, curr, nil
}

func (a *app) postgresPair() (prev, curr *models.Snapshot, err error) {
	if !a.cfg.PostgresEnabled() {
		return nil, nil, fmt.Errorf("--from-postgres needs POSTGRES_HOST: %w", models.ErrInputUnavailable)
	}
	pg, err := storage.NewPostgresWriter(a.cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	defer pg.Close()

	dates, err := pg.LatestSnapshotDates(2)
	if err != nil {
		return nil, nil, err
	}
	if len(dates) < 2 {
		return nil, nil, fmt.Errorf("postgres holds %d snapshots: %w", len(dates), models.ErrInputUnavailable)
	}

	if curr, err = pg.FetchSnapshot(dates[0]); err != nil {
		return nil, nil, err
	}
	if prev, err = pg.FetchSnapshot(dates[1]); err != nil {
		return nil, nil, err
	}
	return prev, curr, nil
}
