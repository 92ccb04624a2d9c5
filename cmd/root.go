package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rankwatch/config"
	"rankwatch/utils"
)

// app carries what every subcommand needs once flags have been parsed.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	catalog *config.Catalog

	logLevel string
	logFile  string
	dataDir  string
	catPath  string
}

// NewRootCmd builds the rankwatch command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "rankwatch",
		Short: "Daily ranking snapshots, change detection and product image analysis",
		Long: `rankwatch fetches a marketplace category ranking every day, compares the
latest two snapshots and reports the changes that matter most.

Item images can be analysed for dominant colors and photo quality; when a
visual report exists the change report is enriched with it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "also write logs to this file; overrides LOG_FILE")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory holding snapshots and reports; overrides DATA_DIR")
	cmd.PersistentFlags().StringVar(&a.catPath, "catalog", "", "YAML keyword catalog; overrides CATALOG_PATH")

	cmd.AddCommand(newFetchCmd(a))
	cmd.AddCommand(newImagesCmd(a))
	cmd.AddCommand(newChangesCmd(a))
	cmd.AddCommand(newRunCmd(a))

	return cmd
}

func (a *app) init() error {
	a.cfg = config.Load()
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	if a.logFile != "" {
		a.cfg.LogFile = a.logFile
	}
	if a.dataDir != "" {
		a.cfg.DataDir = a.dataDir
	}
	if a.catPath != "" {
		a.cfg.CatalogPath = a.catPath
	}

	logger, err := utils.NewLoggerWithOptions(a.cfg.LogLevel, a.cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.logger = logger

	catalog, err := config.LoadCatalog(a.cfg.CatalogPath)
	if err != nil {
		return err
	}
	a.catalog = catalog
	return nil
}
