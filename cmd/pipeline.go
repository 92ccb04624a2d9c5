package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rankwatch/models"
	"rankwatch/services"
	"rankwatch/storage"
	"rankwatch/utils"
	"rankwatch/vision"
)

// loadSnapshot reads and cleans one snapshot file.
func (a *app) loadSnapshot(path string) (*models.Snapshot, error) {
	raw, err := storage.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}

	takenAt, ok := storage.SnapshotDate(path)
	if !ok {
		if info, statErr := os.Stat(path); statErr == nil {
			takenAt = info.ModTime()
		}
	}
	return services.NewCleaner(a.logger, a.catalog).Clean(filepath.Base(path), takenAt, raw)
}

func (a *app) newAssembler() *services.Assembler {
	return services.NewAssembler(a.logger, a.catalog,
		services.NewDiffer(a.cfg.RankThreshold, a.cfg.PriceThresholdPct),
		services.CompressorConfig{
			CriticalCap:  a.cfg.CriticalCap,
			ImportantCap: a.cfg.ImportantCap,
			NotableCap:   a.cfg.NotableCap,
			SortByScore:  a.cfg.SortTiersByScore,
		})
}

func (a *app) newExtractor(maxItems int) *vision.Extractor {
	cfg := vision.Config{
		Timeout:      time.Duration(a.cfg.ImageTimeoutMs) * time.Millisecond,
		MaxBytes:     a.cfg.ImageMaxBytes,
		MaxDimension: a.cfg.ImageMaxDimension,
		MaxPixels:    a.cfg.ImageMaxPixels,
		Clusters:     a.cfg.ColorClusters,
		TopColors:    a.cfg.TopColors,
		Seed:         a.cfg.ClusterSeed,
		MaxItems:     maxItems,
		Retries:      a.cfg.MaxRetries,
	}
	pool := utils.NewWorkerPool(a.cfg.MaxConcurrency, 0)
	return vision.NewExtractor(a.logger, cfg, vision.NewClassifier(a.catalog), pool)
}

// archives opens the optional snapshot stores besides the CSV file.
func (a *app) archives() []storage.SnapshotWriter {
	var writers []storage.SnapshotWriter
	if a.cfg.PostgresEnabled() {
		pg, err := storage.NewPostgresWriter(a.cfg.DSN())
		if err != nil {
			a.logger.Error("PostgreSQL unavailable, snapshot not archived: %v", err)
		} else {
			writers = append(writers, pg)
		}
	}
	return writers
}

// reportSinks opens the optional report destinations that are configured.
// A sink that cannot be reached is logged and skipped.
func (a *app) reportSinks() []storage.ReportSink {
	var sinks []storage.ReportSink
	if a.cfg.PostgresEnabled() {
		pg, err := storage.NewPostgresWriter(a.cfg.DSN())
		if err != nil {
			a.logger.Error("PostgreSQL unavailable, skipping archive: %v", err)
		} else {
			sinks = append(sinks, pg)
		}
	}
	if a.cfg.NATSURL != "" {
		pub, err := storage.NewNATSPublisher(a.cfg.NATSURL, a.cfg.NATSSubject, a.logger)
		if err != nil {
			a.logger.Error("NATS unavailable, skipping notification: %v", err)
		} else {
			sinks = append(sinks, pub)
		}
	}
	return sinks
}

func closeAll(logger *utils.Logger, sinks []storage.ReportSink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Warn("Closing sink: %v", err)
		}
	}
}

func (a *app) snapshotPath(day time.Time, ext string) string {
	return filepath.Join(a.cfg.DataDir, storage.SnapshotFileName(day, false, ext))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
