package services

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"rankwatch/config"
	"rankwatch/models"
	"rankwatch/utils"
)

// ReportVersion is stamped on every change report.
const ReportVersion = "3.0"

// Assembler composes differ, scorer, compressor and statistics output into a
// single change report. It has no side effects besides logging.
type Assembler struct {
	logger     *utils.Logger
	differ     *Differ
	scorer     *Scorer
	compressor *Compressor
	insights   *InsightService

	now   func() time.Time
	newID func() string
}

// NewAssembler wires the pipeline stages from configuration.
func NewAssembler(logger *utils.Logger, catalog *config.Catalog, differ *Differ, caps CompressorConfig) *Assembler {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &Assembler{
		logger:     logger,
		differ:     differ,
		scorer:     NewScorer(catalog.SpecialTerms),
		compressor: NewCompressor(caps),
		insights:   NewInsightService(logger, catalog),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Input is everything one comparison run consumes. Visual is optional.
type Input struct {
	Previous *models.Snapshot
	Current  *models.Snapshot
	Visual   []models.VisualAnalysisResult
}

// Assemble builds the change report. Without two non-empty snapshots it
// returns ErrInputUnavailable and no report.
func (a *Assembler) Assemble(in Input) (*models.ChangeReport, error) {
	if in.Previous.Len() == 0 || in.Current.Len() == 0 {
		return nil, fmt.Errorf("report: need two non-empty snapshots: %w", models.ErrInputUnavailable)
	}

	changes := a.differ.Diff(in.Previous, in.Current)
	scored := a.scorer.Evaluate(changes.All())
	compressed := a.compressor.Compress(scored)

	a.logger.Info("[report] %d events (new %d, exits %d, rank %d, price %d) → kept %d",
		compressed.TotalAnalyzed, len(changes.NewEntries), len(changes.Exits),
		len(changes.RankMoves), len(changes.PriceMoves), compressed.Kept())

	report := &models.ChangeReport{
		Version:      ReportVersion,
		RunID:        a.newID(),
		Timestamp:    a.now(),
		AnalysisType: "basic",
		SourceFiles: models.SourceFiles{
			Current:  in.Current.Source,
			Previous: in.Previous.Source,
		},
		Changes: models.TieredChanges{
			Critical:  compressed.Critical,
			Important: compressed.Important,
			Notable:   compressed.Notable,
		},
		Statistics: models.ChangeStatistics{
			TotalAnalyzed: compressed.TotalAnalyzed,
			PerTierCounts: map[models.Tier]int{
				models.TierCritical:  len(compressed.Critical),
				models.TierImportant: len(compressed.Important),
				models.TierNotable:   len(compressed.Notable),
			},
			Discarded:        compressed.Discarded,
			CompressionRatio: compressed.CompressionRatio,
		},
		Price:    priceAnalysis(in.Previous, in.Current),
		Market:   marketDynamics(changes, in.Current),
		Snapshot: a.insights.Snapshot(in.Current),
	}

	if len(in.Visual) > 0 {
		report.AnalysisType = "enhanced_with_images"
		report.Visual = a.insights.Visual(in.Visual)
	}

	report.Summary = trendSummary(report)
	return report, nil
}

// Insights exposes the statistics builder used by the assembler.
func (a *Assembler) Insights() *InsightService {
	return a.insights
}

func priceAnalysis(prev, curr *models.Snapshot) models.PriceAnalysis {
	prevAvg := averagePrice(prev)
	currAvg := averagePrice(curr)
	return models.PriceAnalysis{
		CurrentAverage:  math.Round(currAvg),
		PreviousAverage: math.Round(prevAvg),
		ChangePercent:   round1(PercentChange(prevAvg, currAvg)),
	}
}

func averagePrice(s *models.Snapshot) float64 {
	prices := make([]float64, 0, s.Len())
	for _, it := range s.Items {
		prices = append(prices, float64(it.Price))
	}
	if len(prices) == 0 {
		return 0
	}
	return stat.Mean(prices, nil)
}

func marketDynamics(c *Changes, curr *models.Snapshot) models.MarketDynamics {
	return models.MarketDynamics{
		NewEntries:   len(c.NewEntries),
		Exits:        len(c.Exits),
		Continuing:   c.Common,
		TurnoverRate: percentOf(len(c.NewEntries)+len(c.Exits), curr.Len()),
	}
}

// trendSummary derives the short human-readable trend lines.
func trendSummary(r *models.ChangeReport) map[string]string {
	summary := map[string]string{
		"market_trend":    fmt.Sprintf("average price %+.1f%%", r.Price.ChangePercent),
		"market_fluidity": fmt.Sprintf("turnover rate %.1f%%", r.Market.TurnoverRate),
		"change_volume": fmt.Sprintf("%d critical, %d important, %d notable",
			len(r.Changes.Critical), len(r.Changes.Important), len(r.Changes.Notable)),
	}

	if r.Visual != nil && r.Visual.Analyzed > 0 {
		if len(r.Visual.TopColors) > 0 {
			summary["visual_trend"] = "dominant color: " + r.Visual.TopColors[0].Color
		}
		if q, ok := r.Visual.Quality["luxury_scores"]; ok {
			summary["quality_trend"] = fmt.Sprintf("average luxury score: %.1f", q.Average)
		}
	}
	return summary
}
