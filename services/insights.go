package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rankwatch/config"
	"rankwatch/models"
	"rankwatch/utils"
)

const (
	topColorLimit       = 5
	lowConsistencyLimit = 5
	lowConsistencyBelow = 50
	highQualityFrom     = 70
)

// InsightService builds distributional summaries over a snapshot and over a
// batch of visual results.
type InsightService struct {
	logger  *utils.Logger
	catalog *config.Catalog
}

func NewInsightService(logger *utils.Logger, catalog *config.Catalog) *InsightService {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &InsightService{logger: logger, catalog: catalog}
}

// Snapshot summarises prices, keyword occurrence and feature flags.
func (s *InsightService) Snapshot(snap *models.Snapshot) *models.SnapshotStatistics {
	report := &models.SnapshotStatistics{
		Price:        models.PriceDistribution{Histogram: emptyHistogram()},
		KeywordRates: make(map[string]map[string]float64),
		FeatureRates: []models.FeatureRate{},
	}
	if snap.Len() == 0 {
		return report
	}

	report.TotalItems = len(snap.Items)
	report.Price = priceDistribution(snap.Items)

	var reviews []float64
	for _, it := range snap.Items {
		if it.ReviewAverage > 0 {
			reviews = append(reviews, it.ReviewAverage)
		}
	}
	if len(reviews) > 0 {
		report.AverageReview = round2(stat.Mean(reviews, nil))
	}

	for tier, keywords := range s.catalog.KeywordTiers {
		rates := make(map[string]float64, len(keywords))
		for _, kw := range keywords {
			needle := strings.ToLower(kw)
			count := 0
			for _, it := range snap.Items {
				if strings.Contains(strings.ToLower(it.Name), needle) {
					count++
				}
			}
			rates[kw] = percentOf(count, report.TotalItems)
		}
		report.KeywordRates[tier] = rates
	}

	report.FeatureRates = featureRates(snap.Items)
	return report
}

func emptyHistogram() map[string]int {
	return map[string]int{"under_10k": 0, "10k_20k": 0, "20k_50k": 0, "over_50k": 0}
}

// priceDistribution only considers items with a price above zero.
func priceDistribution(items []*models.Item) models.PriceDistribution {
	dist := models.PriceDistribution{Histogram: emptyHistogram()}

	var prices []float64
	for _, it := range items {
		if it.Price <= 0 {
			continue
		}
		prices = append(prices, float64(it.Price))
		switch {
		case it.Price < 10000:
			dist.Histogram["under_10k"]++
		case it.Price < 20000:
			dist.Histogram["10k_20k"]++
		case it.Price < 50000:
			dist.Histogram["20k_50k"]++
		default:
			dist.Histogram["over_50k"]++
		}
	}
	if len(prices) == 0 {
		return dist
	}

	sort.Float64s(prices)
	dist.Count = len(prices)
	dist.Mean = round2(stat.Mean(prices, nil))
	dist.Median = round2(median(prices))
	if len(prices) > 1 {
		dist.StdDev = round2(stat.StdDev(prices, nil))
	}
	dist.Min = int(floats.Min(prices))
	dist.Max = int(floats.Max(prices))
	return dist
}

func featureRates(items []*models.Item) []models.FeatureRate {
	counts := make(map[string]int)
	for _, it := range items {
		for name, on := range it.Features {
			if _, ok := counts[name]; !ok {
				counts[name] = 0
			}
			if on {
				counts[name]++
			}
		}
	}

	rates := make([]models.FeatureRate, 0, len(counts))
	for name, n := range counts {
		rates = append(rates, models.FeatureRate{Feature: name, Count: n, Rate: percentOf(n, len(items))})
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Rate != rates[j].Rate {
			return rates[i].Rate > rates[j].Rate
		}
		return rates[i].Feature < rates[j].Feature
	})
	return rates
}

// Visual summarises successful visual results. Failed results are excluded.
// The output does not depend on the order of results.
func (s *InsightService) Visual(results []models.VisualAnalysisResult) *models.VisualStatistics {
	report := &models.VisualStatistics{
		ColorFrequency:          make(map[string]int),
		TopColors:               []models.ColorTrend{},
		HighLuxuryColors:        []models.ColorTrend{},
		Quality:                 make(map[string]models.MetricSummary),
		LuxuryDistribution:      map[string]int{"excellent": 0, "good": 0, "average": 0, "poor": 0},
		ConsistencyDistribution: map[string]int{"excellent": 0, "good": 0, "fair": 0, "poor": 0},
		RankQuality:             make(map[string]models.RankBand),
		LowConsistencyItems:     []models.LowConsistencyItem{},
	}

	var ok []models.VisualAnalysisResult
	for _, r := range results {
		if r.Succeeded() {
			ok = append(ok, r)
		}
	}
	sort.Slice(ok, func(i, j int) bool {
		if ok[i].Rank != ok[j].Rank {
			return ok[i].Rank < ok[j].Rank
		}
		return ok[i].Code < ok[j].Code
	})

	report.Analyzed = len(ok)
	if len(ok) == 0 {
		return report
	}

	report.TopColors, report.HighLuxuryColors = colorTrends(ok, report.ColorFrequency)

	var luxury, brightness, saturation, contrast, consistency []float64
	bands := map[string][]float64{}
	for _, r := range ok {
		q := r.Quality
		luxury = append(luxury, q.LuxuryScore)
		brightness = append(brightness, q.Brightness)
		saturation = append(saturation, q.Saturation)
		contrast = append(contrast, q.Contrast)
		consistency = append(consistency, r.Classification.ConsistencyScore)

		if q.LuxuryScore >= highQualityFrom {
			report.HighQualityCount++
		}
		report.LuxuryDistribution[scoreBand(q.LuxuryScore, "average")]++
		report.ConsistencyDistribution[scoreBand(r.Classification.ConsistencyScore, "fair")]++

		band := rankBandName(r.Rank)
		bands[band] = append(bands[band], q.LuxuryScore)

		if r.Classification.ConsistencyScore < lowConsistencyBelow && len(report.LowConsistencyItems) < lowConsistencyLimit {
			report.LowConsistencyItems = append(report.LowConsistencyItems, models.LowConsistencyItem{
				Rank:             r.Rank,
				Name:             truncate(r.Name, 50),
				ConsistencyScore: r.Classification.ConsistencyScore,
				DominantColor:    r.Classification.DominantColor,
			})
		}
	}

	report.Quality["luxury_scores"] = summarise(luxury)
	report.Quality["brightness"] = summarise(brightness)
	report.Quality["saturation"] = summarise(saturation)
	report.Quality["contrast"] = summarise(contrast)
	report.ConsistencyAverage = round1(stat.Mean(consistency, nil))

	for band, scores := range bands {
		report.RankQuality[band] = models.RankBand{
			AverageLuxury: round1(stat.Mean(scores, nil)),
			Count:         len(scores),
		}
	}
	return report
}

// colorTrends fills freq with the number of items whose palette contains each
// color name, and returns the trends of colors seen on at least two items.
func colorTrends(results []models.VisualAnalysisResult, freq map[string]int) (top, luxurious []models.ColorTrend) {
	type acc struct {
		price, luxury, rank []float64
	}
	byColor := make(map[string]*acc)

	for _, r := range results {
		seen := make(map[string]bool)
		for _, c := range r.Colors {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			freq[c.Name]++

			a, ok := byColor[c.Name]
			if !ok {
				a = &acc{}
				byColor[c.Name] = a
			}
			a.price = append(a.price, float64(r.Price))
			a.luxury = append(a.luxury, r.Quality.LuxuryScore)
			a.rank = append(a.rank, float64(r.Rank))
		}
	}

	var trends []models.ColorTrend
	for name, a := range byColor {
		if len(a.rank) < 2 {
			continue
		}
		trends = append(trends, models.ColorTrend{
			Color:          name,
			Count:          len(a.rank),
			MarketShare:    percentOf(len(a.rank), len(results)),
			AvgPrice:       math.Round(stat.Mean(a.price, nil)),
			AvgLuxuryScore: round1(stat.Mean(a.luxury, nil)),
			AvgRank:        round1(stat.Mean(a.rank, nil)),
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Count != trends[j].Count {
			return trends[i].Count > trends[j].Count
		}
		return trends[i].Color < trends[j].Color
	})

	luxurious = []models.ColorTrend{}
	for _, t := range trends {
		if t.AvgLuxuryScore >= highQualityFrom {
			luxurious = append(luxurious, t)
		}
	}
	if len(trends) > topColorLimit {
		trends = trends[:topColorLimit]
	}
	if trends == nil {
		trends = []models.ColorTrend{}
	}
	return trends, luxurious
}

// scoreBand buckets a 0–100 score: excellent ≥80, good 60–79, mid 40–59, poor <40.
func scoreBand(score float64, mid string) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return mid
	}
	return "poor"
}

func rankBandName(rank int) string {
	switch {
	case rank <= 30:
		return "top30"
	case rank <= 70:
		return "middle"
	}
	return "lower"
}

func summarise(values []float64) models.MetricSummary {
	if len(values) == 0 {
		return models.MetricSummary{}
	}
	return models.MetricSummary{
		Average: round2(stat.Mean(values, nil)),
		Min:     round2(floats.Min(values)),
		Max:     round2(floats.Max(values)),
	}
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func percentOf(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(n) / float64(total) * 100)
}

// Print renders a change report to the terminal.
func (s *InsightService) Print(r *models.ChangeReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 RANKING CHANGE REPORT\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Compared      : %s → %s\n", r.SourceFiles.Previous, r.SourceFiles.Current)
	fmt.Printf("  Analysis type : \033[1m%s\033[0m\n", r.AnalysisType)
	fmt.Printf("  New / exits   : \033[1m%d / %d\033[0m (continuing %d, turnover %.1f%%)\n",
		r.Market.NewEntries, r.Market.Exits, r.Market.Continuing, r.Market.TurnoverRate)
	fmt.Printf("  Avg price     : \033[1;32m¥%.0f\033[0m (%+.1f%%)\n", r.Price.CurrentAverage, r.Price.ChangePercent)
	fmt.Println()

	fmt.Printf("\033[1;33m  Summary\033[0m\n")
	fmt.Printf("  %s\n", thin)
	keys := make([]string, 0, len(r.Summary))
	for k := range r.Summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-16s %s\n", k, r.Summary[k])
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Changes (compression %.1f%% of %d events)\033[0m\n",
		r.Statistics.CompressionRatio*100, r.Statistics.TotalAnalyzed)
	fmt.Printf("  %s\n", thin)
	printTier("critical", "\033[1;31m", r.Changes.Critical)
	printTier("important", "\033[1;33m", r.Changes.Important)
	printTier("notable", "\033[1;36m", r.Changes.Notable)
	fmt.Println()

	if r.Visual != nil && len(r.Visual.TopColors) > 0 {
		fmt.Printf("\033[1;33m  Top Colors\033[0m\n")
		fmt.Printf("  %s\n", thin)
		for _, c := range r.Visual.TopColors {
			bar := strings.Repeat("█", c.Count)
			fmt.Printf("  %-10s %s (%d, luxury %.1f)\n", c.Color, bar, c.Count, c.AvgLuxuryScore)
		}
		fmt.Println()
	}

	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

func printTier(name, color string, changes []models.ScoredChange) {
	fmt.Printf("  %s%-9s\033[0m %d\n", color, name, len(changes))
	for i, c := range changes {
		if i == 5 {
			fmt.Printf("            … %d more\n", len(changes)-5)
			break
		}
		fmt.Printf("    [%d] %-30s %s\n", c.Score, truncate(c.Name, 28), c.Label)
	}
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
