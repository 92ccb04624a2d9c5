package models

import "time"

// PriceDistribution summarises item prices over one snapshot.
type PriceDistribution struct {
	Count     int            `json:"count"`
	Mean      float64        `json:"mean"`
	Median    float64        `json:"median"`
	StdDev    float64        `json:"std_dev"`
	Min       int            `json:"min"`
	Max       int            `json:"max"`
	Histogram map[string]int `json:"histogram"`
}

// FeatureRate is the share of items carrying one boolean feature flag.
type FeatureRate struct {
	Feature string  `json:"feature"`
	Count   int     `json:"count"`
	Rate    float64 `json:"rate"`
}

// SnapshotStatistics holds the distributional summary of one snapshot.
type SnapshotStatistics struct {
	TotalItems    int                           `json:"total_items"`
	Price         PriceDistribution             `json:"price_distribution"`
	AverageReview float64                       `json:"average_review"`
	KeywordRates  map[string]map[string]float64 `json:"keyword_rates"`
	FeatureRates  []FeatureRate                 `json:"feature_rates"`
}

// ColorTrend aggregates the items whose palette contains one named color.
type ColorTrend struct {
	Color          string  `json:"color"`
	Count          int     `json:"count"`
	MarketShare    float64 `json:"market_share"`
	AvgPrice       float64 `json:"avg_price"`
	AvgLuxuryScore float64 `json:"avg_luxury_score"`
	AvgRank        float64 `json:"avg_rank"`
}

// MetricSummary is the average/min/max of one quality metric.
type MetricSummary struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// RankBand is the average luxury score of the items in one rank range.
type RankBand struct {
	AverageLuxury float64 `json:"average_luxury"`
	Count         int     `json:"count"`
}

// LowConsistencyItem is an item whose image disagrees with its name.
type LowConsistencyItem struct {
	Rank             int     `json:"rank"`
	Name             string  `json:"name"`
	ConsistencyScore float64 `json:"consistency_score"`
	DominantColor    string  `json:"dominant_color"`
}

// VisualStatistics summarises a batch of successful visual results.
type VisualStatistics struct {
	Analyzed                int                      `json:"total_analyzed"`
	ColorFrequency          map[string]int           `json:"color_frequency"`
	TopColors               []ColorTrend             `json:"top_colors"`
	HighLuxuryColors        []ColorTrend             `json:"high_luxury_colors"`
	Quality                 map[string]MetricSummary `json:"overall_quality"`
	HighQualityCount        int                      `json:"high_quality_count"`
	LuxuryDistribution      map[string]int           `json:"quality_distribution"`
	ConsistencyAverage      float64                  `json:"average_consistency"`
	ConsistencyDistribution map[string]int           `json:"consistency_distribution"`
	RankQuality             map[string]RankBand      `json:"rank_quality_correlation"`
	LowConsistencyItems     []LowConsistencyItem     `json:"low_consistency_items"`
}

// SourceFiles names the two snapshots a change report compares.
type SourceFiles struct {
	Current  string `json:"current"`
	Previous string `json:"previous"`
}

// TieredChanges holds the kept events per tier.
type TieredChanges struct {
	Critical  []ScoredChange `json:"critical"`
	Important []ScoredChange `json:"important"`
	Notable   []ScoredChange `json:"notable"`
}

// ChangeStatistics describes how the raw events were compressed.
type ChangeStatistics struct {
	TotalAnalyzed    int          `json:"totalAnalyzed"`
	PerTierCounts    map[Tier]int `json:"perTierCounts"`
	Discarded        int          `json:"discarded"`
	CompressionRatio float64      `json:"compressionRatio"`
}

// PriceAnalysis compares the average price of two snapshots.
type PriceAnalysis struct {
	CurrentAverage  float64 `json:"today_average"`
	PreviousAverage float64 `json:"yesterday_average"`
	ChangePercent   float64 `json:"change_percent"`
}

// MarketDynamics counts item turnover between two snapshots.
type MarketDynamics struct {
	NewEntries   int     `json:"new_entries"`
	Exits        int     `json:"dropped_items"`
	Continuing   int     `json:"continuing_items"`
	TurnoverRate float64 `json:"turnover_rate"`
}

// ChangeReport is the versioned output of one comparison run.
type ChangeReport struct {
	Version      string              `json:"version"`
	RunID        string              `json:"runId"`
	Timestamp    time.Time           `json:"timestamp"`
	AnalysisType string              `json:"analysisType"`
	SourceFiles  SourceFiles         `json:"sourceFiles"`
	Summary      map[string]string   `json:"summary"`
	Changes      TieredChanges       `json:"changes"`
	Statistics   ChangeStatistics    `json:"statistics"`
	Price        PriceAnalysis       `json:"priceAnalysis"`
	Market       MarketDynamics      `json:"marketDynamics"`
	Snapshot     *SnapshotStatistics `json:"snapshotStatistics,omitempty"`
	Visual       *VisualStatistics   `json:"visualStatistics,omitempty"`
}

// VisualMetadata describes one visual analysis batch.
type VisualMetadata struct {
	AnalyzedAt     time.Time `json:"analyzed_at"`
	TotalItems     int       `json:"total_items"`
	AnalyzedItems  int       `json:"analyzed_items"`
	SuccessCount   int       `json:"success_count"`
	SuccessRate    float64   `json:"success_rate"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
}

// VisualReport is the output of one visual analysis batch.
type VisualReport struct {
	Metadata        VisualMetadata         `json:"metadata"`
	Statistics      *VisualStatistics      `json:"statistics"`
	DetailedResults []VisualAnalysisResult `json:"detailed_results"`
}
