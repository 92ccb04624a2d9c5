package services

import (
	"sort"

	"rankwatch/models"
)

// CompressorConfig caps each tier. SortByScore re-sorts a tier by score
// (descending, stable) before truncation; otherwise discovery order is kept.
type CompressorConfig struct {
	CriticalCap  int
	ImportantCap int
	NotableCap   int
	SortByScore  bool
}

// DefaultCompressorConfig returns caps of 20/30/20 in discovery order.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{CriticalCap: 20, ImportantCap: 30, NotableCap: 20}
}

// Compressed is the bounded, prioritised subset of scored events.
type Compressed struct {
	Critical         []models.ScoredChange
	Important        []models.ScoredChange
	Notable          []models.ScoredChange
	TotalAnalyzed    int
	Discarded        int
	CompressionRatio float64
}

// Kept returns the number of events that survived compression.
func (c *Compressed) Kept() int {
	return len(c.Critical) + len(c.Important) + len(c.Notable)
}

// Compressor buckets scored events into capped tiers.
type Compressor struct {
	cfg CompressorConfig
}

// NewCompressor creates a Compressor. Negative caps are treated as 0.
func NewCompressor(cfg CompressorConfig) *Compressor {
	return &Compressor{cfg: cfg}
}

// Compress buckets events by tier and truncates each bucket to its cap.
func (c *Compressor) Compress(scored []models.ScoredChange) *Compressed {
	out := &Compressed{TotalAnalyzed: len(scored)}

	var critical, important, notable []models.ScoredChange
	for _, sc := range scored {
		switch sc.Tier {
		case models.TierCritical:
			critical = append(critical, sc)
		case models.TierImportant:
			important = append(important, sc)
		case models.TierNotable:
			notable = append(notable, sc)
		default:
			out.Discarded++
		}
	}

	out.Critical = c.truncate(critical, c.cfg.CriticalCap)
	out.Important = c.truncate(important, c.cfg.ImportantCap)
	out.Notable = c.truncate(notable, c.cfg.NotableCap)

	if out.TotalAnalyzed > 0 {
		out.CompressionRatio = round3(1 - float64(out.Kept())/float64(out.TotalAnalyzed))
	}
	return out
}

func (c *Compressor) truncate(events []models.ScoredChange, limit int) []models.ScoredChange {
	if c.cfg.SortByScore {
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Score > events[j].Score
		})
	}
	if limit < 0 {
		limit = 0
	}
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		return []models.ScoredChange{}
	}
	return events
}
