package vision

import (
	"math"
	"time"

	"rankwatch/models"
	"rankwatch/services"
)

// BuildReport wraps batch results with run metadata and visual statistics.
// totalItems is the size of the snapshot the batch was drawn from.
func BuildReport(insights *services.InsightService, totalItems int, results []models.VisualAnalysisResult, started time.Time) *models.VisualReport {
	now := time.Now()
	success := 0
	for i := range results {
		if results[i].Succeeded() {
			success++
		}
	}

	var rate float64
	if len(results) > 0 {
		rate = math.Round(float64(success)/float64(len(results))*1000) / 10
	}
	if results == nil {
		results = []models.VisualAnalysisResult{}
	}

	return &models.VisualReport{
		Metadata: models.VisualMetadata{
			AnalyzedAt:     now,
			TotalItems:     totalItems,
			AnalyzedItems:  len(results),
			SuccessCount:   success,
			SuccessRate:    rate,
			ElapsedSeconds: math.Round(now.Sub(started).Seconds()*100) / 100,
		},
		Statistics:      insights.Visual(results),
		DetailedResults: results,
	}
}
