package models

// AnalysisStatus is the state of one item in the visual extraction pipeline.
type AnalysisStatus string

const (
	StatusPending     AnalysisStatus = "pending"
	StatusDownloading AnalysisStatus = "downloading"
	StatusDownsizing  AnalysisStatus = "downsizing"
	StatusAnalyzing   AnalysisStatus = "analyzing"
	StatusSuccess     AnalysisStatus = "success"
	StatusFailed      AnalysisStatus = "failed"
)

// ColorSample is one cluster of an image palette.
type ColorSample struct {
	RGB        [3]uint8 `json:"rgb"`
	Hex        string   `json:"hex"`
	Percentage float64  `json:"percentage"`
	Name       string   `json:"name"`
}

// QualityMetrics are normalised image statistics. LuxuryScore is in [0,100],
// everything else in [0,1].
type QualityMetrics struct {
	Brightness  float64 `json:"brightness"`
	Saturation  float64 `json:"saturation"`
	Contrast    float64 `json:"contrast"`
	Sharpness   float64 `json:"sharpness"`
	LuxuryScore float64 `json:"luxury_score"`
}

// Classification relates the detected colors to what the item name declares.
type Classification struct {
	DominantColor    string   `json:"dominant_color"`
	MaterialHints    []string `json:"material_hints"`
	SizeEstimate     string   `json:"size_estimate"`
	ConsistencyScore float64  `json:"consistency_score"`
}

// VisualAnalysisResult is the outcome of analysing one item's image.
type VisualAnalysisResult struct {
	Code           string         `json:"itemCode"`
	Rank           int            `json:"rank"`
	Name           string         `json:"itemName"`
	Price          int            `json:"price"`
	ImageURL       string         `json:"imageUrl"`
	Colors         []ColorSample  `json:"colors"`
	Quality        QualityMetrics `json:"quality"`
	Classification Classification `json:"classification"`
	Status         AnalysisStatus `json:"analysis_status"`
	Error          string         `json:"error,omitempty"`
}

// Succeeded reports whether the result can feed success-based statistics.
func (r *VisualAnalysisResult) Succeeded() bool {
	return r.Status == StatusSuccess
}
