package vision

import (
	"math"
	"strings"

	"rankwatch/config"
	"rankwatch/models"
)

// UnknownColor is the dominant color of an item without a palette.
const UnknownColor = "unknown"

const (
	baseConsistency   = 50
	colorAgreement    = 25
	materialAgreement = 25
	maxConsistency    = 100
)

// Classifier relates an item's detected palette to the color and material
// words in its name. It is read-only after construction.
type Classifier struct {
	colorWords    map[string][]string
	materialWords map[string][]string
	hints         map[string][]string
}

// NewClassifier builds a Classifier from the catalog's color and material
// tables. A nil catalog uses the defaults.
func NewClassifier(catalog *config.Catalog) *Classifier {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &Classifier{
		colorWords:    lowerAll(catalog.ColorWords),
		materialWords: lowerAll(catalog.MaterialWords),
		hints:         catalog.MaterialHints,
	}
}

// Classify derives the dominant color, material hints, size estimate and
// consistency score for one item.
func (c *Classifier) Classify(name string, palette []models.ColorSample, width, height int) models.Classification {
	dominant := UnknownColor
	if len(palette) > 0 {
		dominant = palette[0].Name
	}

	hints := append([]string{}, c.hints[dominant]...)
	lower := strings.ToLower(name)

	score := baseConsistency
	if mentions(lower, c.colorWords[dominant]) {
		score += colorAgreement
	}
	for _, material := range hints {
		if mentions(lower, c.materialWords[material]) {
			score += materialAgreement
			break
		}
	}
	if score > maxConsistency {
		score = maxConsistency
	}

	return models.Classification{
		DominantColor:    dominant,
		MaterialHints:    hints,
		SizeEstimate:     sizeEstimate(width, height),
		ConsistencyScore: float64(score),
	}
}

// sizeEstimate buckets the aspect ratio of the original image.
func sizeEstimate(width, height int) string {
	if width <= 0 || height <= 0 {
		return "unknown"
	}
	aspect := float64(width) / float64(height)
	switch {
	case math.Abs(aspect-1) <= 0.15:
		return "standard"
	case aspect >= 0.5 && aspect <= 2.0:
		return "elongated"
	}
	return "unusual"
}

func mentions(lowerName string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(lowerName, w) {
			return true
		}
	}
	return false
}

func lowerAll(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, words := range in {
		lw := make([]string, len(words))
		for i, w := range words {
			lw[i] = strings.ToLower(w)
		}
		out[k] = lw
	}
	return out
}
