package vision

import (
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"rankwatch/models"
)

type namedColor struct {
	name  string
	color colorful.Color
}

// referencePalette is matched in order; on equal distance the earlier entry wins.
var referencePalette = []namedColor{
	{"black", rgb(20, 20, 20)},
	{"white", rgb(245, 245, 245)},
	{"gray", rgb(128, 128, 128)},
	{"silver", rgb(192, 192, 192)},
	{"navy", rgb(25, 35, 90)},
	{"blue", rgb(40, 100, 200)},
	{"red", rgb(200, 30, 30)},
	{"pink", rgb(240, 150, 180)},
	{"green", rgb(40, 140, 70)},
	{"yellow", rgb(240, 210, 50)},
	{"orange", rgb(240, 130, 30)},
	{"brown", rgb(120, 75, 40)},
	{"beige", rgb(220, 200, 165)},
	{"gold", rgb(200, 165, 60)},
	{"purple", rgb(120, 60, 160)},
}

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// colorName returns the reference color closest to c in RGB space.
func colorName(c colorful.Color) string {
	best, bestDist := "", math.Inf(1)
	for _, ref := range referencePalette {
		if d := c.DistanceRgb(ref.color); d < bestDist {
			best, bestDist = ref.name, d
		}
	}
	return best
}

// buildPalette converts clusters to color samples sorted by share, largest
// first, and keeps the top n.
func buildPalette(clusters []cluster, n int) []models.ColorSample {
	total := 0
	for _, c := range clusters {
		total += c.size
	}
	if total == 0 {
		return []models.ColorSample{}
	}

	samples := make([]models.ColorSample, 0, len(clusters))
	for _, c := range clusters {
		px := [3]uint8{toByte(c.center[0]), toByte(c.center[1]), toByte(c.center[2])}
		col := rgb(px[0], px[1], px[2])
		samples = append(samples, models.ColorSample{
			RGB:        px,
			Hex:        col.Hex(),
			Percentage: math.Round(float64(c.size)/float64(total)*1000) / 10,
			Name:       colorName(col),
		})
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Percentage != samples[j].Percentage {
			return samples[i].Percentage > samples[j].Percentage
		}
		return samples[i].Hex < samples[j].Hex
	})
	if n > 0 && len(samples) > n {
		samples = samples[:n]
	}
	return samples
}

func toByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
