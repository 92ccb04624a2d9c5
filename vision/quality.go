package vision

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rankwatch/models"
)

// Weights of the luxury score; they sum to 1.
const (
	luxurySaturationWeight = 0.3
	luxuryContrastWeight   = 0.4
	luxurySharpnessWeight  = 0.3
)

// measureQuality computes the normalised image metrics of r.
func measureQuality(r *raster) models.QualityMetrics {
	n := len(r.pix)
	if n == 0 {
		return models.QualityMetrics{}
	}

	channels := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	luma := make([]float64, n)
	for i, p := range r.pix {
		channels[0][i], channels[1][i], channels[2][i] = p[0], p[1], p[2]
		luma[i] = lumaOf(p)
	}

	var means, stds [3]float64
	for ch := range channels {
		means[ch], stds[ch] = stat.PopMeanStdDev(channels[ch], nil)
	}

	brightness := clamp01(stat.Mean(luma, nil) / 255)
	saturation := clamp01((floats.Max(means[:]) - floats.Min(means[:])) / 255)
	contrast := clamp01((stds[0] + stds[1] + stds[2]) / 3 / 128)
	sharpness := clamp01(laplacianVariance(r) / 1000)

	luxury := (luxurySaturationWeight*saturation +
		luxuryContrastWeight*contrast +
		luxurySharpnessWeight*sharpness) * 100

	return models.QualityMetrics{
		Brightness:  round(brightness, 3),
		Saturation:  round(saturation, 3),
		Contrast:    round(contrast, 3),
		Sharpness:   round(sharpness, 3),
		LuxuryScore: round(math.Max(0, math.Min(100, luxury)), 1),
	}
}

// laplacianVariance is the variance of the 4-neighbour Laplacian over the
// interior of the luma plane. Images smaller than 3x3 have none.
func laplacianVariance(r *raster) float64 {
	if r.width < 3 || r.height < 3 {
		return 0
	}
	lap := make([]float64, 0, (r.width-2)*(r.height-2))
	for y := 1; y < r.height-1; y++ {
		for x := 1; x < r.width-1; x++ {
			v := lumaOf(r.at(x, y-1)) + lumaOf(r.at(x, y+1)) +
				lumaOf(r.at(x-1, y)) + lumaOf(r.at(x+1, y)) -
				4*lumaOf(r.at(x, y))
			lap = append(lap, v)
		}
	}
	_, variance := stat.PopMeanVariance(lap, nil)
	return variance
}

func lumaOf(p [3]float64) float64 {
	return 0.299*p[0] + 0.587*p[1] + 0.114*p[2]
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
