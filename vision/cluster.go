package vision

import (
	"math/rand"
)

// cluster is one k-means partition: its mean color and member count.
type cluster struct {
	center [3]float64
	size   int
}

// sample picks every stride-th pixel.
func sample(pix [][3]float64, stride int) [][3]float64 {
	if stride <= 1 {
		return pix
	}
	out := make([][3]float64, 0, len(pix)/stride+1)
	for i := 0; i < len(pix); i += stride {
		out = append(out, pix[i])
	}
	return out
}

func distinctColors(points [][3]float64, limit int) int {
	seen := make(map[[3]float64]struct{})
	for _, p := range points {
		seen[p] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

// kmeans partitions points into at most k clusters using k-means++ seeding
// followed by Lloyd iterations. The same rng seed and input always produce
// the same clusters.
func kmeans(points [][3]float64, k, maxIter int, rng *rand.Rand) []cluster {
	if len(points) == 0 || k <= 0 {
		return nil
	}
	if d := distinctColors(points, k); d < k {
		k = d
	}

	centers := seedCenters(points, k, rng)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(centers, p)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][3]float64, len(centers))
		counts := make([]int, len(centers))
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for ch := 0; ch < 3; ch++ {
				sums[c][ch] += p[ch]
			}
		}
		for c := range centers {
			// an emptied cluster keeps its previous center
			if counts[c] == 0 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				centers[c][ch] = sums[c][ch] / float64(counts[c])
			}
		}
	}

	clusters := make([]cluster, len(centers))
	for c := range centers {
		clusters[c].center = centers[c]
	}
	for _, c := range assign {
		clusters[c].size++
	}

	out := clusters[:0]
	for _, c := range clusters {
		if c.size > 0 {
			out = append(out, c)
		}
	}
	return out
}

func seedCenters(points [][3]float64, k int, rng *rand.Rand) [][3]float64 {
	centers := make([][3]float64, 0, k)
	centers = append(centers, points[rng.Intn(len(points))])

	dist := make([]float64, len(points))
	for len(centers) < k {
		var total float64
		for i, p := range points {
			dist[i] = sqDist(p, centers[nearest(centers, p)])
			total += dist[i]
		}
		if total == 0 {
			break
		}

		target := rng.Float64() * total
		pick := len(points) - 1
		for i, d := range dist {
			target -= d
			if target <= 0 && d > 0 {
				pick = i
				break
			}
		}
		centers = append(centers, points[pick])
	}
	return centers
}

func nearest(centers [][3]float64, p [3]float64) int {
	best, bestDist := 0, sqDist(p, centers[0])
	for i := 1; i < len(centers); i++ {
		if d := sqDist(p, centers[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sqDist(a, b [3]float64) float64 {
	dr, dg, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dr*dr + dg*dg + db*db
}
