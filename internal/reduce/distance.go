package reduce

import (
	"math"
	"sort"
)

func norm(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

// cosineDistance returns 1 - cos(a, b) given precomputed norms. Two zero
// vectors are at distance 0; a zero vector and a non-zero one at distance 1.
func cosineDistance(a, b []float64, aNorm, bNorm float64) float64 {
	switch {
	case aNorm == 0 && bNorm == 0:
		return 0
	case aNorm == 0 || bNorm == 0:
		return 1
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	d := 1 - dot/(aNorm*bNorm)
	if d < 0 {
		return 0
	}
	return d
}

// neighbor is one entry of a point's nearest-neighbour list.
type neighbor struct {
	index int
	dist  float64
}

// nearestNeighbors returns, for every vector, its k-1 closest other vectors
// ordered by ascending cosine distance (ties broken by index), and reports
// whether any pair of vectors is at non-zero distance.
func nearestNeighbors(vectors [][]float64, k int) ([][]neighbor, bool) {
	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = norm(v)
	}

	spread := false
	out := make([][]neighbor, n)
	row := make([]neighbor, 0, n-1)
	for i := range vectors {
		row = row[:0]
		for j := range vectors {
			if i == j {
				continue
			}
			d := cosineDistance(vectors[i], vectors[j], norms[i], norms[j])
			if d > distanceFloor {
				spread = true
			}
			row = append(row, neighbor{index: j, dist: d})
		}
		sort.SliceStable(row, func(a, b int) bool {
			if row[a].dist != row[b].dist {
				return row[a].dist < row[b].dist
			}
			return row[a].index < row[b].index
		})
		m := min(k-1, len(row))
		out[i] = append([]neighbor(nil), row[:m]...)
	}
	return out, spread
}
