package reduce

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/kalambet/narrativelens/internal/analysis"
)

const (
	distanceFloor = 1e-12

	// smoothing search parameters
	smoothIterations = 64
	smoothTolerance  = 1e-5
	minKDistScale    = 1e-3

	gradientClip = 4.0
	initSpread   = 10.0
	initNoise    = 1e-4
)

// UMAP configures the manifold projection used for batches of PCAThreshold
// vectors or more. The zero value is not usable; start from DefaultUMAP.
type UMAP struct {
	NNeighbors         int     // neighbourhood size, counting the point itself
	MinDist            float64 // minimum spacing of points in the layout
	Spread             float64 // scale of the layout
	Epochs             int
	NegativeSampleRate int
	LearningRate       float64
	Seed               uint64
}

// DefaultUMAP returns the settings used by Reduce.
func DefaultUMAP() UMAP {
	return UMAP{
		NNeighbors:         5,
		MinDist:            0.3,
		Spread:             1.0,
		Epochs:             500,
		NegativeSampleRate: 5,
		LearningRate:       1.0,
		Seed:               42,
	}
}

type edge struct {
	head, tail int
	weight     float64
}

// Fit projects vectors to two dimensions. The same input and settings
// always give the same layout.
func (u UMAP) Fit(vectors [][]float64) (Layout, error) {
	n := len(vectors)
	if n < 2 {
		return nil, fmt.Errorf("umap: need at least 2 vectors, got %d: %w", n, analysis.ErrInsufficientData)
	}
	if _, err := dims(vectors); err != nil {
		return nil, err
	}
	if u.NNeighbors < 2 || u.Epochs < 1 || u.Spread <= 0 {
		return nil, fmt.Errorf("umap: invalid settings %+v", u)
	}

	k := min(u.NNeighbors, n)
	knn, spread := nearestNeighbors(vectors, k)
	if !spread {
		return nil, fmt.Errorf("umap: all %d vectors coincide under cosine distance: %w", n, analysis.ErrDegenerateGeometry)
	}

	edges := u.graph(knn, k)
	if len(edges) == 0 {
		return nil, fmt.Errorf("umap: empty neighbour graph: %w", analysis.ErrDegenerateGeometry)
	}

	rng := rand.New(rand.NewPCG(u.Seed, u.Seed^0x9e3779b97f4a7c15))
	emb, err := initialLayout(vectors, rng)
	if err != nil {
		return nil, err
	}

	a, b := curveParams(u.Spread, u.MinDist)
	u.optimize(emb, edges, a, b, rng)

	layout := make(Layout, n)
	for i, p := range emb {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return nil, fmt.Errorf("umap: layout diverged at point %d: %w", i, analysis.ErrDegenerateGeometry)
		}
		layout[i] = Point{X: p[0], Y: p[1]}
	}
	return layout, nil
}

// graph builds the symmetric fuzzy neighbour graph as a directed edge list
// holding both directions of every connection, pruned of edges too weak to
// be sampled within the epoch budget.
func (u UMAP) graph(knn [][]neighbor, k int) []edge {
	n := len(knn)
	target := math.Log2(float64(k))

	var all float64
	var count int
	for _, row := range knn {
		for _, nb := range row {
			all += nb.dist
			count++
		}
	}
	meanAll := 0.0
	if count > 0 {
		meanAll = all / float64(count)
	}

	directed := make(map[[2]int]float64, n*k)
	for i, row := range knn {
		rho, sigma := smoothDistances(row, target, meanAll)
		for _, nb := range row {
			w := 1.0
			if d := nb.dist - rho; d > 0 && sigma > 0 {
				w = math.Exp(-d / sigma)
			}
			directed[[2]int{i, nb.index}] = w
		}
	}

	pairs := make(map[[2]int]struct{}, len(directed))
	for key := range directed {
		i, j := key[0], key[1]
		if i > j {
			i, j = j, i
		}
		pairs[[2]int{i, j}] = struct{}{}
	}
	keys := make([][2]int, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a][0] != keys[b][0] {
			return keys[a][0] < keys[b][0]
		}
		return keys[a][1] < keys[b][1]
	})

	edges := make([]edge, 0, 2*len(keys))
	var maxW float64
	for _, key := range keys {
		wij := directed[key]
		wji := directed[[2]int{key[1], key[0]}]
		p := wij + wji - wij*wji
		if p <= 0 {
			continue
		}
		maxW = max(maxW, p)
		edges = append(edges,
			edge{head: key[0], tail: key[1], weight: p},
			edge{head: key[1], tail: key[0], weight: p},
		)
	}

	cut := maxW / float64(u.Epochs)
	kept := edges[:0]
	for _, e := range edges {
		if e.weight >= cut {
			kept = append(kept, e)
		}
	}
	return kept
}

// smoothDistances finds the local connectivity offset rho and the bandwidth
// sigma for one point, so that its neighbour memberships sum to target.
func smoothDistances(row []neighbor, target, meanAll float64) (rho, sigma float64) {
	for _, nb := range row {
		if nb.dist > 0 {
			rho = nb.dist
			break
		}
	}

	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for range smoothIterations {
		var psum float64
		for _, nb := range row {
			if d := nb.dist - rho; d > 0 {
				psum += math.Exp(-d / mid)
			} else {
				psum++
			}
		}
		if math.Abs(psum-target) < smoothTolerance {
			break
		}
		if psum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}
	sigma = mid

	if rho > 0 {
		var mean float64
		for _, nb := range row {
			mean += nb.dist
		}
		if len(row) > 0 {
			mean /= float64(len(row))
		}
		sigma = max(sigma, minKDistScale*mean)
	} else {
		sigma = max(sigma, minKDistScale*meanAll)
	}
	return rho, sigma
}

// initialLayout seeds the optimisation with the PCA projection, jittered
// and rescaled per axis to [0, initSpread].
func initialLayout(vectors [][]float64, rng *rand.Rand) ([][2]float64, error) {
	base, err := PCA(vectors)
	if err != nil {
		return nil, err
	}

	var extent float64
	for _, p := range base {
		extent = max(extent, math.Abs(p.X), math.Abs(p.Y))
	}
	scale := 1.0
	if extent > 0 {
		scale = initSpread / extent
	}

	emb := make([][2]float64, len(base))
	for i, p := range base {
		emb[i] = [2]float64{
			p.X*scale + rng.NormFloat64()*initNoise,
			p.Y*scale + rng.NormFloat64()*initNoise,
		}
	}

	for axis := range 2 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range emb {
			lo = min(lo, p[axis])
			hi = max(hi, p[axis])
		}
		if hi-lo <= 0 {
			continue
		}
		for i := range emb {
			emb[i][axis] = initSpread * (emb[i][axis] - lo) / (hi - lo)
		}
	}
	return emb, nil
}

// optimize runs stochastic gradient descent on the layout: attraction along
// graph edges, sampled in proportion to their weight, and repulsion from
// randomly drawn points.
func (u UMAP) optimize(emb [][2]float64, edges []edge, a, b float64, rng *rand.Rand) {
	n := len(emb)
	maxW := 0.0
	for _, e := range edges {
		maxW = max(maxW, e.weight)
	}

	perSample := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	perNegative := make([]float64, len(edges))
	nextNegative := make([]float64, len(edges))
	for i, e := range edges {
		perSample[i] = maxW / e.weight
		nextSample[i] = perSample[i]
		perNegative[i] = perSample[i] / float64(max(u.NegativeSampleRate, 1))
		nextNegative[i] = perNegative[i]
	}

	for epoch := range u.Epochs {
		alpha := u.LearningRate * (1 - float64(epoch)/float64(u.Epochs))
		now := float64(epoch)

		for i, e := range edges {
			if nextSample[i] > now {
				continue
			}
			cur, oth := &emb[e.head], &emb[e.tail]

			d2 := sqDist(*cur, *oth)
			coeff := 0.0
			if d2 > 0 {
				coeff = -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
			}
			for axis := range 2 {
				g := clip(coeff * (cur[axis] - oth[axis]))
				cur[axis] += g * alpha
				oth[axis] -= g * alpha
			}
			nextSample[i] += perSample[i]

			negatives := int((now - nextNegative[i]) / perNegative[i])
			for range max(negatives, 0) {
				k := rng.IntN(n)
				if k == e.head {
					continue
				}
				other := emb[k]
				d2 := sqDist(*cur, other)
				coeff := 0.0
				if d2 > 0 {
					coeff = 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				}
				for axis := range 2 {
					g := gradientClip
					if coeff > 0 {
						g = clip(coeff * (cur[axis] - other[axis]))
					}
					cur[axis] += g * alpha
				}
			}
			nextNegative[i] += float64(max(negatives, 0)) * perNegative[i]
		}
	}
}

func sqDist(p, q [2]float64) float64 {
	dx, dy := p[0]-q[0], p[1]-q[1]
	return dx*dx + dy*dy
}

func clip(v float64) float64 {
	return max(-gradientClip, min(gradientClip, v))
}

var curveCache sync.Map // [2]float64{spread, minDist} -> [2]float64{a, b}

// curveParams fits a and b so that 1/(1+a*x^(2b)) tracks the target
// membership curve: 1 up to minDist, then exp(-(x-minDist)/spread).
// The fit is a least-squares grid search refined around the best cell.
func curveParams(spread, minDist float64) (a, b float64) {
	key := [2]float64{spread, minDist}
	if v, ok := curveCache.Load(key); ok {
		ab := v.([2]float64)
		return ab[0], ab[1]
	}

	const samples = 300
	xs := make([]float64, samples)
	logs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		x := 3 * spread * float64(i) / float64(samples-1)
		xs[i] = x
		if x > 0 {
			logs[i] = math.Log(x)
		}
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	loss := func(logA, b float64) float64 {
		a := math.Exp(logA)
		var sum float64
		for i, x := range xs {
			f := 1.0
			if x > 0 {
				f = 1 / (1 + a*math.Exp(2*b*logs[i]))
			}
			r := f - ys[i]
			sum += r * r
		}
		return sum
	}

	search := func(la0, la1, b0, b1 float64, steps int) (float64, float64) {
		bestLA, bestB, best := la0, b0, math.Inf(1)
		for i := 0; i <= steps; i++ {
			la := la0 + (la1-la0)*float64(i)/float64(steps)
			for j := 0; j <= steps; j++ {
				bb := b0 + (b1-b0)*float64(j)/float64(steps)
				if bb <= 0 {
					continue
				}
				if l := loss(la, bb); l < best {
					bestLA, bestB, best = la, bb, l
				}
			}
		}
		return bestLA, bestB
	}

	la0, la1 := math.Log(0.05), math.Log(20.0)
	b0, b1 := 0.2, 2.5
	steps := 60
	la, bb := search(la0, la1, b0, b1, steps)
	stepLA, stepB := (la1-la0)/float64(steps), (b1-b0)/float64(steps)
	for range 4 {
		la, bb = search(la-stepLA, la+stepLA, bb-stepB, bb+stepB, 20)
		stepLA /= 10
		stepB /= 10
	}

	a, b = math.Exp(la), bb
	curveCache.Store(key, [2]float64{a, b})
	return a, b
}
