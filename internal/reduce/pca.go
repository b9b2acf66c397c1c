package reduce

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kalambet/narrativelens/internal/analysis"
)

// varianceFloor is the total variance below which points are treated as
// coincident.
const varianceFloor = 1e-12

// PCA projects vectors onto their first two principal components. The
// sign of each component is fixed so that its largest-magnitude loading
// is positive, which makes the output independent of the SVD backend.
// A rank-one input gets a zero second axis.
func PCA(vectors [][]float64) (Layout, error) {
	if len(vectors) < 2 {
		return nil, fmt.Errorf("pca: need at least 2 vectors, got %d: %w", len(vectors), analysis.ErrInsufficientData)
	}
	d, err := dims(vectors)
	if err != nil {
		return nil, err
	}
	n := len(vectors)

	data := mat.NewDense(n, d, nil)
	for i, v := range vectors {
		data.SetRow(i, v)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, fmt.Errorf("pca: decomposition failed: %w", analysis.ErrDegenerateGeometry)
	}
	vars := pc.VarsTo(nil)
	var total float64
	for _, v := range vars {
		total += v
	}
	if total <= varianceFloor {
		return nil, fmt.Errorf("pca: zero variance across %d vectors: %w", n, analysis.ErrDegenerateGeometry)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, nc := vecs.Dims()
	k := min(2, nc)

	centered := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, data)
		mean := stat.Mean(col, nil)
		for i := range col {
			centered.Set(i, j, col[i]-mean)
		}
	}

	axes := mat.DenseCopyOf(vecs.Slice(0, d, 0, k))
	for c := 0; c < k; c++ {
		if vars[c] <= varianceFloor {
			for r := 0; r < d; r++ {
				axes.Set(r, c, 0)
			}
			continue
		}
		flipSign(axes, c)
	}

	var proj mat.Dense
	proj.Mul(centered, axes)

	layout := make(Layout, n)
	for i := range layout {
		layout[i].X = proj.At(i, 0)
		if k > 1 {
			layout[i].Y = proj.At(i, 1)
		}
	}
	return layout, nil
}

// flipSign negates column c of m when its largest-magnitude entry is negative.
func flipSign(m *mat.Dense, c int) {
	rows, _ := m.Dims()
	best, at := 0.0, 0
	for r := 0; r < rows; r++ {
		if v := math.Abs(m.At(r, c)); v > best {
			best, at = v, r
		}
	}
	if m.At(at, c) >= 0 {
		return
	}
	for r := 0; r < rows; r++ {
		m.Set(r, c, -m.At(r, c))
	}
}
