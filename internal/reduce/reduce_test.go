package reduce

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/kalambet/narrativelens/internal/analysis"
)

func dist(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

// twoClusters returns 2*size vectors: half near one axis, half near another.
func twoClusters(size, dim int) [][]float64 {
	var out [][]float64
	for c := 0; c < 2; c++ {
		for i := 0; i < size; i++ {
			v := make([]float64, dim)
			v[c] = 1
			v[2+i%(dim-2)] = 0.05 * float64(i+1)
			out = append(out, v)
		}
	}
	return out
}

func TestReduce_TooFew(t *testing.T) {
	for _, vectors := range [][][]float64{nil, {{1, 2, 3}}} {
		if _, _, err := Reduce(vectors); !errors.Is(err, analysis.ErrInsufficientData) {
			t.Errorf("Reduce(%d vectors) err = %v, want ErrInsufficientData", len(vectors), err)
		}
	}
}

func TestReduce_Ragged(t *testing.T) {
	_, _, err := Reduce([][]float64{{1, 2}, {1, 2, 3}})
	if !errors.Is(err, analysis.ErrDegenerateGeometry) {
		t.Errorf("err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestReduce_SmallBatchUsesPCA(t *testing.T) {
	vectors := [][]float64{
		{0.1, 0.9, 0.2},
		{0.8, 0.1, 0.3},
		{0.4, 0.4, 0.9},
		{0.2, 0.7, 0.5},
	}
	layout, method, err := Reduce(vectors)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if method != MethodPCA {
		t.Errorf("method = %q, want %q", method, MethodPCA)
	}
	if len(layout) != 4 {
		t.Errorf("got %d points, want 4", len(layout))
	}
}

func TestReduce_LargeBatchUsesUMAP(t *testing.T) {
	layout, method, err := Reduce(twoClusters(5, 8))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if method != MethodUMAP {
		t.Errorf("method = %q, want %q", method, MethodUMAP)
	}
	if len(layout) != 10 {
		t.Fatalf("got %d points, want 10", len(layout))
	}
	for i, p := range layout {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			t.Errorf("point %d is NaN: %+v", i, p)
		}
	}
}

func TestReduce_ThresholdBoundary(t *testing.T) {
	vectors := twoClusters(3, 6)

	tests := []struct {
		n    int
		want Method
	}{
		{4, MethodPCA},
		{5, MethodUMAP},
	}
	for _, tt := range tests {
		_, method, err := Reduce(vectors[:tt.n])
		if err != nil {
			t.Fatalf("Reduce(%d): %v", tt.n, err)
		}
		if method != tt.want {
			t.Errorf("Reduce(%d) method = %q, want %q", tt.n, method, tt.want)
		}
	}
}

func TestReduce_Identical(t *testing.T) {
	v := []float64{0.3, 0.3, 0.3}
	for _, n := range []int{3, 6} {
		vectors := make([][]float64, n)
		for i := range vectors {
			vectors[i] = v
		}
		if _, _, err := Reduce(vectors); !errors.Is(err, analysis.ErrDegenerateGeometry) {
			t.Errorf("n=%d: err = %v, want ErrDegenerateGeometry", n, err)
		}
	}
}

func TestPCA_PreservesPlanarDistances(t *testing.T) {
	vectors := [][]float64{
		{0, 0, 0},
		{1, 0, 0},
		{0, 2, 0},
		{1, 2, 0},
	}
	layout, err := PCA(vectors)
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}

	var cx, cy float64
	for _, p := range layout {
		cx += p.X
		cy += p.Y
	}
	if !near(cx, 0, 1e-9) || !near(cy, 0, 1e-9) {
		t.Errorf("layout not centred: (%g, %g)", cx, cy)
	}

	for i := range vectors {
		for j := range vectors {
			var want float64
			for d := range vectors[i] {
				diff := vectors[i][d] - vectors[j][d]
				want += diff * diff
			}
			if got := dist(layout[i], layout[j]); !near(got, math.Sqrt(want), 1e-9) {
				t.Errorf("dist(%d, %d) = %g, want %g", i, j, got, math.Sqrt(want))
			}
		}
	}
}

func TestPCA_TwoPoints(t *testing.T) {
	layout, err := PCA([][]float64{{0, 0}, {3, 4}})
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}
	if len(layout) != 2 {
		t.Fatalf("got %d points, want 2", len(layout))
	}
	if d := dist(layout[0], layout[1]); !near(d, 5, 1e-9) {
		t.Errorf("distance = %g, want 5", d)
	}
	if !near(layout[0].Y, 0, 1e-9) || !near(layout[1].Y, 0, 1e-9) {
		t.Errorf("rank-1 input should have a zero second axis: %+v", layout)
	}
}

func TestPCA_Deterministic(t *testing.T) {
	vectors := twoClusters(2, 5)
	first, err := PCA(vectors)
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}
	second, err := PCA(vectors)
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("PCA not deterministic:\n%v\n%v", first, second)
	}
}

func TestUMAP_Deterministic(t *testing.T) {
	vectors := twoClusters(6, 10)
	first, err := DefaultUMAP().Fit(vectors)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	second, err := DefaultUMAP().Fit(vectors)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("UMAP not deterministic:\n%v\n%v", first, second)
	}
}

func TestUMAP_SeparatesClusters(t *testing.T) {
	vectors := twoClusters(5, 8)
	layout, err := DefaultUMAP().Fit(vectors)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	var intra, inter float64
	var nIntra, nInter int
	for i := range layout {
		for j := i + 1; j < len(layout); j++ {
			d := dist(layout[i], layout[j])
			if (i < 5) == (j < 5) {
				intra += d
				nIntra++
			} else {
				inter += d
				nInter++
			}
		}
	}
	if mi, mo := intra/float64(nIntra), inter/float64(nInter); mi >= mo {
		t.Errorf("mean intra-cluster distance %g >= inter-cluster %g", mi, mo)
	}
}

func TestUMAP_InvalidSettings(t *testing.T) {
	u := DefaultUMAP()
	u.NNeighbors = 1
	if _, err := u.Fit(twoClusters(3, 5)); err == nil {
		t.Fatal("expected error for NNeighbors = 1")
	}
}

func TestCurveParams(t *testing.T) {
	a, b := curveParams(1.0, 0.1)
	if !near(a, 1.577, 0.05) || !near(b, 0.895, 0.02) {
		t.Errorf("curveParams(1, 0.1) = (%g, %g), want about (1.577, 0.895)", a, b)
	}

	a2, b2 := curveParams(1.0, 0.1)
	if a != a2 || b != b2 {
		t.Errorf("cached curveParams differ: (%g, %g) vs (%g, %g)", a, b, a2, b2)
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	c := []float64{2, 0}
	zero := []float64{0, 0}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"orthogonal", cosineDistance(a, b, norm(a), norm(b)), 1},
		{"parallel", cosineDistance(a, c, norm(a), norm(c)), 0},
		{"one zero", cosineDistance(a, zero, norm(a), 0), 1},
		{"both zero", cosineDistance(zero, zero, 0, 0), 0},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want, 1e-12) {
			t.Errorf("%s: distance = %g, want %g", tt.name, tt.got, tt.want)
		}
	}
}

func TestNearestNeighbors(t *testing.T) {
	vectors := [][]float64{{1, 0}, {1, 0.1}, {0, 1}, {1, 0.2}}
	knn, spread := nearestNeighbors(vectors, 3)
	if !spread {
		t.Error("spread = false, want true")
	}
	if len(knn) != 4 || len(knn[0]) != 2 {
		t.Fatalf("knn shape = %d x %d, want 4 x 2", len(knn), len(knn[0]))
	}
	if knn[0][0].index != 1 || knn[0][1].index != 3 {
		t.Errorf("neighbours of 0 = %+v, want indices 1 then 3", knn[0])
	}
}
