// Package reduce projects high-dimensional embedding vectors onto a plane.
// Small batches go through PCA; larger ones through a cosine-metric UMAP
// projection with a fixed seed so repeated runs draw the same picture.
package reduce

import (
	"fmt"

	"github.com/kalambet/narrativelens/internal/analysis"
)

// PCAThreshold is the smallest batch that is projected with UMAP.
// Anything below it (but at least two points) uses PCA.
const PCAThreshold = 5

// Method names the projection that produced a Layout.
type Method string

const (
	MethodPCA  Method = "pca"
	MethodUMAP Method = "umap"
)

// Point is one projected coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout holds one Point per input vector, in input order.
type Layout []Point

// Reduce projects vectors to two dimensions. Fewer than two vectors yield
// analysis.ErrInsufficientData; geometry that admits no projection (ragged
// rows, zero variance, all points coincident) yields
// analysis.ErrDegenerateGeometry.
func Reduce(vectors [][]float64) (Layout, Method, error) {
	if len(vectors) < 2 {
		return nil, "", fmt.Errorf("reduce: need at least 2 vectors, got %d: %w", len(vectors), analysis.ErrInsufficientData)
	}
	if _, err := dims(vectors); err != nil {
		return nil, "", err
	}

	if len(vectors) < PCAThreshold {
		layout, err := PCA(vectors)
		if err != nil {
			return nil, "", err
		}
		return layout, MethodPCA, nil
	}

	layout, err := DefaultUMAP().Fit(vectors)
	if err != nil {
		return nil, "", err
	}
	return layout, MethodUMAP, nil
}

// dims returns the shared width of vectors.
func dims(vectors [][]float64) (int, error) {
	d := len(vectors[0])
	if d == 0 {
		return 0, fmt.Errorf("reduce: zero-width vectors: %w", analysis.ErrDegenerateGeometry)
	}
	for i, v := range vectors {
		if len(v) != d {
			return 0, fmt.Errorf("reduce: vector %d has %d dims, want %d: %w", i, len(v), d, analysis.ErrDegenerateGeometry)
		}
	}
	return d, nil
}
