package embedding

import "fmt"

// Item is one embedded text.
type Item struct {
	Text   string
	Vector []float32
}

// Batch is an ordered set of embedded texts sharing one dimensionality.
type Batch struct {
	Items []Item
}

// Len returns the number of embedded texts.
func (b Batch) Len() int {
	return len(b.Items)
}

// Dim returns the vector dimensionality, or 0 for an empty batch.
func (b Batch) Dim() int {
	if len(b.Items) == 0 {
		return 0
	}
	return len(b.Items[0].Vector)
}

// Texts returns the embedded texts in batch order.
func (b Batch) Texts() []string {
	out := make([]string, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.Text
	}
	return out
}

// Vectors returns the vectors widened to float64, in batch order.
func (b Batch) Vectors() [][]float64 {
	out := make([][]float64, len(b.Items))
	for i, it := range b.Items {
		row := make([]float64, len(it.Vector))
		for j, v := range it.Vector {
			row[j] = float64(v)
		}
		out[i] = row
	}
	return out
}

func (b Batch) validate() error {
	dim := b.Dim()
	if dim == 0 {
		return fmt.Errorf("encoder returned zero-length vectors")
	}
	for i, it := range b.Items {
		if len(it.Vector) != dim {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(it.Vector), dim)
		}
	}
	return nil
}
