package vectorindex

import (
	"errors"
	"fmt"
	"sort"
)

// Index kinds.
const (
	KindFlat = "flat"
	KindHNSW = "hnsw"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one search match: the position of the stored vector (which equals
// the position of its chunk) and its inner-product score.
type Hit struct {
	Position int
	Score    float64
}

// Index is a read-only inner-product index over unit vectors.
type Index interface {
	// Search returns up to k hits ordered by descending score.
	Search(query []float32, k int) ([]Hit, error)
	Len() int
	Dims() int
	Kind() string
}

// Build creates an index of the given kind holding vectors in order.
func Build(kind string, dims int, vectors [][]float32) (Index, error) {
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d: %w", i, len(v), dims, ErrDimensionMismatch)
		}
	}
	switch kind {
	case "", KindFlat:
		return newFlat(dims, vectors), nil
	case KindHNSW:
		return newHNSW(dims, vectors), nil
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
