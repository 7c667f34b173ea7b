package vectorindex

import (
	"bufio"
	"fmt"
	"io"

	"github.com/coder/hnsw"
)

// HNSWIndex is an approximate index backed by coder/hnsw. Node keys are
// chunk positions.
type HNSWIndex struct {
	dims  int
	graph *hnsw.Graph[uint64]
}

// innerProductDistanceName is recorded in exported graphs.
const innerProductDistanceName = "inner_product"

func init() {
	hnsw.RegisterDistanceFunc(innerProductDistanceName, innerProductDistance)
}

// innerProductDistance is cosine distance for unit vectors. Unlike
// hnsw.CosineDistance it stays finite for zero vectors, which score as
// orthogonal to everything.
func innerProductDistance(a, b []float32) float32 {
	return float32(1 - dot(a, b))
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = innerProductDistance
	g.M = 16
	g.EfSearch = 64
	g.Ml = 0.25
	return g
}

func newHNSW(dims int, vectors [][]float32) *HNSWIndex {
	g := newGraph()
	for i, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		g.Add(hnsw.MakeNode(uint64(i), vec))
	}
	return &HNSWIndex{dims: dims, graph: g}
}

func (h *HNSWIndex) Len() int     { return h.graph.Len() }
func (h *HNSWIndex) Dims() int    { return h.dims }
func (h *HNSWIndex) Kind() string { return KindHNSW }

// Search scores graph candidates by inner product, so scores are
// comparable with FlatIndex.
func (h *HNSWIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != h.dims {
		return nil, fmt.Errorf("query has %d dimensions, want %d: %w", len(query), h.dims, ErrDimensionMismatch)
	}
	if k <= 0 || h.graph.Len() == 0 {
		return []Hit{}, nil
	}

	nodes := h.graph.Search(query, k)
	hits := make([]Hit, 0, len(nodes))
	for _, n := range nodes {
		hits = append(hits, Hit{Position: int(n.Key), Score: dot(query, n.Value)})
	}
	sortHits(hits)
	return hits, nil
}

func (h *HNSWIndex) writeTo(w io.Writer) error {
	return h.graph.Export(w)
}

func readHNSW(r io.Reader, dims int) (*HNSWIndex, error) {
	g := newGraph()
	if err := g.Import(bufio.NewReader(r)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}
	return &HNSWIndex{dims: dims, graph: g}, nil
}
