package vectorindex

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// FlatIndex scores every stored vector against the query. Results are
// exact.
type FlatIndex struct {
	dims int
	data []float32 // row-major, Len()*dims values
}

func newFlat(dims int, vectors [][]float32) *FlatIndex {
	data := make([]float32, 0, len(vectors)*dims)
	for _, v := range vectors {
		data = append(data, v...)
	}
	return &FlatIndex{dims: dims, data: data}
}

func (f *FlatIndex) Len() int {
	if f.dims == 0 {
		return 0
	}
	return len(f.data) / f.dims
}

func (f *FlatIndex) Dims() int    { return f.dims }
func (f *FlatIndex) Kind() string { return KindFlat }

func (f *FlatIndex) row(i int) []float32 {
	return f.data[i*f.dims : (i+1)*f.dims]
}

func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dims {
		return nil, fmt.Errorf("query has %d dimensions, want %d: %w", len(query), f.dims, ErrDimensionMismatch)
	}
	n := f.Len()
	if k <= 0 || n == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = Hit{Position: i, Score: dot(query, f.row(i))}
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// writeTo encodes the index as little-endian uint32 dims, uint32 count,
// then the float32 values.
func (f *FlatIndex) writeTo(w io.Writer) error {
	header := [2]uint32{uint32(f.dims), uint32(f.Len())}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, f.data)
}

func readFlat(r io.Reader) (*FlatIndex, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dims, count := int(header[0]), int(header[1])
	if dims <= 0 || count < 0 || count > math.MaxInt32/max(dims, 1) {
		return nil, fmt.Errorf("invalid header dims=%d count=%d", dims, count)
	}
	data := make([]float32, dims*count)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return &FlatIndex{dims: dims, data: data}, nil
}
