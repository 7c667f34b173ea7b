package vectorindex

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(v ...float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	n := float32(1)
	if sum > 0 {
		n = float32(1 / math.Sqrt(float64(sum)))
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * n
	}
	return out
}

func randomVectors(n, dims int, seed uint64) [][]float32 {
	r := rand.New(rand.NewPCG(seed, seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		out[i] = unit(v...)
	}
	return out
}

func chunksFor(n int) []document.Chunk {
	out := make([]document.Chunk, n)
	for i := range out {
		out[i] = document.Chunk{Text: "chunk text", Source: "doc.pdf", Page: 1, Index: i}
	}
	return out
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFlat_SearchOrdersByScore(t *testing.T) {
	idx, err := Build(KindFlat, 2, [][]float32{unit(1, 0), unit(0, 1), unit(1, 1)})
	require.NoError(t, err)

	hits, err := idx.Search(unit(1, 0.1), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, 2, hits[1].Position)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestFlat_KLargerThanIndex(t *testing.T) {
	idx, err := Build(KindFlat, 2, [][]float32{unit(1, 0)})
	require.NoError(t, err)

	hits, err := idx.Search(unit(1, 0), 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(KindFlat, 3, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Build("faiss", 2, nil)
	assert.Error(t, err)

	idx, err := Build(KindFlat, 2, nil)
	require.NoError(t, err)
	_, err = idx.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHNSW_AgreesWithFlatOnTopHit(t *testing.T) {
	vecs := randomVectors(200, 16, 7)
	flat, err := Build(KindFlat, 16, vecs)
	require.NoError(t, err)
	approx, err := Build(KindHNSW, 16, vecs)
	require.NoError(t, err)
	assert.Equal(t, 200, approx.Len())

	query := vecs[42]
	exact, err := flat.Search(query, 5)
	require.NoError(t, err)
	got, err := approx.Search(query, 5)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, exact[0].Position, got[0].Position)
	assert.InDelta(t, exact[0].Score, got[0].Score, 1e-6)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestHNSW_ZeroVectorDoesNotDisplaceMatches(t *testing.T) {
	vecs := [][]float32{
		unit(1, 0, 0, 0),
		make([]float32, 4), // separator paragraph with no hashed features
		unit(0.9, 0.1, 0, 0),
		unit(0, 0, 1, 0),
		unit(0.7, 0.3, 0, 0),
		unit(0, 0, 0, 1),
	}
	flat, err := Build(KindFlat, 4, vecs)
	require.NoError(t, err)
	approx, err := Build(KindHNSW, 4, vecs)
	require.NoError(t, err)

	query := unit(1, 0.05, 0, 0)
	exact, err := flat.Search(query, 3)
	require.NoError(t, err)
	got, err := approx.Search(query, 3)
	require.NoError(t, err)

	require.Len(t, got, 3)
	for i := range exact {
		assert.Equal(t, exact[i].Position, got[i].Position)
		assert.False(t, math.IsNaN(got[i].Score))
	}
	for _, h := range got {
		assert.NotEqual(t, 1, h.Position)
	}
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	for _, kind := range []string{KindFlat, KindHNSW} {
		t.Run(kind, func(t *testing.T) {
			dir := t.TempDir()
			vecs := randomVectors(20, 8, 3)
			idx, err := Build(kind, 8, vecs)
			require.NoError(t, err)

			chunks := chunksFor(20)
			require.NoError(t, Persist(dir, idx, chunks, Manifest{Model: "hash", CorpusHash: "abc"}))

			s := Load(dir, discard())
			require.NotNil(t, s)
			assert.Equal(t, kind, s.Manifest.Kind)
			assert.Equal(t, "abc", s.Manifest.CorpusHash)
			assert.Equal(t, 20, s.Manifest.Chunks)
			assert.Equal(t, chunks, s.Chunks)

			hits, err := s.Index.Search(vecs[5], 1)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, 5, hits[0].Position)
		})
	}
}

func TestPersist_LengthMismatch(t *testing.T) {
	idx, err := Build(KindFlat, 2, [][]float32{unit(1, 0)})
	require.NoError(t, err)
	assert.Error(t, Persist(t.TempDir(), idx, chunksFor(2), Manifest{}))
}

func TestLoad_MissingAndCorrupt(t *testing.T) {
	assert.Nil(t, Load(filepath.Join(t.TempDir(), "absent"), discard()))

	dir := t.TempDir()
	idx, err := Build(KindFlat, 2, [][]float32{unit(1, 0)})
	require.NoError(t, err)
	require.NoError(t, Persist(dir, idx, chunksFor(1), Manifest{}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), []byte{1, 2, 3}, 0o644))
	assert.Nil(t, Load(dir, discard()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, chunksFile), []byte(`[{"text":""}]`), 0o644))
	assert.Nil(t, Load(dir, discard()))
}

func TestLock_Exclusive(t *testing.T) {
	dir := t.TempDir()
	unlock, err := Lock(context.Background(), dir)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = Lock(ctx, dir)
	assert.Error(t, err)

	require.NoError(t, unlock())
	unlock2, err := Lock(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, unlock2())
}
