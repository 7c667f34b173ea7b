package embed

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// DefaultDimensions matches the MiniLM-class sentence encoders the corpus
// was tuned against.
const DefaultDimensions = 384

// Embedder turns texts into unit-length vectors. Implementations return one
// vector per input, in input order, each of length Dimensions().
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// Config selects and tunes an embedder.
type Config struct {
	Provider  string // "hash" or "openai"
	Model     string
	BaseURL   string
	APIKey    string
	Dims      int
	BatchSize int
	CacheSize int     // LRU entries; 0 disables the cache
	RateLimit float64 // Requests per second to a remote provider; 0 is unlimited
}

// New builds the embedder described by cfg, wrapped in an LRU cache when
// cfg.CacheSize is positive.
func New(cfg Config) (Embedder, error) {
	if cfg.Dims <= 0 {
		cfg.Dims = DefaultDimensions
	}

	var e Embedder
	switch strings.ToLower(cfg.Provider) {
	case "", "hash":
		e = NewHashEmbedder(cfg.Dims)
	case "openai":
		c, err := NewHTTPEmbedder(HTTPConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Dims:      cfg.Dims,
			BatchSize: cfg.BatchSize,
			RateLimit: cfg.RateLimit,
		})
		if err != nil {
			return nil, err
		}
		e = c
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}

// Normalize scales v to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
	return v
}

// Dot returns the inner product of a and b, which for unit vectors is their
// cosine similarity. Extra trailing elements of the longer slice are ignored.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// One embeds a single text.
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}
