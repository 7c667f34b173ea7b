package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/dgallion1/clearpath/internal/embed"
	"github.com/dgallion1/clearpath/internal/vectorindex"
)

// DefaultTopK is used when a non-positive k is requested.
const DefaultTopK = 5

// Retriever embeds a query and looks up the nearest chunks.
type Retriever struct {
	embedder embed.Embedder
	log      *slog.Logger
}

func New(e embed.Embedder, log *slog.Logger) *Retriever {
	return &Retriever{embedder: e, log: log}
}

// Retrieve returns up to k results in descending score order. A nil index
// or an empty chunk list yields an empty result, not an error. Hits whose
// position falls outside chunks are dropped.
func (r *Retriever) Retrieve(ctx context.Context, query string, idx vectorindex.Index, chunks []document.Chunk, k int) ([]document.Result, error) {
	if idx == nil || len(chunks) == 0 {
		r.log.Warn("retrieval skipped: index not loaded")
		return []document.Result{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vec, err := embed.One(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := idx.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]document.Result, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(chunks) {
			continue
		}
		results = append(results, document.Result{Chunk: chunks[h.Position], Score: h.Score})
		if len(results) == k {
			break
		}
	}

	top := 0.0
	if len(results) > 0 {
		top = results[0].Score
	}
	r.log.Info("retrieved chunks", "count", len(results), "top_score", top)
	return results, nil
}
