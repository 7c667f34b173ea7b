package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/clearpath/internal/chunker"
	"github.com/dgallion1/clearpath/internal/document"
	"github.com/dgallion1/clearpath/internal/embed"
	"github.com/dgallion1/clearpath/internal/parser"
	"github.com/dgallion1/clearpath/internal/vectorindex"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyCorpus is returned when the document directory yields no chunks.
var ErrEmptyCorpus = errors.New("no extractable content in document directory")

const defaultBatchSize = 32

// Builder turns a document directory into a persisted vector index.
type Builder struct {
	DocsDir   string
	IndexDir  string
	Parse     parser.Options
	Workers   int // concurrent file parses and embedding batches
	Chunking  chunker.Config
	Embedder  embed.Embedder
	Kind      string
	BatchSize int
	Log       *slog.Logger
}

// LoadOrBuild returns the persisted index when it still matches the corpus
// and embedder, and builds a fresh one otherwise. built reports which
// happened.
func (b *Builder) LoadOrBuild(ctx context.Context, force bool) (stored *vectorindex.Stored, built bool, err error) {
	if !force {
		if s := vectorindex.Load(b.IndexDir, b.Log); s != nil {
			fresh, err := b.Fresh(s.Manifest)
			if err != nil {
				return nil, false, err
			}
			if fresh {
				b.Log.Info("loaded persisted index", "chunks", len(s.Chunks), "kind", s.Manifest.Kind)
				return s, false, nil
			}
			b.Log.Info("persisted index is stale, rebuilding")
		}
	}
	s, err := b.Build(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Fresh reports whether an index described by m was built from the current
// corpus with the current embedder and index kind.
func (b *Builder) Fresh(m vectorindex.Manifest) (bool, error) {
	hash, err := CorpusHash(b.DocsDir)
	if err != nil {
		return false, err
	}
	return m.CorpusHash == hash &&
		m.Model == b.Embedder.ModelName() &&
		m.Dims == b.Embedder.Dimensions() &&
		m.Kind == b.kind(), nil
}

func (b *Builder) kind() string {
	if b.Kind == "" {
		return vectorindex.KindFlat
	}
	return b.Kind
}

// Build parses, chunks and embeds the corpus, then persists the index under
// the cross-process build lock. Progress is reported on job, which may be nil.
func (b *Builder) Build(ctx context.Context, job *Job) (*vectorindex.Stored, error) {
	if job == nil {
		job = NewJob()
	}
	log := b.Log.With("job_id", job.ID)

	unlock, err := vectorindex.Lock(ctx, b.IndexDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn("release index lock", "error", err)
		}
	}()

	hash, err := CorpusHash(b.DocsDir)
	if err != nil {
		return nil, err
	}
	job.setCorpusHash(hash)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	blocks, err := parser.LoadDir(ctx, b.DocsDir, b.Parse, b.Workers, log)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	job.SetBlocks(len(blocks))

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.Chunk(blocks, b.Chunking)
	job.SetTotalChunks(len(chunks))
	log.Info("chunked corpus", "blocks", len(blocks), "chunks", len(chunks))
	if len(chunks) == 0 {
		if err := vectorindex.Remove(b.IndexDir); err != nil {
			log.Warn("remove stale index", "error", err)
		}
		return nil, ErrEmptyCorpus
	}

	// Phase 3: Embed
	job.SetStatus(StatusEmbedding, "embedding")
	vectors, err := b.embedChunks(ctx, chunks, job)
	if err != nil {
		return nil, err
	}

	idx, err := vectorindex.Build(b.kind(), b.Embedder.Dimensions(), vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	// Phase 4: Persist
	job.SetStatus(StatusStoring, "storing")
	m := vectorindex.Manifest{Model: b.Embedder.ModelName(), CorpusHash: hash, BuiltAt: time.Now().UTC()}
	if err := vectorindex.Persist(b.IndexDir, idx, chunks, m); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	m.Kind, m.Dims, m.Chunks = idx.Kind(), idx.Dims(), len(chunks)
	log.Info("index built", "chunks", len(chunks), "kind", idx.Kind(), "dims", idx.Dims())

	return &vectorindex.Stored{Index: idx, Chunks: chunks, Manifest: m}, nil
}

// embedChunks embeds chunk texts in batches, a bounded number at a time.
// Vectors come back in chunk order.
func (b *Builder) embedChunks(ctx context.Context, chunks []document.Chunk, job *Job) ([][]float32, error) {
	size := b.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			vecs, err := b.Embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vecs))
			}
			copy(vectors[start:end], vecs)
			job.AddEmbedded(len(vecs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// CorpusHash fingerprints the supported documents in dir by name and
// content. A missing directory hashes like an empty one.
func CorpusHash(dir string) (string, error) {
	files, err := parser.ListDocuments(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	var listing strings.Builder
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", name, err)
		}
		fmt.Fprintf(&listing, "%s\x00%s\n", name, ContentHashHex(data))
	}
	return ContentHashHex([]byte(listing.String())), nil
}
