package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/gofrs/flock"
	"github.com/google/renameio"
)

const (
	indexFile    = "index.bin"
	chunksFile   = "chunks.json"
	manifestFile = "manifest.json"
	lockFile     = ".build.lock"
)

// Manifest describes a persisted index so a loader can tell whether it still
// matches the corpus and embedder.
type Manifest struct {
	Kind       string    `json:"kind"`
	Dims       int       `json:"dims"`
	Model      string    `json:"model"`
	Chunks     int       `json:"chunks"`
	CorpusHash string    `json:"corpus_hash"`
	BuiltAt    time.Time `json:"built_at"`
}

// Persist writes the index, its chunks and the manifest into dir. Each file
// is replaced atomically; the manifest is written last so a reader never
// sees a manifest for files that are not there yet.
func Persist(dir string, idx Index, chunks []document.Chunk, m Manifest) error {
	if idx.Len() != len(chunks) {
		return fmt.Errorf("index holds %d vectors but %d chunks were given", idx.Len(), len(chunks))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	var buf bytes.Buffer
	switch x := idx.(type) {
	case *FlatIndex:
		if err := x.writeTo(&buf); err != nil {
			return fmt.Errorf("encode flat index: %w", err)
		}
	case *HNSWIndex:
		if err := x.writeTo(&buf); err != nil {
			return fmt.Errorf("encode hnsw index: %w", err)
		}
	default:
		return fmt.Errorf("cannot persist index of type %T", idx)
	}
	if err := renameio.WriteFile(filepath.Join(dir, indexFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, chunksFile), chunks); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}

	m.Kind = idx.Kind()
	m.Dims = idx.Dims()
	m.Chunks = len(chunks)
	if m.BuiltAt.IsZero() {
		m.BuiltAt = time.Now().UTC()
	}
	if err := writeJSON(filepath.Join(dir, manifestFile), m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// Stored is an index loaded from disk together with its chunks.
type Stored struct {
	Index    Index
	Chunks   []document.Chunk
	Manifest Manifest
}

// Load reads a persisted index from dir. A missing or unreadable index is
// not an error: it is logged and Load returns nil so the caller can rebuild.
func Load(dir string, log *slog.Logger) *Stored {
	s, err := load(dir)
	switch {
	case err == nil:
		return s
	case errors.Is(err, fs.ErrNotExist):
		log.Info("no persisted index found", "dir", dir)
	default:
		log.Warn("ignoring unreadable index", "dir", dir, "error", err)
	}
	return nil
}

func load(dir string) (*Stored, error) {
	var m Manifest
	if err := readJSON(filepath.Join(dir, manifestFile), &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	var chunks []document.Chunk
	if err := readJSON(filepath.Join(dir, chunksFile), &chunks); err != nil {
		return nil, fmt.Errorf("chunks: %w", err)
	}
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	f, err := os.Open(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	defer f.Close()

	var idx Index
	switch m.Kind {
	case KindFlat:
		idx, err = readFlat(f)
	case KindHNSW:
		idx, err = readHNSW(f, m.Dims)
	default:
		err = fmt.Errorf("unknown index kind %q", m.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	if idx.Len() != len(chunks) || idx.Dims() != m.Dims {
		return nil, fmt.Errorf("index has %d vectors of %d dims, manifest says %d chunks of %d dims",
			idx.Len(), idx.Dims(), len(chunks), m.Dims)
	}
	return &Stored{Index: idx, Chunks: chunks, Manifest: m}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Remove deletes the persisted index from dir, manifest first so a
// concurrent reader never pairs it with missing files. Missing files are
// ignored.
func Remove(dir string) error {
	for _, name := range []string{manifestFile, chunksFile, indexFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// Lock takes the cross-process build lock for dir, polling until ctx is
// done. The returned function releases it.
func Lock(ctx context.Context, dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	fl := flock.New(filepath.Join(dir, lockFile))
	ok, err := fl.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	if !ok {
		return nil, errors.New("acquire index lock: not acquired")
	}
	return fl.Unlock, nil
}
