package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/clearpath/internal/chunker"
	"github.com/dgallion1/clearpath/internal/embed"
	"github.com/dgallion1/clearpath/internal/rag"
	"github.com/dgallion1/clearpath/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeDoc(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newBuilder(t *testing.T, kind string) *Builder {
	t.Helper()
	docs := t.TempDir()
	writeDoc(t, docs, "refunds.md", "# Refund Policy\n\nRefunds are issued within 30 days of purchase.\n\nContact billing to start a refund.")
	writeDoc(t, docs, "shipping.txt", "Orders ship within two business days.\n\nExpress shipping costs extra.")
	return &Builder{
		DocsDir:   docs,
		IndexDir:  filepath.Join(t.TempDir(), "index"),
		Workers:   2,
		Chunking:  chunker.DefaultConfig(),
		Embedder:  embed.NewHashEmbedder(64),
		Kind:      kind,
		BatchSize: 2,
		Log:       discard(),
	}
}

func TestBuilder_BuildPersists(t *testing.T) {
	for _, kind := range []string{vectorindex.KindFlat, vectorindex.KindHNSW} {
		t.Run(kind, func(t *testing.T) {
			b := newBuilder(t, kind)
			job := NewJob()

			stored, err := b.Build(context.Background(), job)
			require.NoError(t, err)
			require.Len(t, stored.Chunks, 4)
			assert.Equal(t, 4, stored.Index.Len())
			assert.Equal(t, kind, stored.Manifest.Kind)

			snap := job.Snapshot()
			assert.Equal(t, 4, snap.Progress.TotalChunks)
			assert.Equal(t, 4, snap.Progress.ChunksEmbedded)
			assert.NotEmpty(t, snap.CorpusHash)

			loaded := vectorindex.Load(b.IndexDir, discard())
			require.NotNil(t, loaded)
			assert.Equal(t, stored.Chunks, loaded.Chunks)
			assert.Equal(t, snap.CorpusHash, loaded.Manifest.CorpusHash)
		})
	}
}

func TestBuilder_LoadOrBuild(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	ctx := context.Background()

	_, built, err := b.LoadOrBuild(ctx, false)
	require.NoError(t, err)
	assert.True(t, built, "first call builds")

	_, built, err = b.LoadOrBuild(ctx, false)
	require.NoError(t, err)
	assert.False(t, built, "unchanged corpus loads from disk")

	writeDoc(t, b.DocsDir, "warranty.txt", "Hardware carries a one year warranty.")
	stored, built, err := b.LoadOrBuild(ctx, false)
	require.NoError(t, err)
	assert.True(t, built, "changed corpus rebuilds")
	assert.Len(t, stored.Chunks, 5)

	_, built, err = b.LoadOrBuild(ctx, true)
	require.NoError(t, err)
	assert.True(t, built, "force always rebuilds")
}

func TestBuilder_FreshTracksEmbedder(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	stored, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	fresh, err := b.Fresh(stored.Manifest)
	require.NoError(t, err)
	assert.True(t, fresh)

	b.Embedder = embed.NewHashEmbedder(32)
	fresh, err = b.Fresh(stored.Manifest)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestBuilder_EmptyCorpus(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	b.DocsDir = t.TempDir()
	_, err := b.Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestWorker_DeletingEveryDocumentUnloadsIndex(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	engine := rag.New(rag.Deps{Log: discard()})
	w := NewWorker(b, engine, discard())

	first := NewJob()
	w.Process(context.Background(), first)
	require.Equal(t, StatusCompleted, first.Snapshot().Status)
	require.True(t, engine.Status().IndexLoaded)

	require.NoError(t, os.Remove(filepath.Join(b.DocsDir, "refunds.md")))
	require.NoError(t, os.Remove(filepath.Join(b.DocsDir, "shipping.txt")))

	second := NewJob()
	w.Process(context.Background(), second)
	assert.Equal(t, StatusFailed, second.Snapshot().Status)

	status := engine.Status()
	assert.False(t, status.IndexLoaded)
	assert.Zero(t, status.Chunks)
	assert.Nil(t, vectorindex.Load(b.IndexDir, discard()), "stale index left on disk")

	// A restart sees the same empty state.
	stored, built, err := b.LoadOrBuild(context.Background(), false)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
	assert.Nil(t, stored)
	assert.False(t, built)
}

type failingEmbedder struct{ embed.Embedder }

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("backend down")
}

func TestBuilder_EmbeddingFailure(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	b.Embedder = failingEmbedder{embed.NewHashEmbedder(64)}
	_, err := b.Build(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
	assert.Nil(t, vectorindex.Load(b.IndexDir, discard()))
}

func TestCorpusHash(t *testing.T) {
	dir := t.TempDir()
	empty, err := CorpusHash(filepath.Join(dir, "missing"))
	require.NoError(t, err)

	writeDoc(t, dir, "a.txt", "one")
	h1, err := CorpusHash(dir)
	require.NoError(t, err)
	assert.NotEqual(t, empty, h1)

	writeDoc(t, dir, "ignored.png", "binary")
	h2, _ := CorpusHash(dir)
	assert.Equal(t, h1, h2, "unsupported files do not affect the hash")

	writeDoc(t, dir, "a.txt", "two")
	h3, _ := CorpusHash(dir)
	assert.NotEqual(t, h1, h3)
}

type recordingPublisher struct {
	mu     sync.Mutex
	stored []*vectorindex.Stored
}

func (p *recordingPublisher) Publish(s *vectorindex.Stored) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = append(p.stored, s)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stored)
}

func waitForStatus(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	var snap JobSnapshot
	require.Eventually(t, func() bool {
		snap = job.Snapshot()
		return snap.Status == StatusCompleted || snap.Status == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestOrchestrator_RebuildPublishes(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	pub := &recordingPublisher{}
	o := NewOrchestrator(Config{MaxQueueSize: 2, JobTTL: time.Hour}, b, pub, discard())
	o.Start(context.Background())
	defer o.Stop()

	job, err := o.Submit()
	require.NoError(t, err)
	assert.Same(t, job, o.GetJob(job.ID))

	snap := waitForStatus(t, job)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1, pub.count())
}

func TestOrchestrator_FailedBuildDoesNotPublish(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	b.Embedder = failingEmbedder{embed.NewHashEmbedder(64)}
	pub := &recordingPublisher{}
	o := NewOrchestrator(Config{}, b, pub, discard())
	o.Start(context.Background())
	defer o.Stop()

	job, err := o.Submit()
	require.NoError(t, err)

	snap := waitForStatus(t, job)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "embedding", snap.Phase)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Zero(t, pub.count())
}

func TestOrchestrator_EmptyCorpusPublishesNil(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	b.DocsDir = t.TempDir()
	pub := &recordingPublisher{}
	o := NewOrchestrator(Config{}, b, pub, discard())
	o.Start(context.Background())
	defer o.Stop()

	job, err := o.Submit()
	require.NoError(t, err)

	snap := waitForStatus(t, job)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "chunking", snap.Phase)
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
	pub.mu.Lock()
	assert.Nil(t, pub.stored[0])
	pub.mu.Unlock()
}

func TestOrchestrator_QueueFull(t *testing.T) {
	b := newBuilder(t, vectorindex.KindFlat)
	o := NewOrchestrator(Config{MaxQueueSize: 1}, b, &recordingPublisher{}, discard())
	// Not started: nothing drains the queue.
	_, err := o.Submit()
	require.NoError(t, err)
	job, err := o.Submit()
	require.Error(t, err)
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
	assert.Equal(t, 1, o.QueueDepth())
}
