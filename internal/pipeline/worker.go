package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/clearpath/internal/vectorindex"
)

// Publisher receives every successfully built index, and nil when the
// corpus no longer yields one.
type Publisher interface {
	Publish(s *vectorindex.Stored)
}

// Worker runs index build jobs.
type Worker struct {
	builder *Builder
	publish Publisher
	log     *slog.Logger
}

func NewWorker(b *Builder, pub Publisher, log *slog.Logger) *Worker {
	return &Worker{builder: b, publish: pub, log: log}
}

// Process builds the index for job and publishes it on success.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	log.Info("index rebuild started")

	stored, err := w.builder.Build(ctx, job)
	if err != nil {
		phase := job.Snapshot().Phase
		if errors.Is(err, ErrEmptyCorpus) {
			log.Warn("index rebuild produced no chunks, unloading index", "phase", phase)
			w.publish.Publish(nil)
		} else {
			log.Error("index rebuild failed", "phase", phase, "error", err)
		}
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phase)
		return
	}

	w.publish.Publish(stored)
	job.SetStatus(StatusCompleted, "done")
	log.Info("index rebuild complete", "chunks", len(stored.Chunks))
}
