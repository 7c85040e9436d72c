package gallery

import (
	"context"
	"log/slog"
	"time"

	"media-wall/internal/platform/metrics"
)

// Splicer mutates the document with one fragment.
type Splicer interface {
	Splice(f Fragment) error
}

// Worker is the sole consumer of a PendingQueue. It splices one fragment per
// document rewrite and never runs two rewrites at once.
type Worker struct {
	queue   *PendingQueue
	doc     Splicer
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewWorker returns a Worker draining queue into doc. Metrics may be nil.
func NewWorker(queue *PendingQueue, doc Splicer, log *slog.Logger, m *metrics.Metrics) *Worker {
	return &Worker{queue: queue, doc: doc, log: log, metrics: m}
}

// Run waits for enqueued fragments and splices them until ctx is cancelled.
// A rewrite in progress when ctx is cancelled is completed first. Failed
// splices are logged and the fragment is dropped; the loop keeps running.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("rebuild worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("rebuild worker stopped", slog.Int("dropped_fragments", w.queue.Len()))
			return
		case <-w.queue.Wake():
			w.Drain(ctx)
		}
	}
}

// Drain splices pending fragments until the queue is empty or ctx is done.
// It returns the number of fragments popped.
func (w *Worker) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		processed, _ := w.queue.Process(w.rebuild)
		if !processed {
			return n
		}
		n++
	}
	return n
}

// rebuild runs under the queue lock.
func (w *Worker) rebuild(f Fragment) error {
	start := time.Now()
	err := w.doc.Splice(f)
	dur := time.Since(start)

	if w.metrics != nil {
		w.metrics.ObserveRebuild(dur, err)
	}
	if err != nil {
		w.log.Error("rebuild failed, fragment dropped",
			slog.String("fragment_id", string(f.ID)),
			slog.String("error", err.Error()))
		return err
	}

	w.log.Debug("fragment spliced",
		slog.String("fragment_id", string(f.ID)),
		slog.Int("bytes", len(f.Markup)),
		slog.Int64("duration_ms", dur.Milliseconds()))
	return nil
}
