package stuff

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// writerWorkers bounds concurrent artifact writes. Serialization dominates
// write time, so a small pool keeps the disk busy without thrashing.
const writerWorkers = 4

// Writer is a scope-bound background writer. Builds enqueue binary
// artifacts as they finish; writes complete in no particular order, but
// [WithWriter] does not return until every enqueued write has finished.
//
// Enqueue is safe for concurrent use within the scope. Enqueueing after
// the scope has closed panics (send on closed channel) - a Writer must
// not escape its scope.
type Writer struct {
	fs   afero.Fs
	jobs chan writeJob
	wg   sync.WaitGroup

	mu      sync.Mutex
	firstErr error
}

type writeJob struct {
	path   string
	encode func() ([]byte, error)
}

// Enqueue schedules one write. The encode function runs on a writer
// goroutine, so expensive serialization happens off the build path.
func (w *Writer) Enqueue(path string, encode func() ([]byte, error)) {
	w.jobs <- writeJob{path: path, encode: encode}
}

// WithWriter runs fn with a background writer scoped to the call. When fn
// returns, the scope closes: all pending writes are drained, and the first
// write error (if any) is returned. A failing fn short-circuits nothing -
// pending writes still drain so the disk is never left half-written.
func WithWriter(fs afero.Fs, fn func(w *Writer) error) error {
	w := &Writer{
		fs:   fs,
		jobs: make(chan writeJob, writerWorkers*2),
	}

	for range writerWorkers {
		w.wg.Add(1)
		go w.worker()
	}

	fnErr := fn(w)
	close(w.jobs)
	w.wg.Wait()

	if fnErr != nil {
		return fnErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr
}

func (w *Writer) worker() {
	defer w.wg.Done()
	for job := range w.jobs {
		if err := w.write(job); err != nil {
			w.mu.Lock()
			if w.firstErr == nil {
				w.firstErr = err
			}
			w.mu.Unlock()
		}
	}
}

func (w *Writer) write(job writeJob) error {
	data, err := job.encode()
	if err != nil {
		return err
	}
	if err := w.fs.MkdirAll(filepath.Dir(job.path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(w.fs, job.path, data, 0o644)
}
