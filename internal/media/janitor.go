package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/clipvault/backend/internal/transform"
)

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
}

// Janitor asynchronously destroys remote assets that were transformed
// successfully but could not be persisted locally. Destruction is
// best-effort: failures are logged and the orphan is left for reconciliation
// against the originals archive.
type Janitor struct {
	destroyer transform.Destroyer
	logger    *slog.Logger

	jobs chan destroyJob
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type destroyJob struct {
	remoteRef string
	resource  transform.ResourceType
}

var errJanitorClosed = errors.New("media janitor closed")

// NewJanitor starts a worker pool that processes destroy jobs.
func NewJanitor(destroyer transform.Destroyer, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		destroyer: destroyer,
		logger:    logger,
		jobs:      make(chan destroyJob, cfg.QueueSize),
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}

	return j
}

// Enqueue schedules a remote destroy for the supplied asset reference.
func (j *Janitor) Enqueue(ctx context.Context, remoteRef string, resource transform.ResourceType) error {
	// The read lock holds off Shutdown's close(j.jobs) until the send below
	// either completes or the caller gives up.
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return errJanitorClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case j.jobs <- destroyJob{remoteRef: remoteRef, resource: resource}:
		return nil
	}
}

// Shutdown stops accepting new jobs and waits for the worker pool to drain
// everything already queued.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.jobs)
		j.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()

	for job := range j.jobs {
		j.handleJob(job)
	}
}

func (j *Janitor) handleJob(job destroyJob) {
	if j.destroyer == nil {
		j.logger.Error("janitor missing destroyer", "remoteRef", job.remoteRef)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.destroyer.Destroy(ctx, job.remoteRef, job.resource); err != nil {
		j.logger.Error("destroy orphaned remote asset", "remoteRef", job.remoteRef, "error", err)
		return
	}

	j.logger.Info("destroyed orphaned remote asset", "remoteRef", job.remoteRef)
}
