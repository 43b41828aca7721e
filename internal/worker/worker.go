// Package worker drains the transcription queue in the background. At most one
// drain loop exists at a time, across processes: a lock file next to the queue
// database decides which process drains, and enqueueing while it runs feeds it
// more work instead of starting a second loop.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"clipdex/internal/config"
	"clipdex/internal/inventory"
	"clipdex/internal/logging"
	"clipdex/internal/queue"
	"clipdex/internal/registry"
	"clipdex/internal/services"
	"clipdex/internal/transcriber"
)

const lockFileName = "worker.lock"

// LockPath returns the worker lock file location for the given configuration.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, lockFileName)
}

// jobQueue is the slice of the queue store the worker depends on.
type jobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) (*queue.Job, error)
	NextPending(ctx context.Context) (*queue.Job, error)
	Update(ctx context.Context, job *queue.Job) error
	ResetStuckProcessing(ctx context.Context) (int64, error)
}

// Worker owns the transcription queue drain loop.
type Worker struct {
	cfg         *config.Config
	inventory   *inventory.Store
	queue       jobQueue
	registry    *registry.Registry
	transcriber transcriber.Transcriber
	logger      *slog.Logger
	lock        *flock.Flock

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func New(cfg *config.Config, inv *inventory.Store, q jobQueue, reg *registry.Registry, tr transcriber.Transcriber, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:         cfg,
		inventory:   inv,
		queue:       q,
		registry:    reg,
		transcriber: tr,
		logger:      logging.WithComponent(logger, "worker"),
		lock:        flock.New(LockPath(cfg)),
	}
}

// Enqueue marks the video as processing, persists a pending job, and makes
// sure a drain loop is running. The record transition happens first so a
// video can never be queued twice. When another process already holds the
// worker lock, the job is left for that process to pick up.
func (w *Worker) Enqueue(ctx context.Context, videoID, category, title string, tags []string) (*queue.Job, error) {
	var videoPath string
	err := w.inventory.Mutate(func(inv *inventory.Inventory) error {
		record, ok := inv.Videos[videoID]
		if !ok {
			return services.Wrap(services.ErrNotFound, "worker", "enqueue", fmt.Sprintf("video %s is not in the inventory", videoID), nil)
		}
		if err := record.MarkProcessing(); err != nil {
			return services.Wrap(services.ErrValidation, "worker", "enqueue", err.Error(), nil)
		}
		videoPath = record.CurrentPath
		return nil
	})
	if err != nil {
		return nil, err
	}

	job, err := w.queue.Enqueue(ctx, queue.Job{
		VideoID:   videoID,
		VideoPath: videoPath,
		Category:  category,
		Title:     title,
		Tags:      tags,
	})
	if err != nil {
		w.revertToUnlinked(videoID)
		return nil, err
	}

	w.logger.Info("job enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoID, videoID),
	)
	w.EnsureRunning()
	return job, nil
}

// EnsureRunning starts the drain goroutine unless one is already active in
// this process or the worker lock is held by another process. Returns true
// when this call started it.
func (w *Worker) EnsureRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	if !w.acquireLock() {
		return false
	}
	w.running = true
	w.wg.Add(1)
	go w.drain()
	return true
}

// ResumePending returns crashed jobs to pending and restarts the drain loop
// when work is waiting. Called once at startup. The stuck-job reset happens
// only under the worker lock: a job marked processing by a live worker in
// another process is not stuck.
func (w *Worker) ResumePending(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if !w.acquireLock() {
		return nil
	}
	reset, err := w.queue.ResetStuckProcessing(ctx)
	if err != nil {
		w.releaseLock()
		return err
	}
	if reset > 0 {
		w.logger.Info("requeued interrupted jobs", logging.Int64("count", reset))
	}
	next, err := w.queue.NextPending(ctx)
	if err != nil {
		w.releaseLock()
		return err
	}
	if next == nil {
		w.releaseLock()
		return nil
	}
	w.running = true
	w.wg.Add(1)
	go w.drain()
	return nil
}

// Wait blocks until this process's drain loop has stopped.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// acquireLock takes the cross-process worker lock. Callers hold w.mu.
func (w *Worker) acquireLock() bool {
	ok, err := w.lock.TryLock()
	if err != nil {
		w.logger.Error("worker lock unavailable",
			logging.String("path", w.lock.Path()),
			logging.Error(err),
		)
		return false
	}
	if !ok {
		w.logger.Info("another process is draining the queue",
			logging.String("path", w.lock.Path()),
		)
	}
	return ok
}

// releaseLock drops the cross-process worker lock. Callers hold w.mu.
func (w *Worker) releaseLock() {
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("could not release worker lock", logging.Error(err))
	}
}

func (w *Worker) backoff() time.Duration {
	return time.Duration(w.cfg.Worker.PollIntervalSeconds) * time.Second
}

// drain processes pending jobs until the queue is empty, then releases the
// worker lock. The empty check is re-done under the mutex before stopping: an
// Enqueue in this process that inserted after the first check either sees
// running=true and hands off to us, or we see its job here and keep going.
func (w *Worker) drain() {
	defer w.wg.Done()
	ctx := context.Background()

	for {
		job, err := w.queue.NextPending(ctx)
		if err != nil {
			w.logger.Error("queue read failed; stopping worker", logging.Error(err))
			w.mu.Lock()
			w.running = false
			w.releaseLock()
			w.mu.Unlock()
			return
		}
		if job == nil {
			w.mu.Lock()
			job, err = w.queue.NextPending(ctx)
			if err == nil && job == nil {
				w.running = false
				w.releaseLock()
				w.mu.Unlock()
				return
			}
			w.mu.Unlock()
			if err != nil {
				w.logger.Warn("queue recheck failed; retrying", logging.Error(err))
				time.Sleep(w.backoff())
				continue
			}
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	job.Status = queue.StatusProcessing
	if err := w.queue.Update(ctx, job); err != nil {
		w.logger.Error("job update failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		// The job is still pending; pause before drain re-selects it.
		time.Sleep(w.backoff())
		return
	}

	timeout := time.Duration(w.cfg.Transcriber.TimeoutSeconds) * time.Second
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	result, err := w.transcriber.Transcribe(jobCtx, job.VideoPath, transcriber.Options{})
	cancel()

	if err != nil {
		w.failJob(ctx, job, err)
		return
	}

	transcript, err := w.registry.SaveTranscript(job.Category, job.Title, job.VideoPath, result.Text, job.Tags)
	if err != nil {
		w.failJob(ctx, job, err)
		return
	}

	linkErr := w.inventory.Mutate(func(inv *inventory.Inventory) error {
		record, ok := inv.Videos[job.VideoID]
		if !ok {
			return services.Wrap(services.ErrNotFound, "worker", "link", fmt.Sprintf("video %s vanished from the inventory", job.VideoID), nil)
		}
		// Confidence zero: this link is deterministic, not a fuzzy match.
		return record.Link(transcript.ID, 0, time.Now().UTC())
	})
	if linkErr != nil {
		w.failJob(ctx, job, linkErr)
		return
	}

	job.Status = queue.StatusCompleted
	job.TranscriptID = transcript.ID
	job.ErrorMessage = ""
	if err := w.queue.Update(ctx, job); err != nil {
		w.logger.Error("job completion not persisted", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}
	w.logger.Info("job completed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoID, job.VideoID),
		logging.String("transcript_id", transcript.ID),
	)
}

// failJob records the failure on the job and returns the video to unlinked so
// it can be retried. One bad job never stops the drain loop.
func (w *Worker) failJob(ctx context.Context, job *queue.Job, cause error) {
	job.Status = queue.StatusFailed
	job.ErrorMessage = cause.Error()
	if err := w.queue.Update(ctx, job); err != nil {
		w.logger.Error("job failure not persisted", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
	}
	w.revertToUnlinked(job.VideoID)
	w.logger.Warn("job failed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoID, job.VideoID),
		logging.Error(cause),
	)
}

func (w *Worker) revertToUnlinked(videoID string) {
	err := w.inventory.Mutate(func(inv *inventory.Inventory) error {
		record, ok := inv.Videos[videoID]
		if !ok {
			return nil
		}
		if record.Status == inventory.StatusProcessing {
			record.Unlink()
		}
		return nil
	})
	if err != nil {
		w.logger.Error("could not revert video status",
			logging.String(logging.FieldVideoID, videoID),
			logging.Error(err),
		)
	}
}
