package worker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/flock"

	"clipdex/internal/config"
	"clipdex/internal/inventory"
	"clipdex/internal/logging"
	"clipdex/internal/queue"
	"clipdex/internal/registry"
	"clipdex/internal/services"
	"clipdex/internal/testsupport"
	"clipdex/internal/transcriber"
	"clipdex/internal/worker"
)

// countingTranscriber tracks how many transcriptions run at once.
type countingTranscriber struct {
	active  atomic.Int32
	peak    atomic.Int32
	total   atomic.Int32
	err     error
	release chan struct{}
}

func (c *countingTranscriber) Transcribe(ctx context.Context, path string, opts transcriber.Options) (transcriber.Result, error) {
	now := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		peak := c.peak.Load()
		if now <= peak || c.peak.CompareAndSwap(peak, now) {
			break
		}
	}
	c.total.Add(1)
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return transcriber.Result{}, c.err
	}
	return transcriber.Result{Text: "Transcribed speech for " + path}, nil
}

type harness struct {
	cfg   *config.Config
	store *inventory.Store
	queue *queue.Store
	work  *worker.Worker
}

func newHarness(t *testing.T, tr transcriber.Transcriber) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, "camera")
	store := inventory.NewStore(cfg.InventoryPath())
	q, err := queue.Open(cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	reg := registry.New(cfg.Paths.TranscriptsDir, cfg.Categories, logging.NewNop())
	return &harness{
		cfg:   cfg,
		store: store,
		queue: q,
		work:  worker.New(cfg, store, q, reg, tr, logging.NewNop()),
	}
}

func (h *harness) seedVideos(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	err := h.store.Mutate(func(inv *inventory.Inventory) error {
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("vid-%d", i)
			inv.Videos[id] = &inventory.VideoRecord{
				ID:           id,
				Filename:     fmt.Sprintf("clip-%d.mp4", i),
				OriginalPath: fmt.Sprintf("/videos/clip-%d.mp4", i),
				CurrentPath:  fmt.Sprintf("/videos/clip-%d.mp4", i),
				Status:       inventory.StatusUnlinked,
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return ids
}

func TestConcurrentEnqueuesUseOneWorker(t *testing.T) {
	tr := &countingTranscriber{}
	h := newHarness(t, tr)
	ids := h.seedVideos(t, 8)

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, err := h.work.Enqueue(context.Background(), id, "12", fmt.Sprintf("Video %d", i), nil)
			if err != nil {
				t.Errorf("enqueue %s: %v", id, err)
			}
		}(i, id)
	}
	wg.Wait()
	h.work.Wait()

	if peak := tr.peak.Load(); peak != 1 {
		t.Fatalf("observed %d concurrent transcriptions, want 1", peak)
	}
	if total := tr.total.Load(); total != 8 {
		t.Fatalf("processed %d jobs, want 8", total)
	}

	jobs, err := h.queue.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, job := range jobs {
		if job.Status != queue.StatusCompleted {
			t.Fatalf("job %d status = %s, want completed", job.ID, job.Status)
		}
	}

	inv, err := h.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range inv.Videos {
		if !rec.IsLinked() {
			t.Fatalf("record %s not linked after transcription: %+v", rec.ID, rec)
		}
		if rec.MatchConfidence != 0 {
			t.Fatalf("record %s has confidence %v, want 0 for a deterministic link", rec.ID, rec.MatchConfidence)
		}
	}
}

func TestFailedJobRevertsRecord(t *testing.T) {
	tr := &countingTranscriber{err: errors.New("model file corrupted")}
	h := newHarness(t, tr)
	ids := h.seedVideos(t, 1)

	if _, err := h.work.Enqueue(context.Background(), ids[0], "12", "Broken", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	h.work.Wait()

	jobs, err := h.queue.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Status != queue.StatusFailed {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if !strings.Contains(jobs[0].ErrorMessage, "model file corrupted") {
		t.Fatalf("job error = %q", jobs[0].ErrorMessage)
	}

	inv, err := h.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	rec := inv.Videos[ids[0]]
	if rec.Status != inventory.StatusUnlinked {
		t.Fatalf("record status = %s, want unlinked for retry", rec.Status)
	}
}

func TestEnqueueRefusesVideoAlreadyInFlight(t *testing.T) {
	tr := &countingTranscriber{release: make(chan struct{})}
	h := newHarness(t, tr)
	ids := h.seedVideos(t, 1)

	if _, err := h.work.Enqueue(context.Background(), ids[0], "12", "First", nil); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	_, err := h.work.Enqueue(context.Background(), ids[0], "12", "Second", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for duplicate enqueue, got %v", err)
	}

	close(tr.release)
	h.work.Wait()
}

func TestEnqueueUnknownVideo(t *testing.T) {
	h := newHarness(t, &countingTranscriber{})
	_, err := h.work.Enqueue(context.Background(), "vid-nope", "12", "Ghost", nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestResumePendingRestartsInterruptedJobs(t *testing.T) {
	tr := &countingTranscriber{}
	h := newHarness(t, tr)
	ids := h.seedVideos(t, 1)

	// Simulate a crash: a job left in processing with no live worker.
	job, err := h.queue.Enqueue(context.Background(), queue.Job{
		VideoID:   ids[0],
		VideoPath: "/videos/clip-0.mp4",
		Category:  "12",
		Title:     "Interrupted",
	})
	if err != nil {
		t.Fatal(err)
	}
	job.Status = queue.StatusProcessing
	if err := h.queue.Update(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	if err := h.work.ResumePending(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.work.Wait()

	final, err := h.queue.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != queue.StatusCompleted {
		t.Fatalf("job status = %s, want completed", final.Status)
	}
	if final.TranscriptID == "" {
		t.Fatal("completed job has no transcript id")
	}
}

func TestEnsureRunningDefersToLockHolder(t *testing.T) {
	tr := &countingTranscriber{}
	h := newHarness(t, tr)
	ids := h.seedVideos(t, 1)

	other := flock.New(worker.LockPath(h.cfg))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock externally: locked=%v err=%v", locked, err)
	}

	job, err := h.work.Enqueue(context.Background(), ids[0], "12", "Held", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	h.work.Wait()

	got, err := h.queue.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("job status = %s, want pending while the lock is held elsewhere", got.Status)
	}
	if tr.total.Load() != 0 {
		t.Fatalf("transcriber ran %d times with the lock held elsewhere", tr.total.Load())
	}

	if err := other.Unlock(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	if !h.work.EnsureRunning() {
		t.Fatal("worker did not start once the lock was free")
	}
	h.work.Wait()

	final, err := h.queue.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != queue.StatusCompleted {
		t.Fatalf("job status = %s, want completed", final.Status)
	}
}

func TestResumePendingDefersToLockHolder(t *testing.T) {
	tr := &countingTranscriber{}
	h := newHarness(t, tr)
	ids := h.seedVideos(t, 1)

	job, err := h.queue.Enqueue(context.Background(), queue.Job{
		VideoID:   ids[0],
		VideoPath: "/videos/clip-0.mp4",
		Category:  "12",
		Title:     "Live elsewhere",
	})
	if err != nil {
		t.Fatal(err)
	}
	job.Status = queue.StatusProcessing
	if err := h.queue.Update(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	other := flock.New(worker.LockPath(h.cfg))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock externally: locked=%v err=%v", locked, err)
	}

	if err := h.work.ResumePending(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.work.Wait()

	got, err := h.queue.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != queue.StatusProcessing {
		t.Fatalf("job status = %s, a job owned by the lock holder must not be reset", got.Status)
	}

	if err := other.Unlock(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	if err := h.work.ResumePending(context.Background()); err != nil {
		t.Fatalf("resume after unlock: %v", err)
	}
	h.work.Wait()

	final, err := h.queue.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != queue.StatusCompleted {
		t.Fatalf("job status = %s, want completed", final.Status)
	}
}

// flakyQueue induces a bounded number of failures on the update that marks a
// job processing.
type flakyQueue struct {
	*queue.Store
	failures atomic.Int32
}

func (f *flakyQueue) Update(ctx context.Context, job *queue.Job) error {
	if job.Status == queue.StatusProcessing && f.failures.Add(-1) >= 0 {
		return errors.New("database is locked")
	}
	return f.Store.Update(ctx, job)
}

func TestTransientClaimFailureRecovers(t *testing.T) {
	tr := &countingTranscriber{}
	cfg := testsupport.NewConfig(t, "camera")
	cfg.Worker.PollIntervalSeconds = 0
	store := inventory.NewStore(cfg.InventoryPath())
	q, err := queue.Open(cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	fq := &flakyQueue{Store: q}
	fq.failures.Store(1)
	reg := registry.New(cfg.Paths.TranscriptsDir, cfg.Categories, logging.NewNop())
	w := worker.New(cfg, store, fq, reg, tr, logging.NewNop())

	err = store.Mutate(func(inv *inventory.Inventory) error {
		inv.Videos["vid-0"] = &inventory.VideoRecord{
			ID:           "vid-0",
			Filename:     "clip-0.mp4",
			OriginalPath: "/videos/clip-0.mp4",
			CurrentPath:  "/videos/clip-0.mp4",
			Status:       inventory.StatusUnlinked,
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	job, err := w.Enqueue(context.Background(), "vid-0", "12", "Flaky claim", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	w.Wait()

	final, err := q.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != queue.StatusCompleted {
		t.Fatalf("job status = %s, want completed after the claim retry", final.Status)
	}
	if total := tr.total.Load(); total != 1 {
		t.Fatalf("transcriber ran %d times, want 1", total)
	}
}
