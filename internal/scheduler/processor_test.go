package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

type scriptedWorker struct {
	mu       sync.Mutex
	outcomes []worker.Outcome
	inputs   []worker.Input
}

func (w *scriptedWorker) Do(_ context.Context, in worker.Input) worker.Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inputs = append(w.inputs, in)
	if len(w.outcomes) == 0 {
		return worker.Success
	}
	o := w.outcomes[0]
	w.outcomes = w.outcomes[1:]
	return o
}

func (w *scriptedWorker) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inputs)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestProcessor(t *testing.T, cfg Config) (*Processor, *Queue, *storage.SQLiteRepository, *testClock) {
	t.Helper()
	store := newTestStore(t)
	clock := &testClock{t: time.Now()}
	p := NewProcessor(store, cfg)
	p.now = clock.Now
	q := NewQueue(store)
	q.now = clock.Now
	return p, q, store, clock
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("expected PollInterval 5s, got %v", cfg.PollInterval)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", cfg.BatchSize)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("expected MaxRetries 5, got %d", cfg.MaxRetries)
	}
	if cfg.CleanupAge != 24*time.Hour {
		t.Errorf("expected CleanupAge 24h, got %v", cfg.CleanupAge)
	}
}

func TestBackoff(t *testing.T) {
	cfg := Config{RetryBackoff: time.Second, MaxBackoff: 10 * time.Second}
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{40, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.Backoff(tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}

	uncapped := Config{RetryBackoff: time.Second}
	if got := uncapped.Backoff(3); got != 8*time.Second {
		t.Errorf("uncapped Backoff(3) = %v", got)
	}
}

func TestRunDue_SuccessCompletes(t *testing.T) {
	ctx := context.Background()
	p, q, store, _ := newTestProcessor(t, DefaultConfig())
	w := &scriptedWorker{}
	p.Register("sync_budget", w)

	if _, err := q.Enqueue(ctx, worker.Work{Kind: "sync_budget", Input: worker.Input{UserID: "u1"}}); err != nil {
		t.Fatal(err)
	}
	n, err := p.RunDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RunDue = %d, %v", n, err)
	}
	if w.inputs[0].UserID != "u1" {
		t.Errorf("input = %+v", w.inputs[0])
	}
	stats, err := store.WorkQueueStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 || stats.Pending != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunDue_RetryBacksOffThenFails(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	cfg.RetryBackoff = time.Minute
	p, q, store, clock := newTestProcessor(t, cfg)
	w := &scriptedWorker{outcomes: []worker.Outcome{worker.Retry, worker.Retry, worker.Retry}}
	p.Register("sync_expense", w)

	if _, err := q.Enqueue(ctx, worker.Work{Kind: "sync_expense", Input: worker.Input{UserID: "u1"}}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.RunDue(ctx); err != nil {
		t.Fatal(err)
	}
	items, err := store.ListWork(ctx, storage.WorkPending)
	if err != nil || len(items) != 1 {
		t.Fatalf("pending = %v, %v", items, err)
	}
	if items[0].Attempts != 1 {
		t.Errorf("attempts = %d", items[0].Attempts)
	}
	if want := clock.Now().Add(time.Minute); !items[0].RunAt.Equal(want) {
		t.Errorf("run at = %v, want %v", items[0].RunAt, want)
	}

	// Not due yet.
	if n, _ := p.RunDue(ctx); n != 0 {
		t.Fatalf("ran %d items before backoff elapsed", n)
	}

	clock.Advance(time.Minute)
	if _, err := p.RunDue(ctx); err != nil {
		t.Fatal(err)
	}
	items, _ = store.ListWork(ctx, storage.WorkPending)
	if len(items) != 1 || items[0].Attempts != 2 {
		t.Fatalf("pending after second retry = %+v", items)
	}
	if want := clock.Now().Add(2 * time.Minute); !items[0].RunAt.Equal(want) {
		t.Errorf("second run at = %v, want %v", items[0].RunAt, want)
	}

	clock.Advance(2 * time.Minute)
	if _, err := p.RunDue(ctx); err != nil {
		t.Fatal(err)
	}
	failed, _ := store.ListWork(ctx, storage.WorkFailed)
	if len(failed) != 1 {
		t.Fatalf("expected item failed after max retries, got %+v", failed)
	}
	if w.calls() != 3 {
		t.Errorf("worker calls = %d", w.calls())
	}
}

func TestRunDue_FailureAndUnknownKind(t *testing.T) {
	ctx := context.Background()
	p, q, store, _ := newTestProcessor(t, DefaultConfig())
	p.Register("sync_income", &scriptedWorker{outcomes: []worker.Outcome{worker.Failure}})

	for _, kind := range []string{"sync_income", "mystery"} {
		if _, err := q.Enqueue(ctx, worker.Work{Kind: kind}); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := p.RunDue(ctx); err != nil || n != 2 {
		t.Fatalf("RunDue = %d, %v", n, err)
	}
	stats, _ := store.WorkQueueStats(ctx)
	if stats.Failed != 2 {
		t.Errorf("stats = %+v", stats)
	}

	n, err := p.RetryFailed(ctx)
	if err != nil || n != 2 {
		t.Fatalf("RetryFailed = %d, %v", n, err)
	}
}

func TestQueue_UniqueNameCollapsesPendingWork(t *testing.T) {
	ctx := context.Background()
	_, q, store, _ := newTestProcessor(t, DefaultConfig())

	work := worker.Work{Kind: "sync_budget", UniqueName: "sync:budget:u1", Input: worker.Input{UserID: "u1"}}
	created, err := q.Enqueue(ctx, work)
	if err != nil || !created {
		t.Fatalf("first enqueue = %v, %v", created, err)
	}
	created, err = q.Enqueue(ctx, work)
	if err != nil || created {
		t.Fatalf("second enqueue = %v, %v", created, err)
	}
	items, _ := store.ListWork(ctx, storage.WorkPending)
	if len(items) != 1 {
		t.Errorf("pending = %d", len(items))
	}
}

func TestProcessor_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	p, q, _, _ := newTestProcessor(t, cfg)
	w := &scriptedWorker{}
	p.Register("sync_user", w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	if _, err := q.Enqueue(ctx, worker.Work{Kind: "sync_user", Input: worker.Input{UserID: "u1"}}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for w.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.calls() != 1 {
		t.Errorf("worker calls = %d", w.calls())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
	if p.IsRunning() {
		t.Error("processor should be stopped")
	}
}

func TestProcessor_StopNotRunning(t *testing.T) {
	p := NewProcessor(nil, DefaultConfig())
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestStartResetsStaleWork(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour
	p, q, store, clock := newTestProcessor(t, cfg)

	if _, err := q.Enqueue(ctx, worker.Work{Kind: "sync_budget"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ClaimDueWork(ctx, clock.Now(), 10); err != nil {
		t.Fatal(err)
	}

	// Reset items are due at the wall-clock reset time.
	clock.Advance(time.Minute)
	w := &scriptedWorker{}
	p.Register("sync_budget", w)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.Start(runCtx); err != nil {
		t.Fatal(err)
	}
	defer p.Stop(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for w.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.calls() != 1 {
		t.Errorf("stale item was not rerun, calls = %d", w.calls())
	}
}

func TestQueue_RequestSync(t *testing.T) {
	ctx := context.Background()
	_, q, store, _ := newTestProcessor(t, DefaultConfig())

	for i := 0; i < 3; i++ {
		if err := q.RequestSync(ctx, core.EntityExpense, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	items, err := store.ListWork(ctx, storage.WorkPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Kind != "sync_expense" || items[0].UniqueName != "sync:expense:u1" {
		t.Fatalf("pending = %+v", items)
	}
}
