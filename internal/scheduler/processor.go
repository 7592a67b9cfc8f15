package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	applog "fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

// Config holds configuration for the processor
type Config struct {
	// PollInterval is how often to check for due items (default: 5s)
	PollInterval time.Duration

	// BatchSize is the max number of items to run per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before an item is marked failed (default: 5)
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per attempt (default: 30s)
	RetryBackoff time.Duration

	// MaxBackoff caps the retry delay (default: 1h)
	MaxBackoff time.Duration

	// CleanupInterval is how often to clean up finished items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old finished items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		BatchSize:       10,
		MaxRetries:      5,
		RetryBackoff:    30 * time.Second,
		MaxBackoff:      time.Hour,
		CleanupInterval: time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// Backoff returns the delay before the retry following attempts failed
// attempts.
func (c Config) Backoff(attempts int) time.Duration {
	d := c.RetryBackoff
	for i := 0; i < attempts && i < 32; i++ {
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			break
		}
		d *= 2
	}
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

// Processor polls the work queue and hands due items to their workers.
type Processor struct {
	store   Store
	workers map[string]worker.Worker
	config  Config
	now     func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewProcessor(store Store, config Config) *Processor {
	return &Processor{
		store:   store,
		workers: make(map[string]worker.Worker),
		config:  config,
		now:     time.Now,
	}
}

// Register binds a job kind to its worker. Call before Start.
func (p *Processor) Register(kind string, w worker.Worker) {
	p.workers[kind] = w
}

// Start begins the processing loop. Returns an error if already running.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Items left running by a crash go back to pending
	if n, err := p.store.ResetStaleWork(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale work", applog.FieldError, err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Reset stale work", applog.FieldCount, n)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Scheduler started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"kinds", len(p.workers))

	return nil
}

// Stop gracefully stops the processor and waits for the current batch.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.Cleanup(ctx)
		}
	}
}

func (p *Processor) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if p.stopCh == nil {
		return false
	}
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Processor) processBatch(ctx context.Context) {
	if _, err := p.RunDue(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to run due work", applog.FieldError, err)
	}
}

// RunDue claims one batch of due items, runs them and returns how many ran.
func (p *Processor) RunDue(ctx context.Context) (int, error) {
	items, err := p.store.ClaimDueWork(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due work: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	slog.DebugContext(ctx, "Processing work batch", applog.FieldCount, len(items))

	ran := 0
	for _, item := range items {
		// Unclaimed items are returned to pending on the next start.
		if p.stopping(ctx) {
			break
		}
		p.run(ctx, item)
		ran++
	}
	return ran, nil
}

func (p *Processor) run(ctx context.Context, item storage.WorkItem) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentScheduler).
		Fields(applog.NewFields().WithWork(item.ID, item.Kind, item.UniqueName, item.Attempts))

	w, ok := p.workers[item.Kind]
	if !ok {
		p.fail(ctx, logger, item, fmt.Sprintf("no worker for kind %q", item.Kind))
		return
	}
	var in worker.Input
	if err := json.Unmarshal(item.Payload, &in); err != nil {
		p.fail(ctx, logger, item, fmt.Sprintf("decode input: %v", err))
		return
	}

	start := p.now()
	outcome := w.Do(applog.WithLogger(ctx, logger), in)
	logger = logger.With(applog.FieldOutcome, outcome.String(),
		applog.FieldDuration, p.now().Sub(start).Milliseconds())

	switch outcome {
	case worker.Success:
		if err := p.store.CompleteWork(ctx, item.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to mark work completed", applog.FieldError, err)
			return
		}
		logger.DebugContext(ctx, "Work completed")
	case worker.Retry:
		p.retry(ctx, logger, item)
	default:
		p.fail(ctx, logger, item, "worker reported failure")
	}
}

func (p *Processor) retry(ctx context.Context, logger *applog.Logger, item storage.WorkItem) {
	attempts := item.Attempts + 1
	if attempts >= p.config.MaxRetries {
		p.fail(ctx, logger, item, fmt.Sprintf("gave up after %d attempts", attempts))
		return
	}
	delay := p.config.Backoff(item.Attempts)
	if err := p.store.RetryWork(ctx, item.ID, attempts, p.now().Add(delay), "retry requested"); err != nil {
		logger.ErrorContext(ctx, "Failed to reschedule work", applog.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Work rescheduled", "retry_in", delay)
}

func (p *Processor) fail(ctx context.Context, logger *applog.Logger, item storage.WorkItem, reason string) {
	if err := p.store.FailWork(ctx, item.ID, reason); err != nil {
		logger.ErrorContext(ctx, "Failed to mark work failed", applog.FieldError, err)
		return
	}
	logger.WarnContext(ctx, "Work failed", "reason", reason)
}

// Cleanup removes finished items older than CleanupAge.
func (p *Processor) Cleanup(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupAge)
	n, err := p.store.CleanupWork(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clean up finished work", applog.FieldError, err)
		return
	}
	if n > 0 {
		slog.DebugContext(ctx, "Cleaned up finished work", applog.FieldCount, n)
	}
}

// Stats returns current queue statistics
func (p *Processor) Stats(ctx context.Context) (storage.WorkStats, error) {
	return p.store.WorkQueueStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *Processor) RetryFailed(ctx context.Context) (int, error) {
	return p.store.RetryFailedWork(ctx)
}
