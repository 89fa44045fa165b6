// Package scheduler runs background index maintenance: a one-shot
// full catch-up at startup plus a recurring incremental tick. The two
// never overlap; a mutual-exclusion flag serializes them. Overlap is
// only wasted work, not corruption (batch commits are atomic), but
// there is no reason to scan the same rows twice.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is how often the incremental tick fires.
const DefaultInterval = 30 * time.Second

// defaultTickBatchSize bounds one incremental tick's work.
const defaultTickBatchSize = 1000

// Indexer is the indexing surface the scheduler drives.
type Indexer interface {
	BuildIndex(ctx context.Context) (int64, error)
	NeedsUpdate(ctx context.Context) (bool, error)
	IndexBatch(ctx context.Context, batchSize int) (int, error)
}

// Status describes the scheduler's current state.
type Status struct {
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Interval  string    `json:"interval"`
}

// Scheduler drives the background indexing loops.
type Scheduler struct {
	cron      *cron.Cron
	ix        Indexer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	mu      sync.Mutex
	busy    bool // an indexing run is in flight
	stopped bool
	lastRun time.Time
	lastErr error

	ctx    context.Context    // cancelled on Stop
	cancel context.CancelFunc // cancels ctx
	wg     sync.WaitGroup     // tracks in-flight indexing runs
}

// New creates a Scheduler driving the given indexer.
func New(ix Indexer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(),
		ix:        ix,
		interval:  DefaultInterval,
		batchSize: defaultTickBatchSize,
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// WithInterval overrides the incremental tick interval.
func (s *Scheduler) WithInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithBatchSize overrides the per-tick batch size.
func (s *Scheduler) WithBatchSize(n int) *Scheduler {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithLogger sets the logger for the scheduler.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// Start kicks off the initial full catch-up in the background and
// begins the incremental tick. It does not wait for catch-up: the
// serving path answers from whatever the index contains so far.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every "+s.interval.String(), s.tick); err != nil {
		return err
	}

	if s.acquire() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release()
			s.runCatchUp()
		}()
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop stops the tick, cancels any in-flight run, and returns a
// context that is done when all work has drained.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-done
		cancel()
	}()
	return ctx
}

// Status reports whether a run is in flight and the outcome of the
// last one.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:  s.busy,
		LastRun:  s.lastRun,
		Interval: s.interval.String(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// acquire claims the single indexing slot. Returns false when a run
// is already in flight or the scheduler is stopped.
func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.stopped {
		return false
	}
	s.busy = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// runCatchUp performs the startup full catch-up.
func (s *Scheduler) runCatchUp() {
	start := time.Now()
	total, err := s.ix.BuildIndex(s.ctx)
	s.record(err)
	if err != nil {
		s.logger.Error("initial index catch-up failed",
			"rows_considered", total,
			"duration", time.Since(start),
			"error", err)
		return
	}
	s.logger.Info("initial index catch-up complete",
		"rows_considered", total,
		"duration", time.Since(start))
}

// tick runs one incremental indexing step if the source has grown.
// Errors are logged and retried on the next tick, never fatal.
func (s *Scheduler) tick() {
	if !s.acquire() {
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.release()

	needed, err := s.ix.NeedsUpdate(s.ctx)
	if err != nil {
		s.record(err)
		s.logger.Error("index update check failed", "error", err)
		return
	}
	if !needed {
		s.record(nil)
		return
	}

	n, err := s.ix.IndexBatch(s.ctx, s.batchSize)
	s.record(err)
	if err != nil {
		s.logger.Error("incremental index batch failed", "error", err)
		return
	}
	s.logger.Debug("incremental index batch complete", "rows_considered", n)
}

func (s *Scheduler) record(err error) {
	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.lastRun = time.Now()
	}
	s.mu.Unlock()
}
