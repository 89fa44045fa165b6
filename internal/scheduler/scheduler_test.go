package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeIndexer counts calls and can block to simulate a long catch-up.
type fakeIndexer struct {
	builds    atomic.Int64
	checks    atomic.Int64
	batches   atomic.Int64
	needsWork atomic.Bool
	buildGate chan struct{} // when non-nil, BuildIndex blocks until closed
	batchErr  error
}

func (f *fakeIndexer) BuildIndex(ctx context.Context) (int64, error) {
	f.builds.Add(1)
	if f.buildGate != nil {
		select {
		case <-f.buildGate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 0, nil
}

func (f *fakeIndexer) NeedsUpdate(ctx context.Context) (bool, error) {
	f.checks.Add(1)
	return f.needsWork.Load(), nil
}

func (f *fakeIndexer) IndexBatch(ctx context.Context, batchSize int) (int, error) {
	f.batches.Add(1)
	if f.batchErr != nil {
		return 0, f.batchErr
	}
	return batchSize, nil
}

func TestNew(t *testing.T) {
	s := New(&fakeIndexer{})
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cron == nil {
		t.Error("cron is nil")
	}
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
}

func TestTick_SkipsWhenCaughtUp(t *testing.T) {
	fake := &fakeIndexer{}
	s := New(fake)

	s.tick()

	if got := fake.checks.Load(); got != 1 {
		t.Errorf("NeedsUpdate calls = %d, want 1", got)
	}
	if got := fake.batches.Load(); got != 0 {
		t.Errorf("IndexBatch calls = %d, want 0 when caught up", got)
	}
}

func TestTick_IndexesWhenBehind(t *testing.T) {
	fake := &fakeIndexer{}
	fake.needsWork.Store(true)
	s := New(fake).WithBatchSize(42)

	s.tick()

	if got := fake.batches.Load(); got != 1 {
		t.Errorf("IndexBatch calls = %d, want 1", got)
	}
}

func TestTick_ErrorRecordedNotFatal(t *testing.T) {
	fake := &fakeIndexer{batchErr: errors.New("db locked")}
	fake.needsWork.Store(true)
	s := New(fake)

	s.tick()

	st := s.Status()
	if st.LastError == "" {
		t.Error("Status().LastError empty after failed batch")
	}
	if st.Running {
		t.Error("Status().Running = true after tick returned")
	}

	// The next tick retries.
	fake.batchErr = nil
	s.tick()
	if st := s.Status(); st.LastError != "" {
		t.Errorf("LastError after successful retry = %q, want empty", st.LastError)
	}
}

func TestTick_MutualExclusionWithCatchUp(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeIndexer{buildGate: gate}
	fake.needsWork.Store(true)
	s := New(fake)

	// Simulate the startup catch-up holding the indexing slot.
	if !s.acquire() {
		t.Fatal("could not acquire idle slot")
	}

	// A tick during catch-up must do nothing.
	s.tick()
	if got := fake.checks.Load(); got != 0 {
		t.Errorf("NeedsUpdate calls during catch-up = %d, want 0", got)
	}

	s.release()
	close(gate)

	s.tick()
	if got := fake.batches.Load(); got != 1 {
		t.Errorf("IndexBatch calls after catch-up released = %d, want 1", got)
	}
}

func TestStart_RunsCatchUp(t *testing.T) {
	fake := &fakeIndexer{}
	s := New(fake).WithInterval(time.Hour) // keep the cron tick out of the way

	if err := s.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	// Catch-up runs in the background; wait for it.
	deadline := time.After(2 * time.Second)
	for fake.builds.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("BuildIndex was never invoked")
		case <-time.After(10 * time.Millisecond):
		}
	}

	<-s.Stop().Done()
}

func TestStop_CancelsInFlightWork(t *testing.T) {
	gate := make(chan struct{}) // never closed: BuildIndex blocks on ctx
	fake := &fakeIndexer{buildGate: gate}
	s := New(fake).WithInterval(time.Hour)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for fake.builds.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("BuildIndex was never invoked")
		case <-time.After(10 * time.Millisecond):
		}
	}

	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not drain within 5s")
	}
}

func TestTick_AfterStopIsNoOp(t *testing.T) {
	fake := &fakeIndexer{}
	fake.needsWork.Store(true)
	s := New(fake)

	<-s.Stop().Done()
	s.tick()

	if got := fake.checks.Load(); got != 0 {
		t.Errorf("NeedsUpdate calls after Stop = %d, want 0", got)
	}
}
