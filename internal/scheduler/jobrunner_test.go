package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/lock"
	"github.com/shaiso/Searchlab/internal/settings"
)

type jobRunnerFixture struct {
	locks       *fakeLocks
	coordinator *fakeCoordinator
	cleanups    atomic.Int32
	params      JobParams
}

func newJobRunnerFixture() *jobRunnerFixture {
	id := uuid.New()
	return &jobRunnerFixture{
		locks:       &fakeLocks{},
		coordinator: &fakeCoordinator{fn: completedRun},
		params:      JobParams{JobID: id, ExperimentID: id},
	}
}

func (f *jobRunnerFixture) runner(store *settings.Store) *JobRunner {
	if store == nil {
		store = testSettings(nil)
	}
	return NewJobRunner(JobRunnerConfig{
		Locks:       f.locks,
		Coordinator: f.coordinator,
		Settings:    store,
		OnCleanup:   func(JobParams) { f.cleanups.Add(1) },
		Logger:      testLogger(),
	})
}

// --- JobRunner Tests ---

func TestJobRunner_RunJob_Completed(t *testing.T) {
	f := newJobRunnerFixture()
	r := f.runner(nil)

	if err := r.RunJob(context.Background(), f.params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.coordinator.calls.Load(); got != 1 {
		t.Errorf("expected 1 coordinator call, got %d", got)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("expected cleanup once, got %d", got)
	}
	if got := f.locks.released.Load(); got != 1 {
		t.Errorf("expected lock released once, got %d", got)
	}
	if len(r.Active()) != 0 {
		t.Error("no runs should stay active")
	}
}

func TestJobRunner_RunJob_CoordinatorPanics(t *testing.T) {
	f := newJobRunnerFixture()
	f.coordinator.fn = func(_ context.Context, _ JobParams, _ *async.Token, latch *async.Latch) *domain.RunHistoryRecord {
		defer latch.CountDown()
		panic("boom")
	}
	r := f.runner(nil)

	err := r.RunJob(context.Background(), f.params)
	if !errors.Is(err, async.ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("expected cleanup once, got %d", got)
	}
	if got := f.locks.released.Load(); got != 1 {
		t.Errorf("expected lock released once, got %d", got)
	}
	if len(r.Active()) != 0 {
		t.Error("no runs should stay active")
	}
}

func TestJobRunner_RunJob_AcquirePanics(t *testing.T) {
	f := newJobRunnerFixture()
	f.locks.acquirePanic = true
	r := f.runner(nil)

	err := r.RunJob(context.Background(), f.params)
	if !errors.Is(err, async.ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("expected cleanup once, got %d", got)
	}
	if got := f.locks.released.Load(); got != 0 {
		t.Errorf("no lock was held, got %d releases", got)
	}
}

func TestJobRunner_RunJob_LockHeldElsewhere(t *testing.T) {
	f := newJobRunnerFixture()
	f.locks.acquireErr = lock.ErrNotAcquired
	r := f.runner(nil)

	if err := r.RunJob(context.Background(), f.params); err != nil {
		t.Fatalf("lock contention should not be an error, got %v", err)
	}
	if got := f.coordinator.calls.Load(); got != 0 {
		t.Errorf("coordinator should not run, got %d calls", got)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("expected cleanup once, got %d", got)
	}
	if got := f.locks.released.Load(); got != 0 {
		t.Errorf("no lock was held, got %d releases", got)
	}
}

func TestJobRunner_RunJob_LockError(t *testing.T) {
	f := newJobRunnerFixture()
	f.locks.acquireErr = errBackend
	r := f.runner(nil)

	err := r.RunJob(context.Background(), f.params)
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("expected cleanup once, got %d", got)
	}
	if got := f.locks.released.Load(); got != 0 {
		t.Errorf("no lock was held, got %d releases", got)
	}
}

func TestJobRunner_RunJob_Timeout(t *testing.T) {
	f := newJobRunnerFixture()
	f.coordinator.fn = func(_ context.Context, params JobParams, token *async.Token, latch *async.Latch) *domain.RunHistoryRecord {
		defer latch.CountDown()
		<-token.Done()
		rec := domain.NewRunHistoryRecord(params.JobID, params.ExperimentID, time.Now())
		rec.Fail("cancelled", nil)
		return rec
	}
	store := testSettings(func(s *settings.Settings) {
		s.Scheduler.Timeout = 50 * time.Millisecond
	})
	r := f.runner(store)

	err := r.RunJob(context.Background(), f.params)
	if !errors.Is(err, async.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("expected cleanup once, got %d", got)
	}
	if got := f.locks.released.Load(); got != 1 {
		t.Errorf("expected lock released once, got %d", got)
	}
}

func TestJobRunner_Cancel(t *testing.T) {
	f := newJobRunnerFixture()
	started := make(chan struct{})
	f.coordinator.fn = func(_ context.Context, params JobParams, token *async.Token, latch *async.Latch) *domain.RunHistoryRecord {
		defer latch.CountDown()
		close(started)
		<-token.Done()
		rec := domain.NewRunHistoryRecord(params.JobID, params.ExperimentID, time.Now())
		rec.Fail("cancelled", nil)
		return rec
	}
	r := f.runner(nil)

	done := make(chan error, 1)
	go func() { done <- r.RunJob(context.Background(), f.params) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}

	if active := r.Active(); len(active) != 1 || active[0] != f.params.JobID {
		t.Fatalf("expected job to be active, got %v", active)
	}
	if !r.Cancel(f.params.JobID) {
		t.Fatal("Cancel should find the running job")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancelled run should record history, not fail: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after cancel")
	}

	if r.Cancel(f.params.JobID) {
		t.Error("Cancel should report false once the run is gone")
	}
	if got := f.locks.released.Load(); got != 1 {
		t.Errorf("expected lock released once, got %d", got)
	}
}

func TestJobRunner_RunJob_LockErrorKeepsOtherRun(t *testing.T) {
	f := newJobRunnerFixture()
	f.locks.acquireErr = errBackend
	r := f.runner(nil)

	other := &activeRun{token: async.NewToken(f.params.JobID), latch: async.NewLatch(1)}
	if !r.register(f.params.JobID, other) {
		t.Fatal("register should succeed on empty registry")
	}

	if err := r.RunJob(context.Background(), f.params); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("expected cleanup once, got %d", got)
	}
	if active := r.Active(); len(active) != 1 || active[0] != f.params.JobID {
		t.Errorf("entry of the other run must survive cleanup, got %v", active)
	}
}

func TestJobRunner_RunJob_DuplicateKeepsActiveRun(t *testing.T) {
	f := newJobRunnerFixture()
	started := make(chan struct{})
	f.coordinator.fn = func(_ context.Context, params JobParams, token *async.Token, latch *async.Latch) *domain.RunHistoryRecord {
		defer latch.CountDown()
		close(started)
		<-token.Done()
		rec := domain.NewRunHistoryRecord(params.JobID, params.ExperimentID, time.Now())
		rec.Fail("cancelled", nil)
		return rec
	}
	r := f.runner(nil)

	done := make(chan error, 1)
	go func() { done <- r.RunJob(context.Background(), f.params) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}

	if err := r.RunJob(context.Background(), f.params); !errors.Is(err, ErrJobAlreadyRunning) {
		t.Fatalf("expected ErrJobAlreadyRunning, got %v", err)
	}
	if got := f.cleanups.Load(); got != 1 {
		t.Errorf("duplicate run should clean up once, got %d", got)
	}
	if !r.Cancel(f.params.JobID) {
		t.Fatal("first run must stay registered after duplicate cleanup")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after cancel")
	}
	if got := f.cleanups.Load(); got != 2 {
		t.Errorf("expected one cleanup per RunJob call, got %d", got)
	}
	if len(r.Active()) != 0 {
		t.Error("no runs should stay active")
	}
}
