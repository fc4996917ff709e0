package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/lock"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/orchestrator"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/settings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings(mutate func(*settings.Settings)) *settings.Store {
	cfg := settings.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return settings.NewStore(cfg, "", testLogger())
}

// --- Fakes ---

type fakeLock struct{ jobID uuid.UUID }

func (l *fakeLock) JobID() uuid.UUID { return l.jobID }

type fakeLocks struct {
	acquireErr   error
	acquirePanic bool
	acquired     atomic.Int32
	released     atomic.Int32
}

func (f *fakeLocks) Acquire(_ context.Context, jobID uuid.UUID) (lock.Lock, error) {
	if f.acquirePanic {
		panic("lock backend exploded")
	}
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired.Add(1)
	return &fakeLock{jobID: jobID}, nil
}

func (f *fakeLocks) Release(_ context.Context, _ lock.Lock) error {
	f.released.Add(1)
	return nil
}

type fakeCoordinator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, params JobParams, token *async.Token, latch *async.Latch) *domain.RunHistoryRecord
}

func (f *fakeCoordinator) Run(ctx context.Context, params JobParams, token *async.Token, latch *async.Latch) *domain.RunHistoryRecord {
	f.calls.Add(1)
	return f.fn(ctx, params, token, latch)
}

func completedRun(_ context.Context, params JobParams, _ *async.Token, latch *async.Latch) *domain.RunHistoryRecord {
	defer latch.CountDown()
	rec := domain.NewRunHistoryRecord(params.JobID, params.ExperimentID, time.Now())
	rec.Complete(nil)
	return rec
}

type fakeExperiments struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*domain.Experiment
	getErr    error
	scheduled map[uuid.UUID]bool
}

func newFakeExperiments(exps ...*domain.Experiment) *fakeExperiments {
	f := &fakeExperiments{
		items:     make(map[uuid.UUID]*domain.Experiment),
		scheduled: make(map[uuid.UUID]bool),
	}
	for _, e := range exps {
		f.items[e.ID] = e
	}
	return f
}

func (f *fakeExperiments) GetByID(_ context.Context, id uuid.UUID) (*domain.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return e, nil
}

func (f *fakeExperiments) SetScheduled(_ context.Context, id uuid.UUID, scheduled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repo.ErrNotFound
	}
	f.scheduled[id] = scheduled
	return nil
}

type fakeJobs struct {
	mu       sync.Mutex
	items    map[uuid.UUID]domain.ScheduledJob
	disabled []uuid.UUID
	runs     []uuid.UUID
	listErr  error
}

func newFakeJobs(jobs ...*domain.ScheduledJob) *fakeJobs {
	f := &fakeJobs{items: make(map[uuid.UUID]domain.ScheduledJob)}
	for _, j := range jobs {
		f.items[j.ID] = *j
	}
	return f
}

func (f *fakeJobs) Create(_ context.Context, job *domain.ScheduledJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[job.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.items[job.ID] = *job
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID) (*domain.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &j, nil
}

func (f *fakeJobs) List(_ context.Context, _ repo.JobFilter) ([]domain.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ScheduledJob, 0, len(f.items))
	for _, j := range f.items {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobs) ListEnabled(_ context.Context) ([]domain.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.ScheduledJob
	for _, j := range f.items {
		if j.Enabled {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeJobs) SetEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	j.Enabled = enabled
	f.items[id] = j
	if !enabled {
		f.disabled = append(f.disabled, id)
	}
	return nil
}

func (f *fakeJobs) RecordRun(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, id)
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.RunHistoryRecord
}

func (f *fakeHistory) Create(_ context.Context, h *domain.RunHistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *h)
	return nil
}

func (f *fakeHistory) ListByExperiment(_ context.Context, experimentID uuid.UUID, _, _ int) ([]domain.RunHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RunHistoryRecord
	for _, r := range f.records {
		if r.ExperimentID == experimentID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeRunner struct {
	calls atomic.Int32
	err   error

	// during вызывается внутри Run, до возврата результата.
	during func(exp *domain.Experiment)
}

func (f *fakeRunner) Run(_ context.Context, exp *domain.Experiment, _ *async.Token) (*orchestrator.Outcome, error) {
	f.calls.Add(1)
	if f.during != nil {
		f.during(exp)
	}
	results := []domain.ExperimentResult{{QueryText: "laptop"}}
	if f.err != nil {
		return &orchestrator.Outcome{Status: domain.ExperimentStatusError, Results: results, Error: f.err.Error()}, f.err
	}
	return &orchestrator.Outcome{Status: domain.ExperimentStatusCompleted, Results: results}, nil
}

type fakeExecutor struct {
	mu        sync.Mutex
	runs      []JobParams
	cancelled []uuid.UUID
}

func (f *fakeExecutor) RunJob(_ context.Context, params JobParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, params)
	return nil
}

func (f *fakeExecutor) Cancel(jobID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return true
}

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []mq.ScheduleChangedPayload
}

func (f *fakeNotifier) PublishScheduleChanged(_ context.Context, p mq.ScheduleChangedPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

var errBackend = errors.New("backend unavailable")
