package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
)

type coordinatorFixture struct {
	exp         *domain.Experiment
	experiments *fakeExperiments
	jobs        *fakeJobs
	history     *fakeHistory
	runner      *fakeRunner
	params      JobParams
}

func newCoordinatorFixture() *coordinatorFixture {
	exp := domain.NewExperiment(domain.ExperimentTypePairwise, uuid.New(), []uuid.UUID{uuid.New(), uuid.New()}, nil, 10)
	job := domain.NewScheduledJob(exp.ID, "0 * * * *", "UTC")
	return &coordinatorFixture{
		exp:         exp,
		experiments: newFakeExperiments(exp),
		jobs:        newFakeJobs(job),
		history:     &fakeHistory{},
		runner:      &fakeRunner{},
		params:      JobParams{JobID: job.ID, ExperimentID: exp.ID},
	}
}

func (f *coordinatorFixture) coordinator() *Coordinator {
	return NewCoordinator(CoordinatorConfig{
		Experiments: f.experiments,
		Jobs:        f.jobs,
		History:     f.history,
		Runner:      f.runner,
		Logger:      testLogger(),
	})
}

// --- Coordinator Tests ---

func TestCoordinator_Run_Completed(t *testing.T) {
	f := newCoordinatorFixture()
	latch := async.NewLatch(1)

	rec := f.coordinator().Run(context.Background(), f.params, async.NewToken(f.params.JobID), latch)

	if rec.Status != domain.ExperimentStatusCompleted {
		t.Errorf("expected COMPLETED, got %s (%s)", rec.Status, rec.Error)
	}
	if len(rec.Results) != 1 {
		t.Errorf("expected runner results in history, got %d", len(rec.Results))
	}
	if latch.Count() != 0 {
		t.Error("latch should be counted down")
	}
	if len(f.history.records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(f.history.records))
	}
	if len(f.jobs.runs) != 1 || f.jobs.runs[0] != f.params.JobID {
		t.Errorf("job last run should be recorded, got %v", f.jobs.runs)
	}
}

func TestCoordinator_Run_RunnerError(t *testing.T) {
	f := newCoordinatorFixture()
	f.runner.err = errBackend
	latch := async.NewLatch(1)

	rec := f.coordinator().Run(context.Background(), f.params, async.NewToken(f.params.JobID), latch)

	if rec.Status != domain.ExperimentStatusError {
		t.Errorf("expected ERROR, got %s", rec.Status)
	}
	if rec.Error != errBackend.Error() {
		t.Errorf("unexpected error text %q", rec.Error)
	}
	if len(f.history.records) != 1 {
		t.Errorf("expected 1 history record, got %d", len(f.history.records))
	}
	if latch.Count() != 0 {
		t.Error("latch should be counted down")
	}
}

func TestCoordinator_Run_ExperimentNotFound(t *testing.T) {
	f := newCoordinatorFixture()
	delete(f.experiments.items, f.exp.ID)
	latch := async.NewLatch(1)

	rec := f.coordinator().Run(context.Background(), f.params, async.NewToken(f.params.JobID), latch)

	if rec.Status != domain.ExperimentStatusError {
		t.Errorf("expected ERROR, got %s", rec.Status)
	}
	if f.runner.calls.Load() != 0 {
		t.Error("runner should not be called")
	}
	if len(f.jobs.disabled) != 1 || f.jobs.disabled[0] != f.params.JobID {
		t.Errorf("orphaned job should be disabled, got %v", f.jobs.disabled)
	}
	if len(f.history.records) != 1 {
		t.Errorf("expected 1 history record, got %d", len(f.history.records))
	}
	if latch.Count() != 0 {
		t.Error("latch should be counted down")
	}
}

func TestCoordinator_Run_LoadError(t *testing.T) {
	f := newCoordinatorFixture()
	f.experiments.getErr = errBackend

	rec := f.coordinator().Run(context.Background(), f.params, async.NewToken(f.params.JobID), async.NewLatch(1))

	if rec.Status != domain.ExperimentStatusError {
		t.Errorf("expected ERROR, got %s", rec.Status)
	}
	if len(f.jobs.disabled) != 0 {
		t.Error("job should stay enabled on transient errors")
	}
}

func TestCoordinator_Run_CancelledBeforeStart(t *testing.T) {
	f := newCoordinatorFixture()
	token := async.NewToken(f.params.JobID)
	token.Cancel()
	latch := async.NewLatch(1)

	rec := f.coordinator().Run(context.Background(), f.params, token, latch)

	if rec.Error != errCancelledBeforeStart {
		t.Errorf("expected %q, got %q", errCancelledBeforeStart, rec.Error)
	}
	if f.runner.calls.Load() != 0 {
		t.Error("runner should not be called")
	}
	if len(f.history.records) != 1 {
		t.Errorf("expected 1 history record, got %d", len(f.history.records))
	}
	if latch.Count() != 0 {
		t.Error("latch should be counted down")
	}
}

func TestCoordinator_Run_ExperimentDeletedDuringRun(t *testing.T) {
	f := newCoordinatorFixture()
	f.runner.during = func(exp *domain.Experiment) {
		f.experiments.mu.Lock()
		delete(f.experiments.items, exp.ID)
		f.experiments.mu.Unlock()
	}
	latch := async.NewLatch(1)

	rec := f.coordinator().Run(context.Background(), f.params, async.NewToken(f.params.JobID), latch)

	if rec.Status != domain.ExperimentStatusCompleted {
		t.Errorf("expected COMPLETED outcome, got %s", rec.Status)
	}
	if len(f.history.records) != 0 {
		t.Errorf("history must not outlive deleted experiment, got %d records", len(f.history.records))
	}
	if len(f.jobs.runs) != 0 {
		t.Errorf("job last run should not be recorded, got %v", f.jobs.runs)
	}
	if latch.Count() != 0 {
		t.Error("latch should be counted down")
	}
}
