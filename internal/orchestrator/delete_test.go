package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/repo"
)

// --- Deleter Tests ---

type deleteFixture struct {
	experiments *fakeExperiments
	evaluations *fakeEvaluations
	variants    *fakeVariants
	jobs        *fakeJobs
	history     *fakeHistory
	notifier    *fakeNotifier
}

func newDeleteFixture() *deleteFixture {
	return &deleteFixture{
		experiments: newFakeExperiments(),
		evaluations: &fakeEvaluations{},
		variants:    &fakeVariants{},
		jobs:        &fakeJobs{},
		history:     &fakeHistory{},
		notifier:    &fakeNotifier{},
	}
}

func (f *deleteFixture) deleter() *Deleter {
	return NewDeleter(DeleterConfig{
		Experiments: f.experiments,
		Evaluations: f.evaluations,
		Variants:    f.variants,
		Jobs:        f.jobs,
		History:     f.history,
		Notifier:    f.notifier,
		Logger:      testLogger(),
	})
}

func (f *deleteFixture) cascadeCalls() int32 {
	return f.evaluations.deleteCalls.Load() + f.variants.deleteCalls.Load() +
		f.jobs.deleteCalls.Load() + f.history.deleteCalls.Load()
}

func TestDeleter_Delete(t *testing.T) {
	f := newDeleteFixture()
	exp := domain.NewExperiment(domain.ExperimentTypePairwise, uuid.New(), nil, nil, 0)
	_ = f.experiments.Create(context.Background(), exp)

	if err := f.deleter().Delete(context.Background(), exp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.experiments.get(exp.ID); ok {
		t.Error("experiment should be deleted")
	}
	if got := f.cascadeCalls(); got != 4 {
		t.Errorf("expected 4 cascade calls, got %d", got)
	}

	if len(f.notifier.payloads) != 1 {
		t.Fatalf("expected schedule removal event, got %d", len(f.notifier.payloads))
	}
	if p := f.notifier.payloads[0]; p.JobID != exp.ID || p.Action != mq.ScheduleActionRemoved {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestDeleter_Delete_CascadeFailureIsNotSurfaced(t *testing.T) {
	f := newDeleteFixture()
	boom := errors.New("connection reset")
	f.evaluations.deleteErr = boom
	f.variants.deleteErr = boom
	f.jobs.deleteErr = boom
	f.history.deleteErr = boom

	exp := domain.NewExperiment(domain.ExperimentTypePairwise, uuid.New(), nil, nil, 0)
	_ = f.experiments.Create(context.Background(), exp)

	if err := f.deleter().Delete(context.Background(), exp.ID); err != nil {
		t.Fatalf("delete should ack despite cascade failures, got %v", err)
	}
	if got := f.cascadeCalls(); got != 4 {
		t.Errorf("every cascade target should be attempted, got %d", got)
	}
	if len(f.notifier.payloads) != 0 {
		t.Error("no removal event when the job delete failed")
	}
}

func TestDeleter_Delete_NoScheduledJob(t *testing.T) {
	f := newDeleteFixture()
	f.jobs.deleteErr = repo.ErrNotFound

	exp := domain.NewExperiment(domain.ExperimentTypePairwise, uuid.New(), nil, nil, 0)
	_ = f.experiments.Create(context.Background(), exp)

	if err := f.deleter().Delete(context.Background(), exp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.notifier.payloads) != 0 {
		t.Error("no removal event without a job")
	}
}

func TestDeleter_Delete_NotFound(t *testing.T) {
	f := newDeleteFixture()

	err := f.deleter().Delete(context.Background(), uuid.New())
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := f.cascadeCalls(); got != 0 {
		t.Errorf("cascade should not run when the experiment is missing, got %d", got)
	}
}

func TestDeleter_Delete_PrimaryFailure(t *testing.T) {
	f := newDeleteFixture()
	f.experiments.deleteErr = errors.New("db down")

	err := f.deleter().Delete(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := f.cascadeCalls(); got != 0 {
		t.Errorf("cascade should not run, got %d", got)
	}
}
