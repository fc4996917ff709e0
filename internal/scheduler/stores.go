package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/orchestrator"
	"github.com/shaiso/Searchlab/internal/repo"
)

// Зависимости scheduler. Реализации: internal/repo, internal/orchestrator, internal/mq.

// ExperimentStore — эксперименты, нужные планировщику.
type ExperimentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error)
	SetScheduled(ctx context.Context, id uuid.UUID, scheduled bool) error
}

// JobStore — хранилище расписаний.
type JobStore interface {
	Create(ctx context.Context, job *domain.ScheduledJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledJob, error)
	List(ctx context.Context, filter repo.JobFilter) ([]domain.ScheduledJob, error)
	ListEnabled(ctx context.Context) ([]domain.ScheduledJob, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	RecordRun(ctx context.Context, id uuid.UUID, at time.Time) error
}

// HistoryStore — история запусков.
type HistoryStore interface {
	Create(ctx context.Context, h *domain.RunHistoryRecord) error
	ListByExperiment(ctx context.Context, experimentID uuid.UUID, limit, offset int) ([]domain.RunHistoryRecord, error)
}

// ExperimentRunner выполняет эксперимент (orchestrator.Runner).
type ExperimentRunner interface {
	Run(ctx context.Context, exp *domain.Experiment, token *async.Token) (*orchestrator.Outcome, error)
}

// ScheduleNotifier оповещает scheduler-инстансы об изменении расписаний.
type ScheduleNotifier interface {
	PublishScheduleChanged(ctx context.Context, payload mq.ScheduleChangedPayload) error
}
