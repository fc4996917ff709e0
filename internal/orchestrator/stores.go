package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/search"
)

// Зависимости оркестратора. Реализации: internal/repo, internal/search, internal/mq.

// ExperimentStore — хранилище экспериментов.
type ExperimentStore interface {
	Create(ctx context.Context, e *domain.Experiment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error)
	Update(ctx context.Context, e *domain.Experiment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// QuerySetReader читает наборы запросов.
type QuerySetReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QuerySet, error)
}

// SearchConfigReader читает конфигурации поиска.
type SearchConfigReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SearchConfiguration, error)
}

// JudgmentReader читает списки оценок.
type JudgmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.JudgmentSet, error)
}

// EvaluationStore — хранилище результатов оценки.
type EvaluationStore interface {
	Create(ctx context.Context, e *domain.EvaluationResult) error
	DeleteByExperimentID(ctx context.Context, experimentID uuid.UUID) (int64, error)
}

// VariantStore — хранилище вариантов гибридного поиска.
type VariantStore interface {
	CreateBatch(ctx context.Context, variants []domain.ExperimentVariant) error
	ListByExperiment(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentVariant, error)
	DeleteByExperimentID(ctx context.Context, experimentID uuid.UUID) (int64, error)
}

// JobDeleter удаляет расписание эксперимента.
type JobDeleter interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

// HistoryDeleter удаляет историю запусков эксперимента.
type HistoryDeleter interface {
	DeleteByExperimentID(ctx context.Context, experimentID uuid.UUID) (int64, error)
}

// Searcher выполняет поисковые запросы.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Hit, error)
}

// EventPublisher публикует события экспериментов.
type EventPublisher interface {
	PublishExperimentFinished(ctx context.Context, payload mq.ExperimentFinishedPayload) error
}

// ScheduleNotifier оповещает scheduler-инстансы об удалении расписания.
type ScheduleNotifier interface {
	PublishScheduleChanged(ctx context.Context, payload mq.ScheduleChangedPayload) error
}
