package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/orchestrator"
	"github.com/shaiso/Searchlab/internal/repo"
)

// ExperimentService — операции над экспериментами (orchestrator.Service).
type ExperimentService interface {
	CreateExperiment(ctx context.Context, req orchestrator.CreateRequest) (*domain.Experiment, error)
	GetExperiment(ctx context.Context, id uuid.UUID) (*domain.Experiment, error)
	ListExperiments(ctx context.Context, filter repo.ExperimentFilter) ([]domain.Experiment, error)
	DeleteExperiment(ctx context.Context, id uuid.UUID) error
}

// ScheduleService — операции над расписаниями (scheduler.Service).
type ScheduleService interface {
	Schedule(ctx context.Context, experimentID uuid.UUID, cronExpr, timezone string) (*domain.ScheduledJob, error)
	Unschedule(ctx context.Context, jobID uuid.UUID) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.ScheduledJob, error)
	ListJobs(ctx context.Context, filter repo.JobFilter) ([]domain.ScheduledJob, error)
	History(ctx context.Context, experimentID uuid.UUID, limit, offset int) ([]domain.RunHistoryRecord, error)
}

// QuerySetStore — наборы запросов.
type QuerySetStore interface {
	Create(ctx context.Context, qs *domain.QuerySet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QuerySet, error)
}

// SearchConfigStore — конфигурации поиска.
type SearchConfigStore interface {
	Create(ctx context.Context, c *domain.SearchConfiguration) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SearchConfiguration, error)
}

// JudgmentStore — списки оценок.
type JudgmentStore interface {
	Create(ctx context.Context, j *domain.JudgmentSet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.JudgmentSet, error)
}

// EvaluationReader — результаты оценки эксперимента.
type EvaluationReader interface {
	ListByExperiment(ctx context.Context, experimentID uuid.UUID) ([]domain.EvaluationResult, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	experiments   ExperimentService
	schedules     ScheduleService
	querySets     QuerySetStore
	searchConfigs SearchConfigStore
	judgments     JudgmentStore
	evaluations   EvaluationReader
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Experiments   ExperimentService
	Schedules     ScheduleService
	QuerySets     QuerySetStore
	SearchConfigs SearchConfigStore
	Judgments     JudgmentStore
	Evaluations   EvaluationReader
	Logger        *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		experiments:   cfg.Experiments,
		schedules:     cfg.Schedules,
		querySets:     cfg.QuerySets,
		searchConfigs: cfg.SearchConfigs,
		judgments:     cfg.Judgments,
		evaluations:   cfg.Evaluations,
		logger:        logger,
	}
}
