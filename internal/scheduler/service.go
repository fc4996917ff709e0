package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/repo"
)

// Service — операции над расписаниями экспериментов.
type Service struct {
	validator   *Validator
	experiments ExperimentStore
	jobs        JobStore
	history     HistoryStore
	notifier    ScheduleNotifier
	logger      *slog.Logger
}

// ServiceConfig — конфигурация Service.
type ServiceConfig struct {
	Validator   *Validator
	Experiments ExperimentStore
	Jobs        JobStore
	History     HistoryStore

	// Notifier — опционально, nil отключает события schedule.changed.
	Notifier ScheduleNotifier

	Logger *slog.Logger
}

// NewService создаёт Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := cfg.Validator
	if validator == nil {
		validator = NewValidator(nil)
	}
	return &Service{
		validator:   validator,
		experiments: cfg.Experiments,
		jobs:        cfg.Jobs,
		history:     cfg.History,
		notifier:    cfg.Notifier,
		logger:      logger,
	}
}

// Schedule создаёт расписание для эксперимента.
//
// Ошибки:
//   - ErrInvalidSchedule, ErrIntervalTooShort — выражение не прошло проверку
//   - repo.ErrNotFound — эксперимента нет
//   - repo.ErrAlreadyExists — эксперимент уже запланирован
func (s *Service) Schedule(ctx context.Context, experimentID uuid.UUID, cronExpr, timezone string) (*domain.ScheduledJob, error) {
	if err := s.validator.Validate(cronExpr, timezone); err != nil {
		return nil, err
	}

	if _, err := s.experiments.GetByID(ctx, experimentID); err != nil {
		return nil, fmt.Errorf("get experiment %s: %w", experimentID, err)
	}

	job := domain.NewScheduledJob(experimentID, cronExpr, timezone)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.experiments.SetScheduled(ctx, experimentID, true); err != nil {
		// Без флага на эксперименте job не нужен.
		if delErr := s.jobs.Delete(context.WithoutCancel(ctx), job.ID); delErr != nil {
			s.logger.Error("failed to roll back job", "job_id", job.ID, "error", delErr)
		}
		return nil, fmt.Errorf("mark experiment scheduled: %w", err)
	}

	s.logger.Info("experiment scheduled",
		"job_id", job.ID,
		"cron_expr", job.CronExpr,
		"timezone", job.Timezone,
	)
	s.notify(ctx, job.ID, mq.ScheduleActionCreated)
	return job, nil
}

// Unschedule удаляет расписание. Выполняющийся запуск отменяется
// scheduler-инстансом, получившим событие schedule.changed.
func (s *Service) Unschedule(ctx context.Context, jobID uuid.UUID) error {
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}

	if err := s.experiments.SetScheduled(ctx, jobID, false); err != nil && !errors.Is(err, repo.ErrNotFound) {
		s.logger.Warn("failed to clear scheduled flag", "experiment_id", jobID, "error", err)
	}

	s.logger.Info("experiment unscheduled", "job_id", jobID)
	s.notify(ctx, jobID, mq.ScheduleActionRemoved)
	return nil
}

// GetJob возвращает расписание по ID.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.ScheduledJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListJobs возвращает расписания по фильтру.
func (s *Service) ListJobs(ctx context.Context, filter repo.JobFilter) ([]domain.ScheduledJob, error) {
	return s.jobs.List(ctx, filter)
}

// History возвращает историю запусков эксперимента, новые первыми.
func (s *Service) History(ctx context.Context, experimentID uuid.UUID, limit, offset int) ([]domain.RunHistoryRecord, error) {
	return s.history.ListByExperiment(ctx, experimentID, limit, offset)
}

func (s *Service) notify(ctx context.Context, jobID uuid.UUID, action string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.PublishScheduleChanged(ctx, mq.ScheduleChangedPayload{JobID: jobID, Action: action})
	if err != nil {
		// Не фатально: scheduler подхватит изменение периодической синхронизацией.
		s.logger.Warn("failed to publish schedule.changed", "job_id", jobID, "error", err)
	}
}
