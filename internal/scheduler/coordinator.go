package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/telemetry"
)

// recordTimeout ограничивает запись истории после отмены запуска.
const recordTimeout = 30 * time.Second

// errCancelledBeforeStart — текст ошибки в истории, если запуск отменили до старта.
const errCancelledBeforeStart = "cancelled before start"

// JobParams — параметры запуска по расписанию.
type JobParams struct {
	JobID        uuid.UUID
	ExperimentID uuid.UUID
}

// Coordinator выполняет один запуск эксперимента по расписанию.
//
// Coordinator:
//   - Загружает эксперимент (orphaned job выключается)
//   - Пропускает запуск, если токен уже отменён
//   - Вызывает Runner с токеном запуска
//   - Пишет RunHistoryRecord и время запуска в job, если эксперимент
//     не удалили за время запуска
//
// Coordinator не возвращает ошибок: любой исход записывается в историю.
type Coordinator struct {
	experiments ExperimentStore
	jobs        JobStore
	history     HistoryStore
	runner      ExperimentRunner
	logger      *slog.Logger
}

// CoordinatorConfig — конфигурация Coordinator.
type CoordinatorConfig struct {
	Experiments ExperimentStore
	Jobs        JobStore
	History     HistoryStore
	Runner      ExperimentRunner
	Logger      *slog.Logger
}

// NewCoordinator создаёт Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		experiments: cfg.Experiments,
		jobs:        cfg.Jobs,
		history:     cfg.History,
		runner:      cfg.Runner,
		logger:      logger,
	}
}

// Run выполняет запуск и возвращает запись истории.
// latch отсчитывается при выходе на любом пути.
func (c *Coordinator) Run(ctx context.Context, params JobParams, token *async.Token, latch *async.Latch) *domain.RunHistoryRecord {
	defer latch.CountDown()

	logger := telemetry.WithJobID(c.logger, params.JobID)
	record := domain.NewRunHistoryRecord(params.JobID, params.ExperimentID, time.Now())

	exp, err := c.experiments.GetByID(ctx, params.ExperimentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("experiment not found for scheduled job, disabling job",
				"experiment_id", params.ExperimentID,
			)
			if err := c.jobs.SetEnabled(context.WithoutCancel(ctx), params.JobID, false); err != nil && !errors.Is(err, repo.ErrNotFound) {
				logger.Error("failed to disable orphaned job", "error", err)
			}
		}
		record.Fail(fmt.Sprintf("load experiment: %v", err), nil)
		c.persist(ctx, logger, record)
		return record
	}

	if token.IsCancelled() {
		logger.Info("scheduled run cancelled before start")
		record.Fail(errCancelledBeforeStart, nil)
		c.persist(ctx, logger, record)
		return record
	}

	outcome, err := c.runner.Run(ctx, exp, token)
	switch {
	case err != nil:
		var results []domain.ExperimentResult
		if outcome != nil {
			results = outcome.Results
		}
		record.Fail(err.Error(), results)
	default:
		record.Complete(outcome.Results)
	}

	// Эксперимент могли удалить во время запуска: каскад уже стёр историю,
	// новая запись осталась бы сиротой.
	if c.deletedDuringRun(ctx, params.ExperimentID) {
		logger.Info("experiment deleted during scheduled run, history not recorded",
			"experiment_id", params.ExperimentID,
			"status", record.Status,
		)
		return record
	}

	c.persist(ctx, logger, record)
	logger.Info("scheduled run finished",
		"status", record.Status,
		"duration", record.Duration(),
	)
	return record
}

func (c *Coordinator) deletedDuringRun(ctx context.Context, experimentID uuid.UUID) bool {
	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	_, err := c.experiments.GetByID(checkCtx, experimentID)
	return errors.Is(err, repo.ErrNotFound)
}

// persist пишет историю и отмечает запуск в job.
// Запись идёт и после отмены ctx: иначе история таймаутов терялась бы.
func (c *Coordinator) persist(ctx context.Context, logger *slog.Logger, record *domain.RunHistoryRecord) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := c.history.Create(writeCtx, record); err != nil {
		logger.Error("failed to record run history", "error", err)
	}
	if err := c.jobs.RecordRun(writeCtx, record.JobID, record.Timestamp); err != nil && !errors.Is(err, repo.ErrNotFound) {
		logger.Error("failed to record job run", "error", err)
	}
}
