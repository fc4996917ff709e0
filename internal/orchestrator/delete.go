package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/telemetry"
)

// cascadeTimeout ограничивает удаление зависимых записей.
const cascadeTimeout = time.Minute

// Цели каскадного удаления (label метрики).
const (
	targetEvaluations = "evaluation_results"
	targetVariants    = "experiment_variants"
	targetJob         = "scheduled_job"
	targetHistory     = "run_history"
)

// Deleter удаляет эксперимент и зависимые записи.
//
// Результат вызова определяется только удалением самого эксперимента.
// Зависимые записи удаляются параллельно, по принципу best-effort:
// ошибки логируются и считаются в метрике, но не возвращаются.
type Deleter struct {
	experiments ExperimentStore
	evaluations EvaluationStore
	variants    VariantStore
	jobs        JobDeleter
	history     HistoryDeleter
	notifier    ScheduleNotifier
	logger      *slog.Logger
}

// DeleterConfig — конфигурация Deleter.
type DeleterConfig struct {
	Experiments ExperimentStore
	Evaluations EvaluationStore
	Variants    VariantStore
	Jobs        JobDeleter
	History     HistoryDeleter

	// Notifier — опционально. Сообщает scheduler-инстансам, что расписание удалено.
	Notifier ScheduleNotifier

	Logger *slog.Logger
}

// NewDeleter создаёт Deleter.
func NewDeleter(cfg DeleterConfig) *Deleter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Deleter{
		experiments: cfg.Experiments,
		evaluations: cfg.Evaluations,
		variants:    cfg.Variants,
		jobs:        cfg.Jobs,
		history:     cfg.History,
		notifier:    cfg.Notifier,
		logger:      logger,
	}
}

// Delete удаляет эксперимент. Ошибка (в том числе repo.ErrNotFound)
// возвращается только для основной записи.
func (d *Deleter) Delete(ctx context.Context, experimentID uuid.UUID) error {
	if err := d.experiments.Delete(ctx, experimentID); err != nil {
		return fmt.Errorf("delete experiment %s: %w", experimentID, err)
	}

	logger := telemetry.WithExperimentID(d.logger, experimentID)

	cascadeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cascadeTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		n, err := d.evaluations.DeleteByExperimentID(cascadeCtx, experimentID)
		d.report(logger, targetEvaluations, n, err)
		return nil
	})
	g.Go(func() error {
		n, err := d.variants.DeleteByExperimentID(cascadeCtx, experimentID)
		d.report(logger, targetVariants, n, err)
		return nil
	})
	g.Go(func() error {
		d.deleteJob(cascadeCtx, logger, experimentID)
		return nil
	})
	g.Go(func() error {
		n, err := d.history.DeleteByExperimentID(cascadeCtx, experimentID)
		d.report(logger, targetHistory, n, err)
		return nil
	})
	_ = g.Wait()

	logger.Info("experiment deleted")
	return nil
}

// deleteJob удаляет расписание эксперимента, если оно есть.
func (d *Deleter) deleteJob(ctx context.Context, logger *slog.Logger, experimentID uuid.UUID) {
	err := d.jobs.Delete(ctx, experimentID)
	if errors.Is(err, repo.ErrNotFound) {
		return
	}
	if err != nil {
		d.report(logger, targetJob, 0, err)
		return
	}
	d.report(logger, targetJob, 1, nil)

	if d.notifier == nil {
		return
	}
	err = d.notifier.PublishScheduleChanged(ctx, mq.ScheduleChangedPayload{
		JobID:  experimentID,
		Action: mq.ScheduleActionRemoved,
	})
	if err != nil {
		logger.Warn("failed to publish schedule.changed", "error", err)
	}
}

func (d *Deleter) report(logger *slog.Logger, target string, deleted int64, err error) {
	if err != nil {
		telemetry.CascadeDeleteFailures.WithLabelValues(target).Inc()
		logger.Error("cascade delete failed", "target", target, "error", err)
		return
	}
	logger.Debug("cascade delete", "target", target, "deleted", deleted)
}
