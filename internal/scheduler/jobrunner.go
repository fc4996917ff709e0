package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/lock"
	"github.com/shaiso/Searchlab/internal/settings"
	"github.com/shaiso/Searchlab/internal/telemetry"
)

// releaseTimeout ограничивает снятие блокировки после отмены запуска.
const releaseTimeout = 10 * time.Second

// ErrJobAlreadyRunning — job уже выполняется в этом процессе.
var ErrJobAlreadyRunning = errors.New("scheduled job already running")

// RunCoordinator выполняет один запуск (Coordinator).
type RunCoordinator interface {
	Run(ctx context.Context, params JobParams, token *async.Token, latch *async.Latch) *domain.RunHistoryRecord
}

// activeRun — ресурсы выполняющегося запуска.
type activeRun struct {
	token *async.Token
	latch *async.Latch
}

// JobRunner запускает эксперименты по срабатываниям расписаний.
//
// На каждый запуск:
//  1. берёт распределённую блокировку job (если занята, запуск пропускается)
//  2. создаёт токен отмены и latch
//  3. выполняет Coordinator под таймаутом из настроек
//  4. в cleanup снимает блокировку и освобождает ресурсы
//
// Cleanup выполняется ровно один раз на любом пути: нормальное завершение,
// паника, ошибка блокировки.
type JobRunner struct {
	locks       lock.Service
	coordinator RunCoordinator
	settings    *settings.Store
	onCleanup   func(JobParams)
	logger      *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*activeRun
}

// JobRunnerConfig — конфигурация JobRunner.
type JobRunnerConfig struct {
	Locks       lock.Service
	Coordinator RunCoordinator
	Settings    *settings.Store

	// OnCleanup — опциональный хук, вызывается в конце cleanup.
	OnCleanup func(JobParams)

	Logger *slog.Logger
}

// NewJobRunner создаёт JobRunner.
func NewJobRunner(cfg JobRunnerConfig) *JobRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Settings
	if store == nil {
		store = settings.NewStore(nil, "", logger)
	}
	return &JobRunner{
		locks:       cfg.Locks,
		coordinator: cfg.Coordinator,
		settings:    store,
		onCleanup:   cfg.OnCleanup,
		logger:      logger,
		active:      make(map[uuid.UUID]*activeRun),
	}
}

// RunJob выполняет один запуск job и блокируется до его завершения.
//
// Занятая блокировка — не ошибка: job выполняет другой инстанс.
func (j *JobRunner) RunJob(ctx context.Context, params JobParams) (err error) {
	logger := telemetry.WithJobID(j.logger, params.JobID)

	var (
		held lock.Lock
		run  *activeRun
	)
	defer func() {
		j.cleanup(ctx, logger, params, held, run)
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled run panicked", "panic", r)
			telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeError).Inc()
			err = fmt.Errorf("%w: %v", async.ErrPanic, r)
		}
	}()

	held, err = j.locks.Acquire(ctx, params.JobID)
	if err != nil {
		held = nil
		if errors.Is(err, lock.ErrNotAcquired) {
			logger.Debug("job is locked by another instance, skipping")
			telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeLockSkipped).Inc()
			return nil
		}
		telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeError).Inc()
		return fmt.Errorf("acquire lock for job %s: %w", params.JobID, err)
	}

	token := async.NewToken(params.JobID)
	latch := async.NewLatch(1)
	candidate := &activeRun{token: token, latch: latch}
	if !j.register(params.JobID, candidate) {
		telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeLockSkipped).Inc()
		return fmt.Errorf("job %s: %w", params.JobID, ErrJobAlreadyRunning)
	}
	run = candidate
	telemetry.ActiveScheduledRuns.Inc()

	timeout := j.settings.Get().Scheduler.Timeout
	logger.Info("scheduled run started", "experiment_id", params.ExperimentID, "timeout", timeout)

	record, err := async.RunWithTimeout(ctx, timeout, token, latch,
		func(ctx context.Context) (*domain.RunHistoryRecord, error) {
			return j.coordinator.Run(ctx, params, token, latch), nil
		},
	)

	switch {
	case errors.Is(err, async.ErrTimeout):
		logger.Warn("scheduled run timed out", "timeout", timeout)
		telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeTimeout).Inc()
		return err
	case err != nil:
		logger.Error("scheduled run failed", "error", err)
		telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeError).Inc()
		return err
	case record.Status == domain.ExperimentStatusError:
		telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeError).Inc()
	default:
		telemetry.ScheduledRuns.WithLabelValues(telemetry.OutcomeCompleted).Inc()
	}
	return nil
}

// Cancel отменяет выполняющийся запуск job.
// Возвращает false, если job не выполняется в этом процессе.
func (j *JobRunner) Cancel(jobID uuid.UUID) bool {
	j.mu.Lock()
	run, ok := j.active[jobID]
	j.mu.Unlock()
	if !ok {
		return false
	}
	run.token.Cancel()
	j.logger.Info("scheduled run cancel requested", "job_id", jobID)
	return true
}

// Active возвращает ID job, выполняющихся в этом процессе.
func (j *JobRunner) Active() []uuid.UUID {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(j.active))
	for id := range j.active {
		ids = append(ids, id)
	}
	return ids
}

func (j *JobRunner) register(jobID uuid.UUID, run *activeRun) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.active[jobID]; exists {
		return false
	}
	j.active[jobID] = run
	return true
}

// cleanup снимает блокировку и освобождает ресурсы запуска.
// run равен nil, если запуск не дошёл до регистрации.
func (j *JobRunner) cleanup(ctx context.Context, logger *slog.Logger, params JobParams, held lock.Lock, run *activeRun) {
	if j.cleanupResources(params.JobID, run) {
		telemetry.ActiveScheduledRuns.Dec()
	}

	if held != nil {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		if err := j.locks.Release(releaseCtx, held); err != nil {
			logger.Error("failed to release job lock", "error", err)
		}
		cancel()
	}

	if j.onCleanup != nil {
		j.onCleanup(params)
	}
}

// cleanupResources убирает токен и latch запуска из реестра.
// Удаляет только запись этого запуска: запись параллельного запуска
// того же job остаётся.
func (j *JobRunner) cleanupResources(jobID uuid.UUID, run *activeRun) bool {
	if run == nil {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.active[jobID] != run {
		return false
	}
	delete(j.active, jobID)
	return true
}
