package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/settings"
)

// JobExecutor запускает и отменяет job (JobRunner).
type JobExecutor interface {
	RunJob(ctx context.Context, params JobParams) error
	Cancel(jobID uuid.UUID) bool
}

// JobLister отдаёт активные расписания.
type JobLister interface {
	ListEnabled(ctx context.Context) ([]domain.ScheduledJob, error)
}

// entry — зарегистрированное расписание.
type entry struct {
	id   cron.EntryID
	spec string
}

// Trigger — хост-планировщик: держит по одной cron-записи на активный job
// и на каждое срабатывание вызывает JobRunner.
//
// Набор записей синхронизируется с хранилищем каждые scheduler.sync_interval
// и сразу по событию schedule.changed.
type Trigger struct {
	cron     *cron.Cron
	jobs     JobLister
	executor JobExecutor
	settings *settings.Store
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]entry
	baseCtx context.Context
}

// TriggerConfig — конфигурация Trigger.
type TriggerConfig struct {
	Jobs     JobLister
	Executor JobExecutor
	Settings *settings.Store
	Logger   *slog.Logger
}

// NewTrigger создаёт Trigger.
func NewTrigger(cfg TriggerConfig) *Trigger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Settings
	if store == nil {
		store = settings.NewStore(nil, "", logger)
	}

	cl := cronLogger{logger: logger}
	return &Trigger{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:     cfg.Jobs,
		executor: cfg.Executor,
		settings: store,
		logger:   logger,
		entries:  make(map[uuid.UUID]entry),
		baseCtx:  context.Background(),
	}
}

// Start синхронизирует расписания, запускает cron и блокируется до отмены ctx.
// После отмены ждёт завершения выполняющихся запусков.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	t.baseCtx = ctx
	t.mu.Unlock()

	if err := t.Sync(ctx); err != nil {
		t.logger.Error("initial schedule sync failed", "error", err)
	}

	t.cron.Start()
	t.logger.Info("trigger started", "entries", t.Entries())

	timer := time.NewTimer(t.settings.Get().Scheduler.SyncInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("trigger stopping, waiting for running jobs")
			<-t.cron.Stop().Done()
			return nil
		case <-timer.C:
			if err := t.Sync(ctx); err != nil {
				t.logger.Error("schedule sync failed", "error", err)
			}
			timer.Reset(t.settings.Get().Scheduler.SyncInterval)
		}
	}
}

// Sync приводит cron-записи в соответствие с активными job в хранилище.
func (t *Trigger) Sync(ctx context.Context) error {
	jobs, err := t.jobs.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled jobs: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(jobs))
	var added, removed int

	for i := range jobs {
		job := &jobs[i]
		seen[job.ID] = struct{}{}

		spec := cronSpec(job.CronExpr, job.Timezone)
		if cur, ok := t.entries[job.ID]; ok {
			if cur.spec == spec {
				continue
			}
			t.cron.Remove(cur.id)
			delete(t.entries, job.ID)
		}

		params := JobParams{JobID: job.ID, ExperimentID: job.ExperimentID()}
		id, err := t.cron.AddFunc(spec, func() { t.fire(params) })
		if err != nil {
			t.logger.Error("failed to register job",
				"job_id", job.ID,
				"cron_expr", job.CronExpr,
				"error", err,
			)
			continue
		}
		t.entries[job.ID] = entry{id: id, spec: spec}
		added++
	}

	for jobID, e := range t.entries {
		if _, ok := seen[jobID]; ok {
			continue
		}
		t.cron.Remove(e.id)
		delete(t.entries, jobID)
		removed++
	}

	if added > 0 || removed > 0 {
		t.logger.Info("schedules synced", "added", added, "removed", removed, "total", len(t.entries))
	}
	return nil
}

// HandleScheduleChanged обрабатывает событие schedule.changed.
// Удалённое расписание снимается сразу, выполняющийся запуск отменяется.
func (t *Trigger) HandleScheduleChanged(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.ScheduleChangedPayload](msg)
	if err != nil {
		return fmt.Errorf("parse schedule.changed: %w", err)
	}

	if payload.Action == mq.ScheduleActionRemoved {
		t.remove(payload.JobID)
		if t.executor.Cancel(payload.JobID) {
			t.logger.Info("cancelled running job after unschedule", "job_id", payload.JobID)
		}
	}

	return t.Sync(ctx)
}

// Entries возвращает число зарегистрированных расписаний.
func (t *Trigger) Entries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Next возвращает время следующего срабатывания job.
func (t *Trigger) Next(jobID uuid.UUID) (time.Time, bool) {
	t.mu.Lock()
	e, ok := t.entries[jobID]
	t.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return t.cron.Entry(e.id).Next, true
}

func (t *Trigger) remove(jobID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[jobID]; ok {
		t.cron.Remove(e.id)
		delete(t.entries, jobID)
	}
}

// fire вызывается cron на срабатывании.
func (t *Trigger) fire(params JobParams) {
	t.mu.Lock()
	ctx := t.baseCtx
	t.mu.Unlock()

	if err := t.executor.RunJob(ctx, params); err != nil {
		t.logger.Error("scheduled job failed",
			"job_id", params.JobID,
			"experiment_id", params.ExperimentID,
			"error", err,
		)
	}
}

// cronLogger адаптирует slog к cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
