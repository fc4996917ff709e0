package orchestrator

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
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/settings"
	"github.com/shaiso/Searchlab/internal/telemetry"
)

// finalizeTimeout — сколько ждать финальной записи эксперимента,
// когда контекст запуска уже отменён.
const finalizeTimeout = 30 * time.Second

// Runner выполняет эксперимент.
//
// Runner:
//   - Проверяет кардинальность конфигураций для типа эксперимента
//   - Загружает набор запросов, конфигурации и judgments
//   - Раскладывает работу на подзадачи (запрос, запрос × вариант)
//   - Выполняет их на общем Executor, считая завершения через TaskCounter
//   - Один раз записывает итог: COMPLETED или ERROR
//
// Отмена через async.Token: подзадачи, не успевшие начаться, пропускаются,
// выполняющиеся поисковые запросы прерываются отменой контекста.
type Runner struct {
	experiments   ExperimentStore
	querySets     QuerySetReader
	searchConfigs SearchConfigReader
	judgments     JudgmentReader
	evaluations   EvaluationStore
	variants      VariantStore
	searcher      Searcher
	publisher     EventPublisher

	counter  *async.TaskCounter
	executor *async.Executor
	settings *settings.Store
	logger   *slog.Logger

	// activeRuns — эксперименты, выполняющиеся в этом процессе.
	activeRuns map[uuid.UUID]struct{}
	mu         sync.Mutex
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	// Repositories
	Experiments   ExperimentStore
	QuerySets     QuerySetReader
	SearchConfigs SearchConfigReader
	Judgments     JudgmentReader
	Evaluations   EvaluationStore
	Variants      VariantStore

	// Search
	Searcher Searcher

	// Publisher — опционально, nil отключает события.
	Publisher EventPublisher

	// Concurrency
	Counter  *async.TaskCounter
	Executor *async.Executor

	Settings *settings.Store
	Logger   *slog.Logger
}

// NewRunner создаёт новый Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Settings
	if store == nil {
		store = settings.NewStore(nil, "", logger)
	}
	counter := cfg.Counter
	if counter == nil {
		counter = async.NewTaskCounter(logger)
	}
	executor := cfg.Executor
	if executor == nil {
		executor = async.NewExecutor(store.Get().Runner.MaxConcurrency, logger)
	}

	return &Runner{
		experiments:   cfg.Experiments,
		querySets:     cfg.QuerySets,
		searchConfigs: cfg.SearchConfigs,
		judgments:     cfg.Judgments,
		evaluations:   cfg.Evaluations,
		variants:      cfg.Variants,
		searcher:      cfg.Searcher,
		publisher:     cfg.Publisher,
		counter:       counter,
		executor:      executor,
		settings:      store,
		logger:        logger,
		activeRuns:    make(map[uuid.UUID]struct{}),
	}
}

// Outcome — итог запуска.
type Outcome struct {
	Status  domain.ExperimentStatus
	Results []domain.ExperimentResult
	Error   string
}

// inputs — загруженные входные данные эксперимента.
type inputs struct {
	querySet  *domain.QuerySet
	configs   []*domain.SearchConfiguration
	judgments []*domain.JudgmentSet
	size      int
}

// subtask — единица работы: поиск и метрики для одного запроса.
type subtask func(ctx context.Context) domain.ExperimentResult

// Run выполняет эксперимент и блокируется до терминального статуса.
//
// Outcome возвращается всегда. Ошибка не nil, если эксперимент завершился
// со статусом ERROR. ErrRunAlreadyActive возвращается без записи в хранилище.
func (r *Runner) Run(ctx context.Context, exp *domain.Experiment, token *async.Token) (*Outcome, error) {
	if !r.markActive(exp.ID) {
		return &Outcome{
			Status: domain.ExperimentStatusError,
			Error:  ErrRunAlreadyActive.Error(),
		}, fmt.Errorf("run experiment %s: %w", exp.ID, ErrRunAlreadyActive)
	}
	defer r.markInactive(exp.ID)

	logger := telemetry.WithExperimentID(r.logger, exp.ID)
	logger.Info("experiment run started", "type", exp.Type)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	token.OnCancel(cancel)

	if err := exp.Validate(); err != nil {
		return r.finish(ctx, exp, nil, err)
	}

	if exp.Status != domain.ExperimentStatusProcessing || len(exp.Results) > 0 || exp.Error != "" {
		exp.MarkProcessing()
		if err := r.experiments.Update(runCtx, exp); err != nil {
			return r.finish(ctx, exp, nil, fmt.Errorf("mark processing: %w", err))
		}
	}

	in, err := r.loadInputs(runCtx, exp)
	if err != nil {
		return r.finish(ctx, exp, nil, err)
	}

	if len(in.querySet.Queries) == 0 {
		logger.Info("query set is empty, nothing to run")
		return r.finish(ctx, exp, nil, nil)
	}

	tasks, err := r.plan(runCtx, exp, in)
	if err != nil {
		return r.finish(ctx, exp, nil, err)
	}

	state := newRunState(len(tasks))
	done := make(chan struct{})
	if err := r.counter.Init(exp.ID, len(tasks), func() { close(done) }); err != nil {
		return r.finish(ctx, exp, nil, err)
	}

	logger.Debug("dispatching subtasks", "count", len(tasks))
	for _, task := range tasks {
		r.executor.Go(func() {
			defer func() {
				if err := r.counter.Decrement(exp.ID); err != nil {
					logger.Error("decrement task counter", "error", err)
				}
			}()

			if token.IsCancelled() {
				state.skip()
				return
			}

			start := time.Now()
			res := task(runCtx)
			telemetry.SubtaskDuration.WithLabelValues(exp.Type.String()).Observe(time.Since(start).Seconds())
			state.add(res)
		})
	}

	<-done

	results, failed, skipped := state.snapshot()
	switch {
	case token.IsCancelled():
		err = ErrRunCancelled
		if cause := context.Cause(ctx); cause != nil {
			err = fmt.Errorf("%w: %w", ErrRunCancelled, cause)
		}
		logger.Warn("experiment run cancelled", "skipped", skipped, "completed", len(results))
	case failed == len(tasks):
		err = fmt.Errorf("%w: %d of %d", ErrAllSubtasksFailed, failed, len(tasks))
	}

	return r.finish(ctx, exp, results, err)
}

// finish записывает итог эксперимента. Это единственная финальная запись.
func (r *Runner) finish(ctx context.Context, exp *domain.Experiment, results []domain.ExperimentResult, runErr error) (*Outcome, error) {
	logger := telemetry.WithExperimentID(r.logger, exp.ID)

	if runErr != nil {
		exp.MarkError(runErr.Error(), results)
	} else {
		exp.MarkCompleted(results)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := r.experiments.Update(writeCtx, exp); err != nil {
		logger.Error("failed to persist experiment outcome", "status", exp.Status, "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("persist outcome: %w", err)
			exp.MarkError(runErr.Error(), results)
		}
	}

	telemetry.ExperimentsFinished.WithLabelValues(exp.Type.String(), exp.Status.String()).Inc()
	if runErr != nil {
		logger.Warn("experiment run failed", "error", runErr, "results", len(exp.Results))
	} else {
		logger.Info("experiment run completed", "results", len(exp.Results))
	}

	if r.publisher != nil {
		err := r.publisher.PublishExperimentFinished(writeCtx, mq.ExperimentFinishedPayload{
			ExperimentID: exp.ID,
			Type:         exp.Type.String(),
			Status:       exp.Status.String(),
			Scheduled:    exp.Scheduled,
			Error:        exp.Error,
		})
		if err != nil {
			logger.Warn("failed to publish experiment.finished", "error", err)
		}
	}

	return &Outcome{
		Status:  exp.Status,
		Results: exp.Results,
		Error:   exp.Error,
	}, runErr
}

// loadInputs загружает набор запросов, конфигурации и judgments.
func (r *Runner) loadInputs(ctx context.Context, exp *domain.Experiment) (*inputs, error) {
	qs, err := r.querySets.GetByID(ctx, exp.QuerySetID)
	if err != nil {
		return nil, inputError("query set", exp.QuerySetID, err)
	}

	in := &inputs{querySet: qs, size: exp.Size}
	if in.size <= 0 {
		in.size = r.settings.Get().Runner.DefaultSize
	}

	for _, id := range exp.SearchConfigurationIDs {
		cfg, err := r.searchConfigs.GetByID(ctx, id)
		if err != nil {
			return nil, inputError("search configuration", id, err)
		}
		in.configs = append(in.configs, cfg)
	}

	for _, id := range exp.JudgmentIDs {
		j, err := r.judgments.GetByID(ctx, id)
		if err != nil {
			return nil, inputError("judgment list", id, err)
		}
		in.judgments = append(in.judgments, j)
	}

	return in, nil
}

// plan раскладывает эксперимент на подзадачи по типу.
func (r *Runner) plan(ctx context.Context, exp *domain.Experiment, in *inputs) ([]subtask, error) {
	var tasks []subtask

	switch exp.Type {
	case domain.ExperimentTypePairwise:
		for _, q := range in.querySet.Queries {
			tasks = append(tasks, r.pairwiseTask(in, q.QueryText))
		}

	case domain.ExperimentTypePointwise:
		for _, q := range in.querySet.Queries {
			for _, cfg := range in.configs {
				tasks = append(tasks, r.pointwiseTask(exp, in, cfg, nil, q.QueryText))
			}
		}

	case domain.ExperimentTypeHybrid:
		variants, err := r.hybridVariantsFor(ctx, exp.ID)
		if err != nil {
			return nil, err
		}
		for _, q := range in.querySet.Queries {
			for i := range variants {
				tasks = append(tasks, r.pointwiseTask(exp, in, in.configs[0], &variants[i], q.QueryText))
			}
		}

	default:
		return nil, fmt.Errorf("%w: unknown experiment type %q", domain.ErrInvalidExperiment, exp.Type)
	}

	return tasks, nil
}

// hybridVariantsFor возвращает сетку вариантов эксперимента. Варианты прошлых
// запусков переиспользуются, сохраняются только недостающие точки сетки.
func (r *Runner) hybridVariantsFor(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentVariant, error) {
	existing, err := r.variants.ListByExperiment(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list hybrid variants: %w", err)
	}
	stored := make(map[string]domain.ExperimentVariant, len(existing))
	for _, v := range existing {
		stored[variantKey(v.Parameters)] = v
	}

	grid := hybridVariants(experimentID, time.Now())
	var missing []domain.ExperimentVariant
	for i, v := range grid {
		if old, ok := stored[variantKey(v.Parameters)]; ok {
			grid[i] = old
			continue
		}
		missing = append(missing, v)
	}

	if len(missing) > 0 {
		if err := r.variants.CreateBatch(ctx, missing); err != nil {
			return nil, fmt.Errorf("persist hybrid variants: %w", err)
		}
	}
	return grid, nil
}

func (r *Runner) markActive(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activeRuns[id]; ok {
		return false
	}
	r.activeRuns[id] = struct{}{}
	return true
}

func (r *Runner) markInactive(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.activeRuns, id)
}

// IsActive возвращает true, если эксперимент выполняется в этом процессе.
func (r *Runner) IsActive(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.activeRuns[id]
	return ok
}

func inputError(kind string, id uuid.UUID, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrInputNotFound, kind, id)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
