package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/telemetry"
)

// ExperimentLister — чтение списка экспериментов.
type ExperimentLister interface {
	List(ctx context.Context, filter repo.ExperimentFilter) ([]domain.Experiment, error)
}

// CreateRequest — параметры нового эксперимента.
type CreateRequest struct {
	Type                   string
	QuerySetID             uuid.UUID
	SearchConfigurationIDs []uuid.UUID
	JudgmentIDs            []uuid.UUID
	Size                   int
}

// Service — точка входа для on-demand экспериментов.
//
// CreateExperiment проверяет запрос синхронно, сохраняет эксперимент
// и запускает Runner в фоне. Фоновые запуски живут в базовом контексте
// сервиса, а не в контексте HTTP-запроса, и отменяются через Shutdown
// или DeleteExperiment.
type Service struct {
	runner        *Runner
	deleter       *Deleter
	experiments   ExperimentStore
	lister        ExperimentLister
	querySets     QuerySetReader
	searchConfigs SearchConfigReader
	judgments     JudgmentReader
	logger        *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	tokens  map[uuid.UUID]*async.Token
	stopped bool
	wg      sync.WaitGroup
}

// ServiceConfig — конфигурация Service.
type ServiceConfig struct {
	Runner        *Runner
	Deleter       *Deleter
	Experiments   ExperimentStore
	Lister        ExperimentLister
	QuerySets     QuerySetReader
	SearchConfigs SearchConfigReader
	Judgments     JudgmentReader
	Logger        *slog.Logger
}

// NewService создаёт Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		runner:        cfg.Runner,
		deleter:       cfg.Deleter,
		experiments:   cfg.Experiments,
		lister:        cfg.Lister,
		querySets:     cfg.QuerySets,
		searchConfigs: cfg.SearchConfigs,
		judgments:     cfg.Judgments,
		logger:        logger,
		baseCtx:       ctx,
		stop:          stop,
		tokens:        make(map[uuid.UUID]*async.Token),
	}
}

// CreateExperiment создаёт эксперимент и запускает его в фоне.
//
// Ошибки валидации (в том числе ссылки на несуществующие входные данные)
// возвращаются до любой записи в хранилище и оборачивают domain.ErrValidation.
func (s *Service) CreateExperiment(ctx context.Context, req CreateRequest) (*domain.Experiment, error) {
	typ, err := domain.ParseExperimentType(req.Type)
	if err != nil {
		return nil, err
	}

	exp := domain.NewExperiment(typ, req.QuerySetID, req.SearchConfigurationIDs, req.JudgmentIDs, req.Size)
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkInputs(ctx, exp); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrServiceStopped
	}
	token := async.NewToken(exp.ID)
	s.tokens[exp.ID] = token
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.experiments.Create(ctx, exp); err != nil {
		s.release(exp.ID)
		s.wg.Done()
		return nil, fmt.Errorf("create experiment: %w", err)
	}

	telemetry.WithExperimentID(s.logger, exp.ID).Info("experiment created", "type", exp.Type)

	// Runner меняет свою копию, вызывающий получает эксперимент в PROCESSING.
	run := *exp
	go func() {
		defer s.wg.Done()
		defer s.release(run.ID)
		// Ошибка уже записана в эксперимент и залогирована Runner'ом.
		_, _ = s.runner.Run(s.baseCtx, &run, token)
	}()

	return exp, nil
}

// GetExperiment возвращает эксперимент по ID.
func (s *Service) GetExperiment(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	return s.experiments.GetByID(ctx, id)
}

// ListExperiments возвращает эксперименты по фильтру.
func (s *Service) ListExperiments(ctx context.Context, filter repo.ExperimentFilter) ([]domain.Experiment, error) {
	return s.lister.List(ctx, filter)
}

// DeleteExperiment отменяет локальный запуск (если есть) и удаляет эксперимент.
func (s *Service) DeleteExperiment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	token := s.tokens[id]
	s.mu.Unlock()
	if token != nil {
		token.Cancel()
	}
	return s.deleter.Delete(ctx, id)
}

// Active возвращает число фоновых запусков.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Wait ждёт завершения всех фоновых запусков, не отменяя их.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for experiment runs: %w", ctx.Err())
	}
}

// Shutdown отменяет фоновые запуски и ждёт их завершения.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	tokens := make([]*async.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokens = append(tokens, t)
	}
	s.mu.Unlock()

	for _, t := range tokens {
		t.Cancel()
	}
	s.stop()

	if err := s.Wait(ctx); err != nil {
		return err
	}
	s.logger.Info("experiment service stopped", "cancelled", len(tokens))
	return nil
}

func (s *Service) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
}

// checkInputs проверяет, что все входные данные существуют.
func (s *Service) checkInputs(ctx context.Context, exp *domain.Experiment) error {
	if _, err := s.querySets.GetByID(ctx, exp.QuerySetID); err != nil {
		return inputError("query set", exp.QuerySetID, err)
	}
	for _, id := range exp.SearchConfigurationIDs {
		if _, err := s.searchConfigs.GetByID(ctx, id); err != nil {
			return inputError("search configuration", id, err)
		}
	}
	for _, id := range exp.JudgmentIDs {
		if _, err := s.judgments.GetByID(ctx, id); err != nil {
			return inputError("judgment list", id, err)
		}
	}
	return nil
}
