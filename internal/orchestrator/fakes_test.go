package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/mq"
	"github.com/shaiso/Searchlab/internal/repo"
	"github.com/shaiso/Searchlab/internal/search"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fakes ---

type fakeExperiments struct {
	mu          sync.Mutex
	items       map[uuid.UUID]domain.Experiment
	createCalls int
	updates     []domain.Experiment
	deleteErr   error
}

func newFakeExperiments() *fakeExperiments {
	return &fakeExperiments{items: make(map[uuid.UUID]domain.Experiment)}
}

func (f *fakeExperiments) Create(_ context.Context, e *domain.Experiment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.items[e.ID] = *e
	return nil
}

func (f *fakeExperiments) GetByID(_ context.Context, id uuid.UUID) (*domain.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &e, nil
}

func (f *fakeExperiments) List(_ context.Context, _ repo.ExperimentFilter) ([]domain.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Experiment, 0, len(f.items))
	for _, e := range f.items {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeExperiments) Update(_ context.Context, e *domain.Experiment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, *e)
	if _, ok := f.items[e.ID]; !ok {
		return repo.ErrNotFound
	}
	f.items[e.ID] = *e
	return nil
}

func (f *fakeExperiments) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeExperiments) get(id uuid.UUID) (domain.Experiment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	return e, ok
}

func (f *fakeExperiments) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeQuerySets map[uuid.UUID]*domain.QuerySet

func (f fakeQuerySets) GetByID(_ context.Context, id uuid.UUID) (*domain.QuerySet, error) {
	qs, ok := f[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return qs, nil
}

type fakeSearchConfigs map[uuid.UUID]*domain.SearchConfiguration

func (f fakeSearchConfigs) GetByID(_ context.Context, id uuid.UUID) (*domain.SearchConfiguration, error) {
	c, ok := f[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return c, nil
}

type fakeJudgments map[uuid.UUID]*domain.JudgmentSet

func (f fakeJudgments) GetByID(_ context.Context, id uuid.UUID) (*domain.JudgmentSet, error) {
	j, ok := f[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return j, nil
}

type fakeEvaluations struct {
	mu          sync.Mutex
	created     []domain.EvaluationResult
	deleteErr   error
	deleteCalls atomic.Int32
}

func (f *fakeEvaluations) Create(_ context.Context, e *domain.EvaluationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *e)
	return nil
}

func (f *fakeEvaluations) DeleteByExperimentID(_ context.Context, _ uuid.UUID) (int64, error) {
	f.deleteCalls.Add(1)
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.created))
	f.created = nil
	return n, nil
}

func (f *fakeEvaluations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeVariants struct {
	mu          sync.Mutex
	created     []domain.ExperimentVariant
	deleteErr   error
	deleteCalls atomic.Int32
}

func (f *fakeVariants) CreateBatch(_ context.Context, variants []domain.ExperimentVariant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, variants...)
	return nil
}

func (f *fakeVariants) ListByExperiment(_ context.Context, experimentID uuid.UUID) ([]domain.ExperimentVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ExperimentVariant
	for _, v := range f.created {
		if v.ExperimentID == experimentID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVariants) DeleteByExperimentID(_ context.Context, _ uuid.UUID) (int64, error) {
	f.deleteCalls.Add(1)
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return 0, nil
}

type fakeJobs struct {
	deleteErr   error
	deleteCalls atomic.Int32
}

func (f *fakeJobs) Delete(_ context.Context, _ uuid.UUID) error {
	f.deleteCalls.Add(1)
	return f.deleteErr
}

type fakeHistory struct {
	deleteErr   error
	deleteCalls atomic.Int32
}

func (f *fakeHistory) DeleteByExperimentID(_ context.Context, _ uuid.UUID) (int64, error) {
	f.deleteCalls.Add(1)
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return 3, nil
}

// fakeSearcher отдаёт выдачу по индексу конфигурации.
type fakeSearcher struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req search.Request) ([]search.Hit, error)
}

func (f *fakeSearcher) Search(ctx context.Context, req search.Request) ([]search.Hit, error) {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

func hits(ids ...string) []search.Hit {
	out := make([]search.Hit, len(ids))
	for i, id := range ids {
		out[i] = search.Hit{ID: id, Score: float64(len(ids) - i)}
	}
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []mq.ScheduleChangedPayload
}

func (f *fakeNotifier) PublishScheduleChanged(_ context.Context, p mq.ScheduleChangedPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []mq.ExperimentFinishedPayload
}

func (f *fakePublisher) PublishExperimentFinished(_ context.Context, p mq.ExperimentFinishedPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

// --- Fixture ---

type fixture struct {
	experiments *fakeExperiments
	querySets   fakeQuerySets
	configs     fakeSearchConfigs
	judgments   fakeJudgments
	evaluations *fakeEvaluations
	variants    *fakeVariants
	searcher    *fakeSearcher
	publisher   *fakePublisher

	querySetID uuid.UUID
	configA    uuid.UUID
	configB    uuid.UUID
	judgmentID uuid.UUID
}

func newFixture(queries ...string) *fixture {
	f := &fixture{
		experiments: newFakeExperiments(),
		querySets:   fakeQuerySets{},
		configs:     fakeSearchConfigs{},
		judgments:   fakeJudgments{},
		evaluations: &fakeEvaluations{},
		variants:    &fakeVariants{},
		publisher:   &fakePublisher{},
		querySetID:  uuid.New(),
		configA:     uuid.New(),
		configB:     uuid.New(),
		judgmentID:  uuid.New(),
	}

	qs := &domain.QuerySet{ID: f.querySetID, Name: "qs"}
	for _, q := range queries {
		qs.Queries = append(qs.Queries, domain.Query{QueryText: q})
	}
	f.querySets[f.querySetID] = qs

	query := `{"query":{"match":{"title":"%SearchText%"}}}`
	f.configs[f.configA] = &domain.SearchConfiguration{ID: f.configA, Index: "index-a", Query: query}
	f.configs[f.configB] = &domain.SearchConfiguration{ID: f.configB, Index: "index-b", Query: query}

	f.judgments[f.judgmentID] = &domain.JudgmentSet{
		ID: f.judgmentID,
		Ratings: map[string][]domain.Rating{
			"laptop": {{DocID: "d1", Rating: 3}, {DocID: "d2", Rating: 1}},
		},
	}

	f.searcher = &fakeSearcher{fn: func(_ context.Context, req search.Request) ([]search.Hit, error) {
		if req.Index == "index-a" {
			return hits("d1", "d2", "d3"), nil
		}
		return hits("d1", "d4", "d5"), nil
	}}
	return f
}

func (f *fixture) runner() *Runner {
	return NewRunner(RunnerConfig{
		Experiments:   f.experiments,
		QuerySets:     f.querySets,
		SearchConfigs: f.configs,
		Judgments:     f.judgments,
		Evaluations:   f.evaluations,
		Variants:      f.variants,
		Searcher:      f.searcher,
		Publisher:     f.publisher,
		Logger:        testLogger(),
	})
}

// stored создаёт эксперимент и кладёт его в хранилище.
func (f *fixture) stored(typ domain.ExperimentType, configIDs, judgmentIDs []uuid.UUID) *domain.Experiment {
	exp := domain.NewExperiment(typ, f.querySetID, configIDs, judgmentIDs, 10)
	_ = f.experiments.Create(context.Background(), exp)
	return exp
}
