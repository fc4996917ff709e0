package orchestrator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/async"
	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/relevance"
	"github.com/shaiso/Searchlab/internal/search"
)

// --- Runner Tests ---

func TestRunner_Run_ZeroQueries(t *testing.T) {
	f := newFixture()
	exp := f.stored(domain.ExperimentTypePairwise, []uuid.UUID{f.configA, f.configB}, nil)

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != domain.ExperimentStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", out.Status)
	}
	if len(out.Results) != 0 {
		t.Errorf("expected no results, got %d", len(out.Results))
	}
	if f.searcher.calls.Load() != 0 {
		t.Errorf("expected no search calls, got %d", f.searcher.calls.Load())
	}

	stored, _ := f.experiments.get(exp.ID)
	if stored.Status != domain.ExperimentStatusCompleted {
		t.Errorf("stored status = %s, want COMPLETED", stored.Status)
	}
	if stored.Results == nil {
		t.Error("stored results should be an empty list, not nil")
	}
}

func TestRunner_Run_Pairwise(t *testing.T) {
	f := newFixture("laptop", "phone")
	exp := f.stored(domain.ExperimentTypePairwise, []uuid.UUID{f.configA, f.configB}, nil)

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != domain.ExperimentStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", out.Status, out.Error)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}

	// Результаты отсортированы по тексту запроса.
	if out.Results[0].QueryText != "laptop" || out.Results[1].QueryText != "phone" {
		t.Errorf("unexpected order: %q, %q", out.Results[0].QueryText, out.Results[1].QueryText)
	}

	res := out.Results[0]
	if got := res.Metrics[relevance.MetricJaccard]; got != 0.2 {
		t.Errorf("jaccard = %v, want 0.2", got)
	}
	if len(res.Snapshots) != 2 {
		t.Errorf("expected 2 snapshots, got %d", len(res.Snapshots))
	}
	if got := res.Snapshots[f.configA.String()]; len(got) != 3 || got[0] != "d1" {
		t.Errorf("unexpected snapshot for config A: %v", got)
	}
	if f.searcher.calls.Load() != 4 {
		t.Errorf("expected 4 search calls, got %d", f.searcher.calls.Load())
	}
	if f.evaluations.count() != 0 {
		t.Errorf("pairwise should not persist evaluations, got %d", f.evaluations.count())
	}
}

func TestRunner_Run_Pointwise(t *testing.T) {
	f := newFixture("laptop", "phone", "tablet")
	exp := f.stored(domain.ExperimentTypePointwise, []uuid.UUID{f.configA}, []uuid.UUID{f.judgmentID})

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	if f.evaluations.count() != 3 {
		t.Errorf("expected 3 evaluations, got %d", f.evaluations.count())
	}

	res := out.Results[0]
	if res.QueryText != "laptop" {
		t.Fatalf("expected laptop first, got %q", res.QueryText)
	}
	if res.SearchConfigurationID == nil || *res.SearchConfigurationID != f.configA {
		t.Error("search configuration id should be set")
	}
	if len(res.EvaluationIDs) != 1 {
		t.Errorf("expected 1 evaluation id, got %d", len(res.EvaluationIDs))
	}
	if _, ok := res.Metrics["NDCG@10"]; !ok {
		t.Errorf("expected NDCG@10 metric, got %v", res.Metrics)
	}
	if res.Metrics["Coverage@10"] <= 0 {
		t.Errorf("laptop has rated docs in the result, coverage should be > 0")
	}
}

func TestRunner_Run_Hybrid(t *testing.T) {
	f := newFixture("laptop")

	var mu sync.Mutex
	pipelines := 0
	f.searcher.fn = func(_ context.Context, req search.Request) ([]search.Hit, error) {
		if req.Pipeline != nil {
			mu.Lock()
			pipelines++
			mu.Unlock()
		}
		return hits("d1", "d2"), nil
	}

	exp := f.stored(domain.ExperimentTypeHybrid, []uuid.UUID{f.configA}, []uuid.UUID{f.judgmentID})

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 99 {
		t.Errorf("expected 99 results, got %d", len(out.Results))
	}
	if len(f.variants.created) != 99 {
		t.Errorf("expected 99 variants persisted, got %d", len(f.variants.created))
	}
	if f.evaluations.count() != 99 {
		t.Errorf("expected 99 evaluations, got %d", f.evaluations.count())
	}
	if pipelines != 99 {
		t.Errorf("every hybrid search should carry a pipeline, got %d", pipelines)
	}
	for _, res := range out.Results {
		if res.VariantID == nil {
			t.Fatal("hybrid result should reference its variant")
		}
	}
}

func TestRunner_Run_HybridReusesVariants(t *testing.T) {
	f := newFixture("laptop")
	exp := f.stored(domain.ExperimentTypeHybrid, []uuid.UUID{f.configA}, []uuid.UUID{f.judgmentID})
	r := f.runner()

	first, err := r.Run(context.Background(), exp, async.NewToken(exp.ID))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := r.Run(context.Background(), exp, async.NewToken(exp.ID))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(f.variants.created) != 99 {
		t.Errorf("repeated runs should keep 99 variants, got %d", len(f.variants.created))
	}
	known := make(map[uuid.UUID]bool, len(f.variants.created))
	for _, v := range f.variants.created {
		known[v.ID] = true
	}
	for _, out := range []*Outcome{first, second} {
		for _, res := range out.Results {
			if res.VariantID == nil || !known[*res.VariantID] {
				t.Fatalf("result should reference a stored variant, got %v", res.VariantID)
			}
		}
	}
}

func TestRunner_Run_PartialFailure(t *testing.T) {
	f := newFixture("laptop", "broken")
	f.searcher.fn = func(_ context.Context, req search.Request) ([]search.Hit, error) {
		if req.QueryText == "broken" {
			return nil, search.ErrSearch
		}
		return hits("d1"), nil
	}
	exp := f.stored(domain.ExperimentTypePointwise, []uuid.UUID{f.configA}, []uuid.UUID{f.judgmentID})

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != domain.ExperimentStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", out.Status)
	}
	if out.Results[0].QueryText != "broken" || out.Results[0].Error == "" {
		t.Errorf("expected error recorded for broken query, got %+v", out.Results[0])
	}
	if out.Results[1].Error != "" {
		t.Errorf("laptop should succeed, got %q", out.Results[1].Error)
	}
}

func TestRunner_Run_AllSubtasksFailed(t *testing.T) {
	f := newFixture("laptop", "phone")
	f.searcher.fn = func(context.Context, search.Request) ([]search.Hit, error) {
		return nil, search.ErrSearch
	}
	exp := f.stored(domain.ExperimentTypePointwise, []uuid.UUID{f.configA}, []uuid.UUID{f.judgmentID})

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if !errors.Is(err, ErrAllSubtasksFailed) {
		t.Fatalf("expected ErrAllSubtasksFailed, got %v", err)
	}
	if out.Status != domain.ExperimentStatusError {
		t.Errorf("expected ERROR, got %s", out.Status)
	}
	if len(out.Results) != 2 {
		t.Errorf("partial results should be kept, got %d", len(out.Results))
	}
}

func TestRunner_Run_MissingInput(t *testing.T) {
	f := newFixture("laptop")
	exp := f.stored(domain.ExperimentTypePointwise, []uuid.UUID{f.configA}, []uuid.UUID{f.judgmentID})
	delete(f.judgments, f.judgmentID)

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("expected ErrInputNotFound, got %v", err)
	}
	if out.Status != domain.ExperimentStatusError {
		t.Errorf("expected ERROR, got %s", out.Status)
	}
	if f.searcher.calls.Load() != 0 {
		t.Error("search should not run without inputs")
	}
}

func TestRunner_Run_InvalidExperiment(t *testing.T) {
	f := newFixture("laptop")
	exp := f.stored(domain.ExperimentTypePairwise, []uuid.UUID{f.configA, f.configA}, nil)

	out, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if out.Status != domain.ExperimentStatusError {
		t.Errorf("expected ERROR, got %s", out.Status)
	}
	if f.searcher.calls.Load() != 0 {
		t.Error("search should not run for invalid experiment")
	}
}

func TestRunner_Run_CancelledBeforeStart(t *testing.T) {
	f := newFixture("laptop", "phone")
	exp := f.stored(domain.ExperimentTypePairwise, []uuid.UUID{f.configA, f.configB}, nil)

	token := async.NewToken(exp.ID)
	token.Cancel()

	out, err := f.runner().Run(context.Background(), exp, token)
	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("expected ErrRunCancelled, got %v", err)
	}
	if out.Status != domain.ExperimentStatusError {
		t.Errorf("expected ERROR, got %s", out.Status)
	}
	if f.searcher.calls.Load() != 0 {
		t.Errorf("subtasks should be skipped, got %d search calls", f.searcher.calls.Load())
	}
}

func TestRunner_Run_CancelAbortsInFlightSearch(t *testing.T) {
	f := newFixture("laptop", "phone")

	started := make(chan struct{}, 4)
	f.searcher.fn = func(ctx context.Context, _ search.Request) ([]search.Hit, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	exp := f.stored(domain.ExperimentTypePairwise, []uuid.UUID{f.configA, f.configB}, nil)
	token := async.NewToken(exp.ID)

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := f.runner().Run(context.Background(), exp, token)
		done <- result{out, err}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("search was not started")
	}
	token.Cancel()

	select {
	case r := <-done:
		if !errors.Is(r.err, ErrRunCancelled) {
			t.Errorf("expected ErrRunCancelled, got %v", r.err)
		}
		if r.out.Status != domain.ExperimentStatusError {
			t.Errorf("expected ERROR, got %s", r.out.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after cancel")
	}
}

func TestRunner_Run_AlreadyActive(t *testing.T) {
	f := newFixture("laptop")
	exp := f.stored(domain.ExperimentTypePairwise, []uuid.UUID{f.configA, f.configB}, nil)
	r := f.runner()

	r.markActive(exp.ID)
	defer r.markInactive(exp.ID)

	outcome, err := r.Run(context.Background(), exp, async.NewToken(exp.ID))
	if !errors.Is(err, ErrRunAlreadyActive) {
		t.Fatalf("expected ErrRunAlreadyActive, got %v", err)
	}
	if outcome.Status != domain.ExperimentStatusError || outcome.Error != ErrRunAlreadyActive.Error() {
		t.Errorf("expected ERROR outcome with %q, got %s %q", ErrRunAlreadyActive, outcome.Status, outcome.Error)
	}
	if f.experiments.updateCount() != 0 {
		t.Error("second run must not touch the stored experiment")
	}
}

func TestRunner_Run_PublishesFinished(t *testing.T) {
	f := newFixture("laptop")
	exp := f.stored(domain.ExperimentTypePairwise, []uuid.UUID{f.configA, f.configB}, nil)

	if _, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.publisher.payloads) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.publisher.payloads))
	}
	p := f.publisher.payloads[0]
	if p.ExperimentID != exp.ID || p.Status != "COMPLETED" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestRunner_Run_SingleFinalWrite(t *testing.T) {
	f := newFixture("laptop", "phone", "tablet")
	exp := f.stored(domain.ExperimentTypePointwise, []uuid.UUID{f.configA}, []uuid.UUID{f.judgmentID})

	if _, err := f.runner().Run(context.Background(), exp, async.NewToken(exp.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Свежий эксперимент уже в PROCESSING, поэтому запись одна.
	if got := f.experiments.updateCount(); got != 1 {
		t.Errorf("expected 1 update, got %d", got)
	}
}

// --- hybridVariants Tests ---

func TestHybridVariants(t *testing.T) {
	expID := uuid.New()
	variants := hybridVariants(expID, time.Now())

	if len(variants) != 99 {
		t.Fatalf("expected 99 variants, got %d", len(variants))
	}

	seen := make(map[string]bool)
	for _, v := range variants {
		if v.ExperimentID != expID {
			t.Error("variant should reference experiment")
		}
		w := v.Parameters.Weights
		if len(w) != 2 {
			t.Fatalf("expected 2 weights, got %v", w)
		}
		if math.Abs(w[0]+w[1]-1) > 1e-9 {
			t.Errorf("weights should sum to 1, got %v", w)
		}
		key := v.Parameters.String()
		if seen[key] {
			t.Errorf("duplicate variant %s", key)
		}
		seen[key] = true
	}
}
