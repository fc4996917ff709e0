package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/relevance"
	"github.com/shaiso/Searchlab/internal/search"
)

// pairwiseTask сравнивает выдачу двух конфигураций по одному запросу.
func (r *Runner) pairwiseTask(in *inputs, queryText string) subtask {
	a, b := in.configs[0], in.configs[1]

	return func(ctx context.Context) domain.ExperimentResult {
		res := domain.ExperimentResult{QueryText: queryText}

		docsA, err := r.searchDocs(ctx, a, queryText, in.size, nil)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		docsB, err := r.searchDocs(ctx, b, queryText, in.size, nil)
		if err != nil {
			res.Error = err.Error()
			return res
		}

		res.Snapshots = map[string][]string{
			a.ID.String(): docsA,
			b.ID.String(): docsB,
		}
		res.Metrics = relevance.Pairwise(docsA, docsB)
		return res
	}
}

// pointwiseTask оценивает выдачу одной конфигурации (или варианта гибридного
// поиска) по каждому списку judgments и сохраняет EvaluationResult.
func (r *Runner) pointwiseTask(exp *domain.Experiment, in *inputs, cfg *domain.SearchConfiguration, variant *domain.ExperimentVariant, queryText string) subtask {
	return func(ctx context.Context) domain.ExperimentResult {
		configID := cfg.ID
		res := domain.ExperimentResult{
			QueryText:             queryText,
			SearchConfigurationID: &configID,
		}

		var pipeline map[string]any
		var variantID *uuid.UUID
		if variant != nil {
			id := variant.ID
			variantID = &id
			res.VariantID = variantID
			pipeline = variant.Parameters.Pipeline()
		}

		docs, err := r.searchDocs(ctx, cfg, queryText, in.size, pipeline)
		if err != nil {
			res.Error = err.Error()
			return res
		}

		for _, j := range in.judgments {
			eval := &domain.EvaluationResult{
				ID:                    uuid.New(),
				ExperimentID:          exp.ID,
				SearchConfigurationID: cfg.ID,
				VariantID:             variantID,
				QueryText:             queryText,
				JudgmentID:            j.ID,
				DocIDs:                docs,
				Metrics:               relevance.Pointwise(docs, j.RatingsFor(queryText), in.size),
				CreatedAt:             time.Now(),
			}
			if err := r.evaluations.Create(ctx, eval); err != nil {
				res.Error = err.Error()
				return res
			}
			res.EvaluationIDs = append(res.EvaluationIDs, eval.ID)
			if len(in.judgments) == 1 {
				res.Metrics = eval.Metrics
			}
		}
		return res
	}
}

// searchDocs выполняет поиск по конфигурации и возвращает ID документов.
func (r *Runner) searchDocs(ctx context.Context, cfg *domain.SearchConfiguration, queryText string, size int, pipeline map[string]any) ([]string, error) {
	hits, err := r.searcher.Search(ctx, search.Request{
		Index:        cfg.Index,
		Query:        cfg.Query,
		QueryText:    queryText,
		Size:         size,
		PipelineName: cfg.SearchPipeline,
		Pipeline:     pipeline,
	})
	if err != nil {
		return nil, err
	}
	return search.DocIDs(hits), nil
}
