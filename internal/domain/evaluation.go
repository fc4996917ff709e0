package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EvaluationResult — метрики одной пары запрос × конфигурация (× вариант)
// по одному списку judgments.
type EvaluationResult struct {
	ID                    uuid.UUID          `json:"id"`
	ExperimentID          uuid.UUID          `json:"experiment_id"`
	SearchConfigurationID uuid.UUID          `json:"search_configuration_id"`
	VariantID             *uuid.UUID         `json:"variant_id,omitempty"`
	QueryText             string             `json:"query_text"`
	JudgmentID            uuid.UUID          `json:"judgment_id"`
	DocIDs                []string           `json:"doc_ids"`
	Metrics               map[string]float64 `json:"metrics"`
	CreatedAt             time.Time          `json:"created_at"`
}

// ExperimentVariant — один набор параметров гибридного поиска.
type ExperimentVariant struct {
	ID           uuid.UUID      `json:"id"`
	ExperimentID uuid.UUID      `json:"experiment_id"`
	Type         ExperimentType `json:"type"`
	Parameters   HybridParams   `json:"parameters"`
	CreatedAt    time.Time      `json:"created_at"`
}

// HybridParams — параметры normalization-processor.
type HybridParams struct {
	// Normalization — min_max, l2 или z_score.
	Normalization string `json:"normalization"`

	// Combination — arithmetic_mean, harmonic_mean или geometric_mean.
	Combination string `json:"combination"`

	// Weights — веса лексической и нейронной частей запроса.
	Weights []float64 `json:"weights"`
}

// String возвращает короткое описание, например "min_max/arithmetic_mean/0.3".
func (p HybridParams) String() string {
	if len(p.Weights) == 0 {
		return p.Normalization + "/" + p.Combination
	}
	return fmt.Sprintf("%s/%s/%.1f", p.Normalization, p.Combination, p.Weights[0])
}

// Pipeline возвращает описание временного search pipeline для запроса.
func (p HybridParams) Pipeline() map[string]any {
	return map[string]any{
		"phase_results_processors": []any{
			map[string]any{
				"normalization-processor": map[string]any{
					"normalization": map[string]any{"technique": p.Normalization},
					"combination": map[string]any{
						"technique":  p.Combination,
						"parameters": map[string]any{"weights": p.Weights},
					},
				},
			},
		},
	}
}
