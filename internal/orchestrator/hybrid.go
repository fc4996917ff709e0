package orchestrator

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
)

var (
	normalizationTechniques = []string{"min_max", "l2", "z_score"}
	combinationTechniques   = []string{"arithmetic_mean", "harmonic_mean", "geometric_mean"}
)

// weightSteps — веса лексической части 0.0, 0.1, ..., 1.0.
const weightSteps = 10

// hybridVariants строит сетку параметров гибридного поиска:
// normalization × combination × вес.
func hybridVariants(experimentID uuid.UUID, now time.Time) []domain.ExperimentVariant {
	variants := make([]domain.ExperimentVariant, 0,
		len(normalizationTechniques)*len(combinationTechniques)*(weightSteps+1))

	for _, norm := range normalizationTechniques {
		for _, comb := range combinationTechniques {
			for i := 0; i <= weightSteps; i++ {
				w := float64(i) / weightSteps
				variants = append(variants, domain.ExperimentVariant{
					ID:           uuid.New(),
					ExperimentID: experimentID,
					Type:         domain.ExperimentTypeHybrid,
					Parameters: domain.HybridParams{
						Normalization: norm,
						Combination:   comb,
						Weights:       []float64{w, math.Round((1-w)*weightSteps) / weightSteps},
					},
					CreatedAt: now,
				})
			}
		}
	}
	return variants
}

// variantKey — ключ точки сетки: normalization, combination и веса.
func variantKey(p domain.HybridParams) string {
	return fmt.Sprintf("%s/%s/%v", p.Normalization, p.Combination, p.Weights)
}
