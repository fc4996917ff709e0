package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Searchlab/internal/domain"
)

// EvaluationRepo — репозиторий результатов оценки.
type EvaluationRepo struct {
	pool *pgxpool.Pool
}

// NewEvaluationRepo создаёт новый EvaluationRepo.
func NewEvaluationRepo(pool *pgxpool.Pool) *EvaluationRepo {
	return &EvaluationRepo{pool: pool}
}

const evaluationColumns = `id, experiment_id, search_configuration_id, variant_id, query_text,
	       judgment_id, doc_ids, metrics, created_at`

// Create сохраняет результат оценки.
func (r *EvaluationRepo) Create(ctx context.Context, e *domain.EvaluationResult) error {
	docsJSON, err := json.Marshal(e.DocIDs)
	if err != nil {
		return fmt.Errorf("marshal doc ids: %w", err)
	}
	metricsJSON, err := json.Marshal(e.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	query := `
		INSERT INTO evaluation_results (` + evaluationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.ExperimentID,
		e.SearchConfigurationID,
		nullUUID(e.VariantID),
		e.QueryText,
		e.JudgmentID,
		docsJSON,
		metricsJSON,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation result: %w", err)
	}
	return nil
}

// GetByID возвращает результат оценки по ID.
func (r *EvaluationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EvaluationResult, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluation_results WHERE id = $1`
	return scanEvaluation(r.pool.QueryRow(ctx, query, id))
}

// ListByExperiment возвращает результаты оценки эксперимента.
func (r *EvaluationRepo) ListByExperiment(ctx context.Context, experimentID uuid.UUID) ([]domain.EvaluationResult, error) {
	query := `
		SELECT ` + evaluationColumns + `
		FROM evaluation_results
		WHERE experiment_id = $1
		ORDER BY query_text, created_at
	`
	rows, err := r.pool.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list evaluation results: %w", err)
	}
	defer rows.Close()

	var results []domain.EvaluationResult
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *e)
	}
	return results, rows.Err()
}

// DeleteByExperimentID удаляет результаты эксперимента.
func (r *EvaluationRepo) DeleteByExperimentID(ctx context.Context, experimentID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM evaluation_results WHERE experiment_id = $1`, experimentID)
	if err != nil {
		return 0, fmt.Errorf("delete evaluation results: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanEvaluation(row pgx.Row) (*domain.EvaluationResult, error) {
	var e domain.EvaluationResult
	var docsJSON, metricsJSON []byte

	err := row.Scan(
		&e.ID,
		&e.ExperimentID,
		&e.SearchConfigurationID,
		&e.VariantID,
		&e.QueryText,
		&e.JudgmentID,
		&docsJSON,
		&metricsJSON,
		&e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan evaluation result: %w", err)
	}

	if err := json.Unmarshal(docsJSON, &e.DocIDs); err != nil {
		return nil, fmt.Errorf("unmarshal doc ids: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &e.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return &e, nil
}
