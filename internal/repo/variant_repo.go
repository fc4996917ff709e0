package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Searchlab/internal/domain"
)

// VariantRepo — репозиторий вариантов гибридного поиска.
type VariantRepo struct {
	pool *pgxpool.Pool
}

// NewVariantRepo создаёт новый VariantRepo.
func NewVariantRepo(pool *pgxpool.Pool) *VariantRepo {
	return &VariantRepo{pool: pool}
}

// CreateBatch сохраняет варианты одним batch-запросом.
func (r *VariantRepo) CreateBatch(ctx context.Context, variants []domain.ExperimentVariant) error {
	if len(variants) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, v := range variants {
		paramsJSON, err := json.Marshal(v.Parameters)
		if err != nil {
			return fmt.Errorf("marshal variant parameters: %w", err)
		}
		batch.Queue(`
			INSERT INTO experiment_variants (id, experiment_id, type, parameters, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, v.ID, v.ExperimentID, v.Type, paramsJSON, v.CreatedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range variants {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}
	return nil
}

// ListByExperiment возвращает варианты эксперимента.
func (r *VariantRepo) ListByExperiment(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentVariant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, experiment_id, type, parameters, created_at
		FROM experiment_variants
		WHERE experiment_id = $1
		ORDER BY created_at
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.ExperimentVariant
	for rows.Next() {
		var v domain.ExperimentVariant
		var paramsJSON []byte
		if err := rows.Scan(&v.ID, &v.ExperimentID, &v.Type, &paramsJSON, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if err := json.Unmarshal(paramsJSON, &v.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal variant parameters: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// DeleteByExperimentID удаляет варианты эксперимента.
func (r *VariantRepo) DeleteByExperimentID(ctx context.Context, experimentID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM experiment_variants WHERE experiment_id = $1`, experimentID)
	if err != nil {
		return 0, fmt.Errorf("delete variants: %w", err)
	}
	return result.RowsAffected(), nil
}
