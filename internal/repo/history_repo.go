package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Searchlab/internal/domain"
)

// HistoryRepo — репозиторий истории запланированных запусков.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Create добавляет запись истории.
func (r *HistoryRepo) Create(ctx context.Context, h *domain.RunHistoryRecord) error {
	resultsJSON, err := json.Marshal(h.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	query := `
		INSERT INTO run_history (id, experiment_id, job_id, timestamp, finished_at, status, results, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		h.ID,
		h.ExperimentID,
		h.JobID,
		h.Timestamp,
		h.FinishedAt,
		h.Status,
		resultsJSON,
		nullString(h.Error),
	)
	if err != nil {
		return fmt.Errorf("insert run history: %w", err)
	}
	return nil
}

// ListByExperiment возвращает историю эксперимента, новые записи первыми.
func (r *HistoryRepo) ListByExperiment(ctx context.Context, experimentID uuid.UUID, limit, offset int) ([]domain.RunHistoryRecord, error) {
	query := `
		SELECT id, experiment_id, job_id, timestamp, finished_at, status, results, error
		FROM run_history
		WHERE experiment_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, experimentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list run history: %w", err)
	}
	defer rows.Close()

	var records []domain.RunHistoryRecord
	for rows.Next() {
		var h domain.RunHistoryRecord
		var resultsJSON []byte
		var errText *string
		if err := rows.Scan(
			&h.ID,
			&h.ExperimentID,
			&h.JobID,
			&h.Timestamp,
			&h.FinishedAt,
			&h.Status,
			&resultsJSON,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("scan run history: %w", err)
		}
		if resultsJSON != nil {
			if err := json.Unmarshal(resultsJSON, &h.Results); err != nil {
				return nil, fmt.Errorf("unmarshal results: %w", err)
			}
		}
		if errText != nil {
			h.Error = *errText
		}
		records = append(records, h)
	}
	return records, rows.Err()
}

// DeleteByExperimentID удаляет историю эксперимента и возвращает число удалённых записей.
func (r *HistoryRepo) DeleteByExperimentID(ctx context.Context, experimentID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM run_history WHERE experiment_id = $1`, experimentID)
	if err != nil {
		return 0, fmt.Errorf("delete run history: %w", err)
	}
	return result.RowsAffected(), nil
}
