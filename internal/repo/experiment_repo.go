package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Searchlab/internal/domain"
)

// ExperimentRepo — репозиторий для работы с experiments.
type ExperimentRepo struct {
	pool *pgxpool.Pool
}

// NewExperimentRepo создаёт новый ExperimentRepo.
func NewExperimentRepo(pool *pgxpool.Pool) *ExperimentRepo {
	return &ExperimentRepo{pool: pool}
}

const experimentColumns = `id, type, status, query_set_id, search_configuration_ids, judgment_ids,
	       size, scheduled, results, error, created_at, updated_at`

// Create создаёт новый эксперимент.
func (r *ExperimentRepo) Create(ctx context.Context, e *domain.Experiment) error {
	configsJSON, judgmentsJSON, resultsJSON, err := marshalExperiment(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO experiments (id, type, status, query_set_id, search_configuration_ids, judgment_ids,
		                         size, scheduled, results, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.Type,
		e.Status,
		e.QuerySetID,
		configsJSON,
		judgmentsJSON,
		e.Size,
		e.Scheduled,
		resultsJSON,
		nullString(e.Error),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}
	return nil
}

// GetByID возвращает эксперимент по ID.
func (r *ExperimentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = $1`
	return scanExperiment(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список экспериментов с фильтрацией.
func (r *ExperimentRepo) List(ctx context.Context, filter ExperimentFilter) ([]domain.Experiment, error) {
	query := `
		SELECT ` + experimentColumns + `
		FROM experiments
		WHERE ($1::text IS NULL OR type = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		filter.Type,
		filter.Status,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []domain.Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, *e)
	}
	return experiments, rows.Err()
}

// Update записывает статус, результаты и ошибку эксперимента.
func (r *ExperimentRepo) Update(ctx context.Context, e *domain.Experiment) error {
	resultsJSON, err := json.Marshal(e.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	query := `
		UPDATE experiments
		SET status = $2, scheduled = $3, results = $4, error = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Status,
		e.Scheduled,
		resultsJSON,
		nullString(e.Error),
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update experiment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetScheduled меняет флаг scheduled.
func (r *ExperimentRepo) SetScheduled(ctx context.Context, id uuid.UUID, scheduled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE experiments SET scheduled = $2, updated_at = $3 WHERE id = $1
	`, id, scheduled, time.Now())
	if err != nil {
		return fmt.Errorf("set scheduled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет эксперимент.
func (r *ExperimentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// ExperimentFilter — параметры фильтрации экспериментов.
type ExperimentFilter struct {
	Type   *string
	Status *string
	Limit  int
	Offset int
}

func marshalExperiment(e *domain.Experiment) (configs, judgments, results []byte, err error) {
	if configs, err = json.Marshal(e.SearchConfigurationIDs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal search configuration ids: %w", err)
	}
	if judgments, err = json.Marshal(e.JudgmentIDs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal judgment ids: %w", err)
	}
	if results, err = json.Marshal(e.Results); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal results: %w", err)
	}
	return configs, judgments, results, nil
}

func scanExperiment(row pgx.Row) (*domain.Experiment, error) {
	var e domain.Experiment
	var configsJSON, judgmentsJSON, resultsJSON []byte
	var errText *string

	err := row.Scan(
		&e.ID,
		&e.Type,
		&e.Status,
		&e.QuerySetID,
		&configsJSON,
		&judgmentsJSON,
		&e.Size,
		&e.Scheduled,
		&resultsJSON,
		&errText,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan experiment: %w", err)
	}

	if err := json.Unmarshal(configsJSON, &e.SearchConfigurationIDs); err != nil {
		return nil, fmt.Errorf("unmarshal search configuration ids: %w", err)
	}
	if judgmentsJSON != nil {
		if err := json.Unmarshal(judgmentsJSON, &e.JudgmentIDs); err != nil {
			return nil, fmt.Errorf("unmarshal judgment ids: %w", err)
		}
	}
	e.Results = []domain.ExperimentResult{}
	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &e.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	if errText != nil {
		e.Error = *errText
	}

	return &e, nil
}
