package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Searchlab/internal/domain"
)

// JobRepo — репозиторий для работы с scheduled_jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `id, cron_expr, timezone, enabled, last_run_at, created_at, updated_at`

// Create создаёт новый job.
// Если у эксперимента уже есть job, возвращает ErrAlreadyExists.
func (r *JobRepo) Create(ctx context.Context, job *domain.ScheduledJob) error {
	query := `
		INSERT INTO scheduled_jobs (id, cron_expr, timezone, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.CronExpr,
		job.Timezone,
		job.Enabled,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert scheduled job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список jobs с фильтрацией.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.ScheduledJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scheduled_jobs
		WHERE ($1::boolean IS NULL OR enabled = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.Enabled, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}
	return collectJobs(rows)
}

// ListEnabled возвращает все активные jobs.
func (r *JobRepo) ListEnabled(ctx context.Context) ([]domain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE enabled = true`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled jobs: %w", err)
	}
	return collectJobs(rows)
}

// Delete удаляет job.
func (r *JobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает job.
func (r *JobRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE scheduled_jobs SET enabled = $2, updated_at = NOW() WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRun записывает время последнего запуска.
func (r *JobRepo) RecordRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE scheduled_jobs SET last_run_at = $2, updated_at = NOW() WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	Enabled *bool
	Limit   int
	Offset  int
}

func collectJobs(rows pgx.Rows) ([]domain.ScheduledJob, error) {
	defer rows.Close()

	var jobs []domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.ScheduledJob, error) {
	var j domain.ScheduledJob
	err := row.Scan(
		&j.ID,
		&j.CronExpr,
		&j.Timezone,
		&j.Enabled,
		&j.LastRunAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan scheduled job: %w", err)
	}
	return &j, nil
}
