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

// Входные данные экспериментов: наборы запросов, конфигурации поиска, judgments.
// Все три сущности неизменяемы после создания.

// QuerySetRepo — репозиторий наборов запросов.
type QuerySetRepo struct {
	pool *pgxpool.Pool
}

// NewQuerySetRepo создаёт новый QuerySetRepo.
func NewQuerySetRepo(pool *pgxpool.Pool) *QuerySetRepo {
	return &QuerySetRepo{pool: pool}
}

// Create создаёт набор запросов.
func (r *QuerySetRepo) Create(ctx context.Context, qs *domain.QuerySet) error {
	queriesJSON, err := json.Marshal(qs.Queries)
	if err != nil {
		return fmt.Errorf("marshal queries: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO query_sets (id, name, description, queries, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, qs.ID, qs.Name, nullString(qs.Description), queriesJSON, qs.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert query set: %w", err)
	}
	return nil
}

// GetByID возвращает набор запросов по ID.
func (r *QuerySetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.QuerySet, error) {
	var qs domain.QuerySet
	var description *string
	var queriesJSON []byte

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, queries, created_at FROM query_sets WHERE id = $1
	`, id).Scan(&qs.ID, &qs.Name, &description, &queriesJSON, &qs.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan query set: %w", err)
	}
	if description != nil {
		qs.Description = *description
	}
	if err := json.Unmarshal(queriesJSON, &qs.Queries); err != nil {
		return nil, fmt.Errorf("unmarshal queries: %w", err)
	}
	return &qs, nil
}

// SearchConfigRepo — репозиторий конфигураций поиска.
type SearchConfigRepo struct {
	pool *pgxpool.Pool
}

// NewSearchConfigRepo создаёт новый SearchConfigRepo.
func NewSearchConfigRepo(pool *pgxpool.Pool) *SearchConfigRepo {
	return &SearchConfigRepo{pool: pool}
}

// Create создаёт конфигурацию поиска.
func (r *SearchConfigRepo) Create(ctx context.Context, c *domain.SearchConfiguration) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO search_configurations (id, name, index_name, query, search_pipeline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Index, c.Query, nullString(c.SearchPipeline), c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert search configuration: %w", err)
	}
	return nil
}

// GetByID возвращает конфигурацию поиска по ID.
func (r *SearchConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SearchConfiguration, error) {
	var c domain.SearchConfiguration
	var pipeline *string

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, index_name, query, search_pipeline, created_at
		FROM search_configurations WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Index, &c.Query, &pipeline, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan search configuration: %w", err)
	}
	if pipeline != nil {
		c.SearchPipeline = *pipeline
	}
	return &c, nil
}

// JudgmentRepo — репозиторий списков оценок релевантности.
type JudgmentRepo struct {
	pool *pgxpool.Pool
}

// NewJudgmentRepo создаёт новый JudgmentRepo.
func NewJudgmentRepo(pool *pgxpool.Pool) *JudgmentRepo {
	return &JudgmentRepo{pool: pool}
}

// Create создаёт список оценок.
func (r *JudgmentRepo) Create(ctx context.Context, j *domain.JudgmentSet) error {
	ratingsJSON, err := json.Marshal(j.Ratings)
	if err != nil {
		return fmt.Errorf("marshal ratings: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO judgments (id, name, ratings, created_at) VALUES ($1, $2, $3, $4)
	`, j.ID, j.Name, ratingsJSON, j.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert judgments: %w", err)
	}
	return nil
}

// GetByID возвращает список оценок по ID.
func (r *JudgmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.JudgmentSet, error) {
	var j domain.JudgmentSet
	var ratingsJSON []byte

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, ratings, created_at FROM judgments WHERE id = $1
	`, id).Scan(&j.ID, &j.Name, &ratingsJSON, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan judgments: %w", err)
	}
	if err := json.Unmarshal(ratingsJSON, &j.Ratings); err != nil {
		return nil, fmt.Errorf("unmarshal ratings: %w", err)
	}
	return &j, nil
}
