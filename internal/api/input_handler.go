package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
)

// CreateQuerySet создаёт набор запросов.
// POST /api/v1/query-sets
func (h *Handler) CreateQuerySet(w http.ResponseWriter, r *http.Request) {
	var req CreateQuerySetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		BadRequest(w, "name is required")
		return
	}

	qs := &domain.QuerySet{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Queries:     make([]domain.Query, 0, len(req.Queries)),
		CreatedAt:   time.Now(),
	}
	for _, q := range req.Queries {
		if q = strings.TrimSpace(q); q != "" {
			qs.Queries = append(qs.Queries, domain.Query{QueryText: q})
		}
	}

	if HandleError(w, h.logger, h.querySets.Create(r.Context(), qs), "") {
		return
	}

	Created(w, qs)
}

// GetQuerySet возвращает набор запросов.
// GET /api/v1/query-sets/{id}
func (h *Handler) GetQuerySet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "query set")
	if !ok {
		return
	}

	qs, err := h.querySets.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "query set not found") {
		return
	}

	Success(w, qs)
}

// CreateSearchConfiguration создаёт конфигурацию поиска.
// POST /api/v1/search-configurations
func (h *Handler) CreateSearchConfiguration(w http.ResponseWriter, r *http.Request) {
	var req CreateSearchConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	cfg := &domain.SearchConfiguration{
		ID:             uuid.New(),
		Name:           req.Name,
		Index:          req.Index,
		Query:          req.Query,
		SearchPipeline: req.SearchPipeline,
		CreatedAt:      time.Now(),
	}
	if err := cfg.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if HandleError(w, h.logger, h.searchConfigs.Create(r.Context(), cfg), "") {
		return
	}

	Created(w, cfg)
}

// GetSearchConfiguration возвращает конфигурацию поиска.
// GET /api/v1/search-configurations/{id}
func (h *Handler) GetSearchConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "search configuration")
	if !ok {
		return
	}

	cfg, err := h.searchConfigs.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "search configuration not found") {
		return
	}

	Success(w, cfg)
}

// CreateJudgment создаёт список оценок.
// POST /api/v1/judgments
func (h *Handler) CreateJudgment(w http.ResponseWriter, r *http.Request) {
	var req CreateJudgmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		BadRequest(w, "name is required")
		return
	}

	j := &domain.JudgmentSet{
		ID:        uuid.New(),
		Name:      req.Name,
		Ratings:   req.Ratings,
		CreatedAt: time.Now(),
	}
	if j.Ratings == nil {
		j.Ratings = map[string][]domain.Rating{}
	}

	if HandleError(w, h.logger, h.judgments.Create(r.Context(), j), "") {
		return
	}

	Created(w, j)
}

// GetJudgment возвращает список оценок.
// GET /api/v1/judgments/{id}
func (h *Handler) GetJudgment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "judgment")
	if !ok {
		return
	}

	j, err := h.judgments.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "judgment not found") {
		return
	}

	Success(w, j)
}
