package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Searchlab/internal/orchestrator"
	"github.com/shaiso/Searchlab/internal/repo"
)

// ListExperiments возвращает список экспериментов с фильтрацией.
// GET /api/v1/experiments?type=...&status=...&limit=...&offset=...
func (h *Handler) ListExperiments(w http.ResponseWriter, r *http.Request) {
	filter := repo.ExperimentFilter{}

	if typ := r.URL.Query().Get("type"); typ != "" {
		filter.Type = &typ
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = &status
	}
	filter.Limit, filter.Offset = pagination(r)

	experiments, err := h.experiments.ListExperiments(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]ExperimentSummary, len(experiments))
	for i := range experiments {
		result[i] = ExperimentSummaryFromDomain(&experiments[i])
	}

	List(w, result, len(result))
}

// CreateExperiment создаёт эксперимент и запускает его.
// POST /api/v1/experiments
//
// Ответ 202: эксперимент выполняется в фоне, статус PROCESSING.
func (h *Handler) CreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req CreateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	exp, err := h.experiments.CreateExperiment(r.Context(), orchestrator.CreateRequest{
		Type:                   req.Type,
		QuerySetID:             req.QuerySetID,
		SearchConfigurationIDs: req.SearchConfigurationIDs,
		JudgmentIDs:            req.JudgmentIDs,
		Size:                   req.Size,
	})
	if HandleError(w, h.logger, err, "") {
		return
	}

	JSON(w, http.StatusAccepted, DataResponse{Data: ExperimentFromDomain(exp)})
}

// GetExperiment возвращает эксперимент по ID.
// GET /api/v1/experiments/{id}
func (h *Handler) GetExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "experiment")
	if !ok {
		return
	}

	exp, err := h.experiments.GetExperiment(r.Context(), id)
	if HandleError(w, h.logger, err, "experiment not found") {
		return
	}

	Success(w, ExperimentFromDomain(exp))
}

// DeleteExperiment удаляет эксперимент и зависимые записи.
// DELETE /api/v1/experiments/{id}
func (h *Handler) DeleteExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "experiment")
	if !ok {
		return
	}

	if HandleError(w, h.logger, h.experiments.DeleteExperiment(r.Context(), id), "experiment not found") {
		return
	}

	NoContent(w)
}

// ListEvaluations возвращает результаты оценки эксперимента.
// GET /api/v1/experiments/{id}/evaluations
func (h *Handler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "experiment")
	if !ok {
		return
	}

	evaluations, err := h.evaluations.ListByExperiment(r.Context(), id)
	if HandleError(w, h.logger, err, "experiment not found") {
		return
	}

	List(w, evaluations, len(evaluations))
}

// ListHistory возвращает историю запланированных запусков.
// GET /api/v1/experiments/{id}/history?limit=...&offset=...
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "experiment")
	if !ok {
		return
	}

	limit, offset := pagination(r)
	records, err := h.schedules.History(r.Context(), id, limit, offset)
	if HandleError(w, h.logger, err, "experiment not found") {
		return
	}

	result := make([]HistoryResponse, len(records))
	for i := range records {
		result[i] = HistoryFromDomain(&records[i])
	}

	List(w, result, len(result))
}
