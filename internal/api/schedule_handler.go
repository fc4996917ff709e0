package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Searchlab/internal/repo"
)

// ScheduleExperiment создаёт расписание для эксперимента.
// POST /api/v1/experiments/{id}/schedule
func (h *Handler) ScheduleExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "experiment")
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	job, err := h.schedules.Schedule(r.Context(), id, req.CronExpr, req.Timezone)
	if HandleError(w, h.logger, err, "experiment not found") {
		return
	}

	Created(w, ScheduleFromDomain(job))
}

// ListSchedules возвращает список расписаний.
// GET /api/v1/schedules?enabled=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	filter := repo.JobFilter{}

	if enabledStr := r.URL.Query().Get("enabled"); enabledStr != "" {
		enabled := enabledStr == "true"
		filter.Enabled = &enabled
	}
	filter.Limit, filter.Offset = pagination(r)

	jobs, err := h.schedules.ListJobs(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]ScheduleResponse, len(jobs))
	for i := range jobs {
		result[i] = ScheduleFromDomain(&jobs[i])
	}

	List(w, result, len(result))
}

// GetSchedule возвращает расписание по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "schedule")
	if !ok {
		return
	}

	job, err := h.schedules.GetJob(r.Context(), id)
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(job))
}

// Unschedule удаляет расписание. Выполняющийся запуск отменяется.
// DELETE /api/v1/schedules/{id}
func (h *Handler) Unschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "schedule")
	if !ok {
		return
	}

	if HandleError(w, h.logger, h.schedules.Unschedule(r.Context(), id), "schedule not found") {
		return
	}

	NoContent(w)
}
