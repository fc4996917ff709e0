package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Experiments
	mux.Handle("GET /api/v1/experiments", chain(http.HandlerFunc(h.ListExperiments)))
	mux.Handle("POST /api/v1/experiments", chain(http.HandlerFunc(h.CreateExperiment)))
	mux.Handle("GET /api/v1/experiments/{id}", chain(http.HandlerFunc(h.GetExperiment)))
	mux.Handle("DELETE /api/v1/experiments/{id}", chain(http.HandlerFunc(h.DeleteExperiment)))
	mux.Handle("GET /api/v1/experiments/{id}/evaluations", chain(http.HandlerFunc(h.ListEvaluations)))
	mux.Handle("GET /api/v1/experiments/{id}/history", chain(http.HandlerFunc(h.ListHistory)))

	// Schedules
	mux.Handle("POST /api/v1/experiments/{id}/schedule", chain(http.HandlerFunc(h.ScheduleExperiment)))
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.Unschedule)))

	// Inputs
	mux.Handle("POST /api/v1/query-sets", chain(http.HandlerFunc(h.CreateQuerySet)))
	mux.Handle("GET /api/v1/query-sets/{id}", chain(http.HandlerFunc(h.GetQuerySet)))
	mux.Handle("POST /api/v1/search-configurations", chain(http.HandlerFunc(h.CreateSearchConfiguration)))
	mux.Handle("GET /api/v1/search-configurations/{id}", chain(http.HandlerFunc(h.GetSearchConfiguration)))
	mux.Handle("POST /api/v1/judgments", chain(http.HandlerFunc(h.CreateJudgment)))
	mux.Handle("GET /api/v1/judgments/{id}", chain(http.HandlerFunc(h.GetJudgment)))
}
