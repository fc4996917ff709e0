package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Searchlab/internal/domain"
	"github.com/shaiso/Searchlab/internal/scheduler"
)

// Experiment DTOs

// CreateExperimentRequest — запрос на создание эксперимента.
type CreateExperimentRequest struct {
	Type                   string      `json:"type"`
	QuerySetID             uuid.UUID   `json:"query_set_id"`
	SearchConfigurationIDs []uuid.UUID `json:"search_configuration_ids"`
	JudgmentIDs            []uuid.UUID `json:"judgment_ids,omitempty"`
	Size                   int         `json:"size,omitempty"`
}

// ExperimentResponse — ответ с экспериментом.
type ExperimentResponse struct {
	ID                     uuid.UUID                 `json:"id"`
	Type                   string                    `json:"type"`
	Status                 string                    `json:"status"`
	QuerySetID             uuid.UUID                 `json:"query_set_id"`
	SearchConfigurationIDs []uuid.UUID               `json:"search_configuration_ids"`
	JudgmentIDs            []uuid.UUID               `json:"judgment_ids,omitempty"`
	Size                   int                       `json:"size"`
	Scheduled              bool                      `json:"scheduled"`
	Results                []domain.ExperimentResult `json:"results"`
	Error                  string                    `json:"error,omitempty"`
	CreatedAt              time.Time                 `json:"created_at"`
	UpdatedAt              time.Time                 `json:"updated_at"`
}

// ExperimentFromDomain конвертирует domain.Experiment в ExperimentResponse.
func ExperimentFromDomain(e *domain.Experiment) ExperimentResponse {
	results := e.Results
	if results == nil {
		results = []domain.ExperimentResult{}
	}
	return ExperimentResponse{
		ID:                     e.ID,
		Type:                   e.Type.String(),
		Status:                 e.Status.String(),
		QuerySetID:             e.QuerySetID,
		SearchConfigurationIDs: e.SearchConfigurationIDs,
		JudgmentIDs:            e.JudgmentIDs,
		Size:                   e.Size,
		Scheduled:              e.Scheduled,
		Results:                results,
		Error:                  e.Error,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

// ExperimentSummary — эксперимент в списке, без результатов.
type ExperimentSummary struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Scheduled bool      `json:"scheduled"`
	Results   int       `json:"results"`
	CreatedAt time.Time `json:"created_at"`
}

// ExperimentSummaryFromDomain конвертирует domain.Experiment в ExperimentSummary.
func ExperimentSummaryFromDomain(e *domain.Experiment) ExperimentSummary {
	return ExperimentSummary{
		ID:        e.ID,
		Type:      e.Type.String(),
		Status:    e.Status.String(),
		Scheduled: e.Scheduled,
		Results:   len(e.Results),
		CreatedAt: e.CreatedAt,
	}
}

// Schedule DTOs

// ScheduleRequest — запрос на создание расписания.
type ScheduleRequest struct {
	CronExpr string `json:"cron_expr"`
	Timezone string `json:"timezone,omitempty"`
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	ID           uuid.UUID  `json:"id"`
	ExperimentID uuid.UUID  `json:"experiment_id"`
	CronExpr     string     `json:"cron_expr"`
	Timezone     string     `json:"timezone"`
	Enabled      bool       `json:"enabled"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.ScheduledJob в ScheduleResponse.
func ScheduleFromDomain(j *domain.ScheduledJob) ScheduleResponse {
	resp := ScheduleResponse{
		ID:           j.ID,
		ExperimentID: j.ExperimentID(),
		CronExpr:     j.CronExpr,
		Timezone:     j.Timezone,
		Enabled:      j.Enabled,
		LastRunAt:    j.LastRunAt,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
	if j.Enabled {
		if next, err := scheduler.NextRun(j.CronExpr, j.Timezone, time.Now()); err == nil {
			resp.NextRunAt = &next
		}
	}
	return resp
}

// HistoryResponse — запись истории запусков.
type HistoryResponse struct {
	ID           uuid.UUID `json:"id"`
	ExperimentID uuid.UUID `json:"experiment_id"`
	JobID        uuid.UUID `json:"job_id"`
	Timestamp    time.Time `json:"timestamp"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   int64     `json:"duration_ms"`
	Status       string    `json:"status"`
	Results      int       `json:"results"`
	Error        string    `json:"error,omitempty"`
}

// HistoryFromDomain конвертирует domain.RunHistoryRecord в HistoryResponse.
func HistoryFromDomain(h *domain.RunHistoryRecord) HistoryResponse {
	return HistoryResponse{
		ID:           h.ID,
		ExperimentID: h.ExperimentID,
		JobID:        h.JobID,
		Timestamp:    h.Timestamp,
		FinishedAt:   h.FinishedAt,
		DurationMs:   h.Duration().Milliseconds(),
		Status:       h.Status.String(),
		Results:      len(h.Results),
		Error:        h.Error,
	}
}

// Input DTOs

// CreateQuerySetRequest — запрос на создание набора запросов.
type CreateQuerySetRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Queries     []string `json:"queries"`
}

// CreateSearchConfigurationRequest — запрос на создание конфигурации поиска.
type CreateSearchConfigurationRequest struct {
	Name           string `json:"name"`
	Index          string `json:"index"`
	Query          string `json:"query"`
	SearchPipeline string `json:"search_pipeline,omitempty"`
}

// CreateJudgmentRequest — запрос на создание списка оценок.
type CreateJudgmentRequest struct {
	Name    string                     `json:"name"`
	Ratings map[string][]domain.Rating `json:"ratings"`
}
