package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunHistoryRecord — запись об одном срабатывании расписания.
//
// Записи только добавляются: по одной на каждый запуск,
// включая запуски, завершившиеся ошибкой или таймаутом.
type RunHistoryRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ExperimentID — эксперимент, который запускался.
	ExperimentID uuid.UUID `json:"experiment_id"`

	// JobID — ScheduledJob, который породил запуск.
	JobID uuid.UUID `json:"job_id"`

	// Timestamp — время начала запуска.
	Timestamp time.Time `json:"timestamp"`

	// FinishedAt — время записи итога.
	FinishedAt time.Time `json:"finished_at"`

	// Status — итог запуска: COMPLETED или ERROR.
	Status ExperimentStatus `json:"status"`

	// Results — результаты запуска.
	Results []ExperimentResult `json:"results"`

	// Error — текст ошибки, если Status = ERROR.
	Error string `json:"error,omitempty"`
}

// NewRunHistoryRecord создаёт запись с временем начала запуска.
func NewRunHistoryRecord(jobID, experimentID uuid.UUID, startedAt time.Time) *RunHistoryRecord {
	return &RunHistoryRecord{
		ID:           uuid.New(),
		ExperimentID: experimentID,
		JobID:        jobID,
		Timestamp:    startedAt,
		Results:      []ExperimentResult{},
	}
}

// Duration возвращает продолжительность запуска.
func (h *RunHistoryRecord) Duration() time.Duration {
	if h.FinishedAt.IsZero() {
		return 0
	}
	return h.FinishedAt.Sub(h.Timestamp)
}

// Complete фиксирует успешный итог.
func (h *RunHistoryRecord) Complete(results []ExperimentResult) {
	if results != nil {
		h.Results = results
	}
	h.Status = ExperimentStatusCompleted
	h.FinishedAt = time.Now()
}

// Fail фиксирует итог с ошибкой.
func (h *RunHistoryRecord) Fail(err string, results []ExperimentResult) {
	if results != nil {
		h.Results = results
	}
	h.Status = ExperimentStatusError
	h.Error = err
	h.FinishedAt = time.Now()
}
