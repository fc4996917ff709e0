package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledJob — расписание повторного запуска эксперимента.
//
// ID совпадает с ID эксперимента: у эксперимента не больше одного
// расписания. Срабатывания порождает cron-хост (scheduler.Trigger),
// взаимное исключение между инстансами обеспечивает распределённая блокировка.
type ScheduledJob struct {
	// ID — идентификатор job, он же ID эксперимента.
	ID uuid.UUID `json:"id"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 9 * * *"     — каждый день в 9:00
	//   "*/15 * * * *"  — каждые 15 минут
	//   "@hourly"       — каждый час
	CronExpr string `json:"cron_expr"`

	// Timezone — часовой пояс для вычисления срабатываний.
	// По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности.
	// Если false, Trigger не регистрирует job.
	Enabled bool `json:"enabled"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewScheduledJob создаёт активный job для эксперимента.
func NewScheduledJob(experimentID uuid.UUID, cronExpr, timezone string) *ScheduledJob {
	if timezone == "" {
		timezone = "UTC"
	}
	now := time.Now()
	return &ScheduledJob{
		ID:        experimentID,
		CronExpr:  cronExpr,
		Timezone:  timezone,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExperimentID возвращает ID эксперимента, которым владеет job.
func (j *ScheduledJob) ExperimentID() uuid.UUID {
	return j.ID
}

// RecordRun записывает информацию о запуске.
func (j *ScheduledJob) RecordRun(at time.Time) {
	j.LastRunAt = &at
	j.UpdatedAt = time.Now()
}
