package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Searchlab/internal/settings"
)

// cronParser — парсер cron-выражений: пять полей и дескрипторы вида @hourly.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validator проверяет cron-выражения расписаний.
type Validator struct {
	settings *settings.Store
	now      func() time.Time
}

// NewValidator создаёт Validator. Минимальный интервал читается
// из текущего снапшота настроек при каждой проверке.
func NewValidator(store *settings.Store) *Validator {
	if store == nil {
		store = settings.NewStore(nil, "", nil)
	}
	return &Validator{settings: store, now: time.Now}
}

// Validate проверяет выражение и часовой пояс.
//
// Интервал оценивается по двум ближайшим срабатываниям, поэтому
// выражения с неравномерным шагом проверяются только по первому интервалу.
func (v *Validator) Validate(cronExpr, timezone string) error {
	if strings.TrimSpace(cronExpr) == "" {
		return fmt.Errorf("%w: cron expression is empty", ErrInvalidSchedule)
	}

	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("%w: cron expression %q: %v", ErrInvalidSchedule, cronExpr, err)
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, timezone)
		}
	}

	minimum := v.settings.Get().Scheduler.MinimumInterval
	first := sched.Next(v.now().In(loc))
	second := sched.Next(first)
	if interval := second.Sub(first); interval < minimum {
		return fmt.Errorf("%w: cron expression %q fires every %s, minimum interval is %s",
			ErrIntervalTooShort, cronExpr, interval, minimum)
	}
	return nil
}

// NextRun вычисляет следующее срабатывание после from.
// Невалидный часовой пояс заменяется на UTC.
func NextRun(cronExpr, timezone string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	next := sched.Next(from.In(location(timezone)))
	return next.UTC(), nil // в UTC для ответов API
}

// location загружает часовой пояс, при ошибке возвращает UTC.
func location(timezone string) *time.Location {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// cronSpec собирает спецификацию для cron.Cron с учётом часового пояса.
func cronSpec(cronExpr, timezone string) string {
	if timezone == "" || timezone == "UTC" {
		return cronExpr
	}
	return "CRON_TZ=" + timezone + " " + cronExpr
}
