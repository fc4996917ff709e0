package scheduler

import (
	"fmt"

	"github.com/shaiso/Searchlab/internal/domain"
)

// Ошибки валидации расписаний. Обе оборачивают domain.ErrValidation.
var (
	// ErrInvalidSchedule — выражение пустое или не разбирается.
	ErrInvalidSchedule = fmt.Errorf("%w: invalid schedule", domain.ErrValidation)

	// ErrIntervalTooShort — срабатывания чаще минимального интервала.
	ErrIntervalTooShort = fmt.Errorf("%w: schedule interval too short", domain.ErrValidation)
)
