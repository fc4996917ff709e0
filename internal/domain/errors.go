package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — корневая ошибка валидации входных данных.
	// Все ошибки валидации (эксперимента, расписания) оборачивают её,
	// чтобы API мог ответить 400 одной проверкой errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidExperiment — некорректное описание эксперимента.
	ErrInvalidExperiment = fmt.Errorf("%w: invalid experiment", ErrValidation)
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidExperiment}, args...)...)
}
