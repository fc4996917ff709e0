package orchestrator

import (
	"errors"
	"fmt"

	"github.com/shaiso/Searchlab/internal/domain"
)

// Ошибки оркестратора.
var (
	// ErrInputNotFound — набор запросов, конфигурация или judgments не найдены.
	ErrInputNotFound = fmt.Errorf("%w: referenced input not found", domain.ErrValidation)

	// ErrRunAlreadyActive — эксперимент уже выполняется в этом процессе.
	ErrRunAlreadyActive = errors.New("experiment run already active")

	// ErrRunCancelled — запуск отменён (таймаут, удаление или остановка процесса).
	ErrRunCancelled = errors.New("experiment run cancelled")

	// ErrAllSubtasksFailed — ни одна подзадача не завершилась успешно.
	ErrAllSubtasksFailed = errors.New("all subtasks failed")

	// ErrServiceStopped — сервис остановлен, новые запуски не принимаются.
	ErrServiceStopped = errors.New("experiment service stopped")
)
