package async

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// TaskCounter — реестр счётчиков незавершённых подзадач по ID запуска.
//
// Колбэк завершения вызывается ровно один раз, после последнего Decrement,
// и запись удаляется. Повторный Init для незавершённого запуска возвращает ошибку.
type TaskCounter struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*counterEntry
}

type counterEntry struct {
	remaining  int
	onComplete func()
}

// NewTaskCounter создаёт пустой реестр.
func NewTaskCounter(logger *slog.Logger) *TaskCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskCounter{
		logger:  logger,
		entries: make(map[uuid.UUID]*counterEntry),
	}
}

// Init регистрирует запуск с n подзадачами.
// При n == 0 onComplete вызывается сразу, запись не создаётся.
func (c *TaskCounter) Init(runID uuid.UUID, n int, onComplete func()) error {
	if n < 0 {
		return fmt.Errorf("init counter for %s: negative task count %d", runID, n)
	}

	c.mu.Lock()
	if _, exists := c.entries[runID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("init counter for %s: %w: run already in progress", runID, ErrInvalidState)
	}
	if n == 0 {
		c.mu.Unlock()
		onComplete()
		return nil
	}
	c.entries[runID] = &counterEntry{remaining: n, onComplete: onComplete}
	c.mu.Unlock()
	return nil
}

// Decrement отмечает завершение одной подзадачи.
func (c *TaskCounter) Decrement(runID uuid.UUID) error {
	c.mu.Lock()
	entry, ok := c.entries[runID]
	if !ok {
		c.mu.Unlock()
		c.logger.Error("task counter decremented below zero", "run_id", runID)
		return fmt.Errorf("decrement counter for %s: %w", runID, ErrCounterUnderflow)
	}
	entry.remaining--
	if entry.remaining > 0 {
		c.mu.Unlock()
		return nil
	}
	delete(c.entries, runID)
	c.mu.Unlock()

	entry.onComplete()
	return nil
}

// Outstanding возвращает число незавершённых подзадач (0, если записи нет).
func (c *TaskCounter) Outstanding(runID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[runID]; ok {
		return entry.remaining
	}
	return 0
}
