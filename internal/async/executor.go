package async

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor — пул с ограничением числа одновременно выполняемых задач.
type Executor struct {
	sem    *semaphore.Weighted
	size   int64
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewExecutor создаёт пул на size одновременных задач.
func NewExecutor(size int, logger *slog.Logger) *Executor {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
		logger: logger,
	}
}

// Go ставит fn в очередь. Вызывающий не блокируется: слот ожидается
// в отдельной горутине. Паника в fn логируется и не роняет процесс.
func (e *Executor) Go(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		// Acquire с Background не возвращает ошибку.
		_ = e.sem.Acquire(context.Background(), 1)
		defer e.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("executor task panicked", "panic", r)
			}
		}()
		fn()
	}()
}

// Size возвращает максимальное число одновременных задач.
func (e *Executor) Size() int {
	return int(e.size)
}

// Wait ждёт завершения всех поставленных задач.
func (e *Executor) Wait() {
	e.wg.Wait()
}
