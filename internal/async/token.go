package async

import (
	"sync"

	"github.com/google/uuid"
)

// Token — токен отмены одного запуска эксперимента.
//
// Флаг отмены монотонный: после Cancel токен остаётся отменённым.
// Колбэки, зарегистрированные до Cancel, вызываются в порядке регистрации
// синхронно внутри первого Cancel. Колбэки, зарегистрированные после,
// вызываются сразу в OnCancel. Каждый колбэк вызывается ровно один раз.
type Token struct {
	id uuid.UUID

	mu        sync.Mutex
	cancelled bool
	callbacks []func()
	done      chan struct{}
}

// NewToken создаёт токен для запуска.
func NewToken(runID uuid.UUID) *Token {
	return &Token{
		id:   runID,
		done: make(chan struct{}),
	}
}

// ID возвращает ID запуска.
func (t *Token) ID() uuid.UUID {
	return t.id
}

// Cancel отменяет токен. Повторные вызовы ничего не делают.
func (t *Token) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	// Вне блокировки: колбэк может сам вызвать OnCancel или IsCancelled.
	for _, cb := range callbacks {
		cb()
	}
}

// OnCancel регистрирует колбэк. Если токен уже отменён, колбэк
// вызывается немедленно в текущей горутине.
func (t *Token) OnCancel(cb func()) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		cb()
		return
	}
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

// IsCancelled возвращает true, если токен отменён.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done возвращает канал, который закрывается при отмене.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
