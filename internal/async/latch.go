package async

import "sync"

// Latch — одноразовый countdown latch.
// Done закрывается, когда счётчик доходит до нуля; дальнейшие CountDown игнорируются.
type Latch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// NewLatch создаёт latch со счётчиком n.
func NewLatch(n int) *Latch {
	l := &Latch{count: n, done: make(chan struct{})}
	if n <= 0 {
		l.count = 0
		close(l.done)
	}
	return l
}

// CountDown уменьшает счётчик на единицу.
func (l *Latch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// Count возвращает текущее значение счётчика.
func (l *Latch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Done возвращает канал, закрытый при нулевом счётчике.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Wait блокируется до нулевого счётчика.
func (l *Latch) Wait() {
	<-l.done
}
