package async

import (
	"context"
	"fmt"
	"time"
)

// RunWithTimeout выполняет op с ограничением по времени d.
//
// Когда срабатывает таймер, token отменяется, а контекст op отменяется
// с причиной ErrTimeout. В любом случае результат возвращается только после
// того, как drain дошёл до нуля: ресурсы запуска не освобождаются, пока op
// не завершил уборку. Таймер, сработавший во время дренажа после нормального
// завершения op, отменяет token, но не меняет результат.
//
// d <= 0 отключает таймер. Отмена родительского ctx ведёт себя как таймер,
// но возвращает ошибку ctx. Паника в op возвращается как ErrPanic.
func RunWithTimeout[T any](ctx context.Context, d time.Duration, token *Token, drain *Latch, op func(ctx context.Context) (T, error)) (T, error) {
	opCtx, cancelOp := context.WithCancelCause(ctx)
	defer cancelOp(nil)

	type result struct {
		value T
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
			resultCh <- res
		}()
		res.value, res.err = op(opCtx)
	}()

	var timerC <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timerC = timer.C
	}

	var (
		res       result
		finished  bool
		timedOut  bool
		parentErr error
	)

	select {
	case res = <-resultCh:
		finished = true
	case <-timerC:
		timedOut = true
		token.Cancel()
		cancelOp(ErrTimeout)
	case <-ctx.Done():
		parentErr = ctx.Err()
		token.Cancel()
		cancelOp(context.Cause(ctx))
	}

	if !finished {
		timerC = nil
	}
	for drained := false; !drained; {
		select {
		case <-drain.Done():
			drained = true
		case <-timerC:
			timerC = nil
			token.Cancel()
			cancelOp(ErrTimeout)
		}
	}

	var zero T
	switch {
	case timedOut:
		return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
	case parentErr != nil:
		return zero, parentErr
	}
	return res.value, res.err
}
