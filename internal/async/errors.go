package async

import "errors"

var (
	// ErrTimeout — операция не уложилась в отведённое время.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidState — для запуска уже есть незавершённый счётчик.
	ErrInvalidState = errors.New("invalid state")

	// ErrCounterUnderflow — декремент неизвестного или уже завершённого счётчика.
	ErrCounterUnderflow = errors.New("task counter underflow")

	// ErrPanic — операция завершилась паникой.
	ErrPanic = errors.New("operation panicked")
)
