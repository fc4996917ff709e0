package lock

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotAcquired — блокировку держит другой инстанс.
	ErrNotAcquired = errors.New("lock not acquired")

	// ErrForeignLock — Release получил блокировку другой реализации.
	ErrForeignLock = errors.New("lock was not issued by this service")
)

// Lock — удерживаемая блокировка job.
type Lock interface {
	JobID() uuid.UUID
}

// Service — сервис распределённых блокировок.
type Service interface {
	// Acquire пытается взять блокировку без ожидания.
	// Если блокировка занята, возвращает ErrNotAcquired.
	Acquire(ctx context.Context, jobID uuid.UUID) (Lock, error)

	// Release снимает блокировку.
	Release(ctx context.Context, l Lock) error
}

// Advisory — Service на pg_try_advisory_lock.
type Advisory struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAdvisory создаёт сервис блокировок на пуле pool.
func NewAdvisory(pool *pgxpool.Pool, logger *slog.Logger) *Advisory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisory{pool: pool, logger: logger}
}

type advisoryLock struct {
	jobID uuid.UUID
	key   int64
	conn  *pgxpool.Conn
}

func (l *advisoryLock) JobID() uuid.UUID { return l.jobID }

// Key возвращает ключ advisory lock для job: первые 8 байт UUID.
func Key(jobID uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(jobID[:8]))
}

// Acquire берёт блокировку на выделенном соединении.
func (a *Advisory) Acquire(ctx context.Context, jobID uuid.UUID) (Lock, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	key := Key(jobID)
	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, ErrNotAcquired
	}

	return &advisoryLock{jobID: jobID, key: key, conn: conn}, nil
}

// Release снимает блокировку и возвращает соединение в пул.
// Если снять блокировку не удалось, соединение закрывается:
// PostgreSQL отпустит блокировку вместе с сессией.
func (a *Advisory) Release(ctx context.Context, l Lock) error {
	lock, ok := l.(*advisoryLock)
	if !ok {
		return ErrForeignLock
	}
	defer lock.conn.Release()

	var unlocked bool
	err := lock.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, lock.key).Scan(&unlocked)
	if err == nil && unlocked {
		return nil
	}

	if closeErr := lock.conn.Conn().Close(ctx); closeErr != nil {
		a.logger.Warn("close lock connection", "job_id", lock.jobID, "error", closeErr)
	}
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return fmt.Errorf("advisory unlock for job %s: lock was not held", lock.jobID)
}
