package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLockKey — ключ advisory lock для лидера trigger.
const DefaultLockKey int64 = 0x5348495059415244 // "SHIPYARD"

// Leader решает, должен ли этот экземпляр выполнять тик.
type Leader interface {
	TryLead(ctx context.Context) (bool, error)
	Release()
}

// AdvisoryLock — leader election через pg_try_advisory_lock.
//
// Advisory lock принадлежит сессии PostgreSQL, поэтому лидер держит
// одно соединение из пула до Release.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewAdvisoryLock создаёт AdvisoryLock.
func NewAdvisoryLock(pool *pgxpool.Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, key: key}
}

// TryLead пытается стать лидером или подтверждает лидерство.
func (l *AdvisoryLock) TryLead(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		// Соединение могло оборваться вместе с lock
		if err := l.conn.Ping(ctx); err == nil {
			return true, nil
		}
		l.conn.Release()
		l.conn = nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release отпускает лидерство.
func (l *AdvisoryLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(context.Background(), "select pg_advisory_unlock($1)", l.key)
	l.conn.Release()
	l.conn = nil
}

// Always — Leader для единственного экземпляра trigger.
type Always struct{}

func (Always) TryLead(context.Context) (bool, error) { return true, nil }
func (Always) Release()                              {}
