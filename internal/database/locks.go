package database

import (
	"context"
	"database/sql"
	"fmt"
)

// AcquireAdvisoryLock takes a backend advisory lock named by key. On PostgreSQL
// the lock is transaction-scoped (pg_advisory_xact_lock) and must be called
// inside a transaction; it releases itself at commit or rollback. On MySQL the
// lock is connection-scoped (GET_LOCK) and must be paired with
// ReleaseAdvisoryLock on the same connection.
func AcquireAdvisoryLock(ctx context.Context, q Querier, driver, key string) error {
	switch driver {
	case "mysql":
		var acquired int
		row := q.QueryRowContext(ctx, "SELECT GET_LOCK(?, 30)", key)
		if err := row.Scan(&acquired); err != nil {
			return fmt.Errorf("failed to acquire advisory lock %q: %w", key, err)
		}
		if acquired != 1 {
			return fmt.Errorf("timed out acquiring advisory lock %q", key)
		}
		return nil
	default:
		// Lock id derives from the key text so all instances sharing an
		// engine identity contend on the same lock.
		if _, err := q.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
			return fmt.Errorf("failed to acquire advisory lock %q: %w", key, err)
		}
		return nil
	}
}

// ReleaseAdvisoryLock releases a lock taken by AcquireAdvisoryLock. It is a
// no-op on PostgreSQL where transaction-scoped locks release automatically.
func ReleaseAdvisoryLock(ctx context.Context, q Querier, driver, key string) error {
	if driver != "mysql" {
		return nil
	}
	if _, err := q.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", key); err != nil {
		return fmt.Errorf("failed to release advisory lock %q: %w", key, err)
	}
	return nil
}

// AdvisoryLocker binds an advisory lock name to a database so callers can
// take and release the lock without carrying driver details around. It is
// transaction-aware: inside WithTx the lock statements run on the
// transaction's connection.
type AdvisoryLocker struct {
	db     *sql.DB
	driver string
	key    string
}

// NewAdvisoryLocker creates an AdvisoryLocker for the named lock.
func NewAdvisoryLocker(db *sql.DB, driver, key string) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, driver: driver, key: key}
}

// Acquire takes the lock on the caller's transaction or connection.
func (l *AdvisoryLocker) Acquire(ctx context.Context) error {
	return AcquireAdvisoryLock(ctx, GetTx(ctx, l.db), l.driver, l.key)
}

// Release releases the lock where the backend needs an explicit release.
func (l *AdvisoryLocker) Release(ctx context.Context) error {
	return ReleaseAdvisoryLock(ctx, GetTx(ctx, l.db), l.driver, l.key)
}
