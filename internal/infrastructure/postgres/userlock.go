package postgres

import (
	"context"
	"fmt"
	"log"
)

// Lock namespace for per-user sync serialization. The second advisory-lock key
// is the user id, so locks for different users never contend.
const syncLockClass = 7541

// UserLocks serializes sync and unlink work per user with Postgres advisory
// locks, so concurrent requests (or multiple API instances sharing one
// database) cannot interleave writes for the same user.
type UserLocks struct {
	db *DB
}

func NewUserLocks(db *DB) *UserLocks {
	return &UserLocks{db: db}
}

// Acquire attempts to take the sync lock for a user without blocking.
// On success it returns a release func and acquired=true; the caller must
// invoke release exactly once. When another session holds the lock it
// returns acquired=false and no error.
//
// The lock is session-scoped, so it is pinned to a dedicated connection for
// its whole lifetime; releasing on a different pooled connection would be a
// no-op and leak the lock.
func (l *UserLocks) Acquire(ctx context.Context, userID int64) (release func(), acquired bool, err error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get lock connection: %w", err)
	}

	var got bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, $2)`, syncLockClass, userID).Scan(&got); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !got {
		conn.Close()
		return nil, false, nil
	}

	release = func() {
		// Unlock with a fresh context: the request context may already be
		// canceled, and the lock must be released regardless.
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1, $2)`, syncLockClass, userID); err != nil {
			log.Printf("Failed to release sync lock for user %d: %v", userID, err)
		}
		conn.Close()
	}
	return release, true, nil
}
