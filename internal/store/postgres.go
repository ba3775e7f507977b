package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying "<session>:<key>" payloads.
const NotifyChannel = "session_storage"

// Postgres stores session values in the session_storage table and announces
// every write with pg_notify inside the same transaction.
type Postgres struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, ttl time.Duration, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, ttl: ttl, logger: logger}
}

func (p *Postgres) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	const q = `
SELECT value
FROM session_storage
WHERE session_id = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > now())
`
	var value string
	if err := p.pool.QueryRow(ctx, q, key.Session, key.Name).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (p *Postgres) Set(ctx context.Context, key Key, value []byte) error {
	const q = `
INSERT INTO session_storage (session_id, key, value, updated_at, expires_at)
VALUES ($1, $2, $3, now(), $4)
ON CONFLICT (session_id, key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = EXCLUDED.updated_at,
    expires_at = EXCLUDED.expires_at
`
	return p.write(ctx, key, q, key.Session, key.Name, string(value), p.expiresAt())
}

func (p *Postgres) Delete(ctx context.Context, key Key) error {
	const q = `
DELETE FROM session_storage
WHERE session_id = $1 AND key = $2
`
	return p.write(ctx, key, q, key.Session, key.Name)
}

func (p *Postgres) write(ctx context.Context, key Key, q string, args ...interface{}) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, q, args...); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, key.String()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) expiresAt() *time.Time {
	if p.ttl <= 0 {
		return nil
	}
	t := time.Now().Add(p.ttl)
	return &t
}

// Listen holds one pooled connection in LISTEN mode until ctx is done.
func (p *Postgres) Listen(ctx context.Context, fn func(Change)) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener conn: %w", err)
	}
	defer releaseListener(conn, p.logger)

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	p.logger.Info("session store: listening", zap.String("channel", NotifyChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		key, ok := ParseKey(n.Payload)
		if !ok {
			p.logger.Warn("session store: malformed notification", zap.String("payload", n.Payload))
			continue
		}
		fn(Change{Key: key})
	}
}

// releaseListener returns a LISTENing conn to the pool only once it has
// stopped listening; a conn that cannot UNLISTEN is closed instead.
func releaseListener(conn *pgxpool.Conn, logger *zap.Logger) {
	if conn.Conn().IsClosed() {
		conn.Release()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		logger.Warn("session store: unlisten failed, closing conn", zap.Error(err))
		_ = conn.Hijack().Close(ctx)
		return
	}
	conn.Release()
}

// PurgeExpired removes rows past their expiry and returns how many were deleted.
func (p *Postgres) PurgeExpired(ctx context.Context) (int64, error) {
	cmd, err := p.pool.Exec(ctx, `DELETE FROM session_storage WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
