// Package counter tracks the global usage counter behind the
// /usage-count surface. Increments happen inside the database so
// concurrent requests never lose updates; reads degrade to zero when
// the backend is unavailable.
package counter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_count (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	count INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO usage_count (id, count) VALUES (1, 0);
`

// Counter is the shared usage counter. The disabled variant (from
// Disabled) reads zero and drops increments.
type Counter struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the counter database in dataDir, defaulting
// to the user cache directory. Pass ":memory:" for an in-memory
// database (used by tests).
func Open(dataDir string, logger *slog.Logger) (*Counter, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if dataDir == "" {
			dir, err := os.UserCacheDir()
			if err != nil {
				dir = os.TempDir()
			}
			dataDir = filepath.Join(dir, "chillgits")
		}
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "chillgits.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening counter database: %w", err)
	}
	// One connection: keeps every increment on the same database (the
	// in-memory DSN is per-connection) and sidesteps SQLITE_BUSY under
	// concurrent writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("initializing counter schema: %w", err)
	}

	return &Counter{db: db, logger: logger}, nil
}

// Disabled creates a counter with no backend.
func Disabled(logger *slog.Logger) *Counter {
	return &Counter{logger: logger}
}

// Enabled reports whether a backend is connected.
func (c *Counter) Enabled() bool { return c.db != nil }

// Increment bumps the counter atomically and returns the new value.
// The whole read-modify-write runs as one statement inside the
// database, so concurrent increments cannot clobber each other.
// Backend failure reads as zero, never as an error to the caller.
func (c *Counter) Increment(ctx context.Context) int64 {
	if c.db == nil {
		return 0
	}

	var count int64
	err := c.db.QueryRowContext(ctx,
		`UPDATE usage_count SET count = count + 1 WHERE id = 1 RETURNING count`,
	).Scan(&count)
	if err != nil {
		c.logger.Warn("counter increment failed", "error", err)
		return 0
	}
	return count
}

// Value returns the current counter value, or zero when unavailable.
func (c *Counter) Value(ctx context.Context) int64 {
	if c.db == nil {
		return 0
	}

	var count int64
	err := c.db.QueryRowContext(ctx,
		`SELECT count FROM usage_count WHERE id = 1`,
	).Scan(&count)
	if err != nil {
		c.logger.Warn("counter read failed", "error", err)
		return 0
	}
	return count
}

// Close closes the backend.
func (c *Counter) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
