package sessionstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexedwards/scs/sqlite3store"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`

// SQLiteStore stores sessions in the application's sqlite database.
// Expired rows are removed by Sweep, which the scheduler runs on a cron
// schedule, instead of the store's own ticker.
type SQLiteStore struct {
	*sqlite3store.SQLite3Store
	db *sql.DB
}

// NewSQLiteStore creates the sessions table if needed and returns a store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	return &SQLiteStore{
		SQLite3Store: sqlite3store.NewWithCleanupInterval(db, 0),
		db:           db,
	}, nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (s *SQLiteStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expiry < julianday('now')")
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored sessions, expired or not.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

// Ping checks connectivity for health reporting.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
