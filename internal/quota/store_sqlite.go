package quota

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the counters in a single two-column table, one row per
// calendar period. Day keys ("2006-01-02") and month keys ("2006-01") never
// collide, so they share the table. Rows are never pruned; retention is
// indefinite unless the database file is rotated externally.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open quota store: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS call_counts (
		period TEXT PRIMARY KEY,
		count  INTEGER NOT NULL DEFAULT 0
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Counts(ctx context.Context, dayKey, monthKey string) (int, int, error) {
	day, err := s.count(ctx, dayKey)
	if err != nil {
		return 0, 0, err
	}
	month, err := s.count(ctx, monthKey)
	if err != nil {
		return 0, 0, err
	}
	return day, month, nil
}

func (s *SQLiteStore) count(ctx context.Context, period string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count FROM call_counts WHERE period = ?`, period).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) Increment(ctx context.Context, dayKey, monthKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO call_counts (period, count) VALUES (?, 1)
	ON CONFLICT(period) DO UPDATE SET count = count + 1`
	for _, period := range []string{dayKey, monthKey} {
		if _, err := tx.ExecContext(ctx, query, period); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
