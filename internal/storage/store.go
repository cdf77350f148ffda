package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for the scan cursor and the set
// of successfully relayed transactions.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS cursors (
  source_id   TEXT PRIMARY KEY,
  height      INTEGER NOT NULL,
  updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS processed (
  tx_hash     TEXT PRIMARY KEY,
  block       INTEGER NOT NULL,
  created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutCursor records the latest fully scanned height for a source.
func (s *Store) PutCursor(ctx context.Context, sourceID string, height uint64) error {
	if sourceID == "" {
		return errors.New("sourceID required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cursors (source_id, height, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(source_id) DO UPDATE SET
  height=excluded.height,
  updated_at=CURRENT_TIMESTAMP;
`, sourceID, height)
	if err != nil {
		return fmt.Errorf("put cursor: %w", err)
	}
	return nil
}

// GetCursor retrieves the cursor for a source.
func (s *Store) GetCursor(ctx context.Context, sourceID string) (height uint64, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
SELECT height FROM cursors WHERE source_id = ?;
`, sourceID)
	switch err = row.Scan(&height); err {
	case nil:
		return height, true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("get cursor: %w", err)
	}
}

// MarkProcessed inserts a tx hash into the processed set. The primary key
// makes the insert a compare-and-set: the return value reports whether
// this call inserted the row or lost to an earlier one.
func (s *Store) MarkProcessed(ctx context.Context, txHash string, block uint64) (bool, error) {
	if txHash == "" {
		return false, errors.New("txHash required")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO processed (tx_hash, block) VALUES (?, ?);
`, txHash, block)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processed rows: %w", err)
	}
	return n > 0, nil
}

// IsProcessed reports whether a tx hash has already been relayed.
func (s *Store) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	if txHash == "" {
		return false, errors.New("txHash required")
	}
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM processed WHERE tx_hash = ?;
`, txHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}

// CountProcessed returns the size of the processed set.
func (s *Store) CountProcessed(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count processed: %w", err)
	}
	return n, nil
}

// RecentProcessed returns the most recently relayed tx hashes, newest first.
func (s *Store) RecentProcessed(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tx_hash FROM processed ORDER BY created_at DESC, tx_hash DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent processed: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan processed row: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
