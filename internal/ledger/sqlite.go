package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps totals in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the daily_spend table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer keeps concurrent increments from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS daily_spend (
		day        TEXT PRIMARY KEY,
		total      REAL NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating daily_spend table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Add increments the total for day with an upsert.
func (s *SQLiteStore) Add(ctx context.Context, day string, amount float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO daily_spend (day, total) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET total = total + excluded.total, updated_at = CURRENT_TIMESTAMP`,
		day, amount)
	if err != nil {
		return fmt.Errorf("adding spend for %s: %w", day, err)
	}
	return nil
}

// Total returns the total for day.
func (s *SQLiteStore) Total(ctx context.Context, day string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, "SELECT total FROM daily_spend WHERE day = ?", day).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading spend for %s: %w", day, err)
	}
	return total, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
