package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps totals in the daily_spend table created by the
// database migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add increments the total for day.
func (s *PostgresStore) Add(ctx context.Context, day string, amount float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_spend (day, total, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (day) DO UPDATE
		SET total = daily_spend.total + EXCLUDED.total, updated_at = now()`,
		day, amount)
	if err != nil {
		return fmt.Errorf("add spend for %s: %w", day, err)
	}
	return nil
}

// Total returns the total for day.
func (s *PostgresStore) Total(ctx context.Context, day string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `SELECT total FROM daily_spend WHERE day = $1`, day).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read spend for %s: %w", day, err)
	}
	return total, nil
}

var _ Store = (*PostgresStore)(nil)
