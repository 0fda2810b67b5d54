package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// LastReset returns the UTC date (YYYY-MM-DD) of the account's last recurring
// reset, with ok=false when none has been recorded.
func (s *DataService) LastReset(ctx context.Context, accountID string) (string, bool, error) {
	var day string
	err := s.db.GetContext(ctx, &day, s.db.Rebind("SELECT last_reset FROM reset_markers WHERE account_id = ?"), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query reset marker: %w", err)
	}
	return day, true, nil
}

// SetLastReset records day as the account's last recurring reset.
func (s *DataService) SetLastReset(ctx context.Context, accountID, day string) error {
	return setLastReset(ctx, s.db, accountID, day, s.now().UTC())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

var (
	_ execer = (*sqlx.DB)(nil)
	_ execer = (*sqlx.Tx)(nil)
)

func setLastReset(ctx context.Context, ex execer, accountID, day string, now time.Time) error {
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO reset_markers (account_id, last_reset, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			last_reset = excluded.last_reset,
			updated_at = excluded.updated_at
	`), accountID, day, now)
	if err != nil {
		return fmt.Errorf("failed to upsert reset marker: %w", err)
	}
	return nil
}
