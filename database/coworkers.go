package database

import (
	"context"
	"fmt"
)

// AddCoworker records coworkerID in accountID's coworker list. Adding an
// existing coworker is a no-op.
func (s *DataService) AddCoworker(ctx context.Context, accountID, coworkerID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO coworkers (account_id, coworker_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, coworker_id) DO NOTHING
	`), accountID, coworkerID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add coworker: %w", err)
	}
	return nil
}

// ListCoworkers returns the accounts in accountID's coworker list, ordered
// by username.
func (s *DataService) ListCoworkers(ctx context.Context, accountID string) ([]Account, error) {
	coworkers := []Account{}
	err := s.db.SelectContext(ctx, &coworkers, s.db.Rebind(`
		SELECT a.id, a.email, a.username, a.sharing_enabled, a.created_at
		FROM coworkers c
		JOIN accounts a ON a.id = c.coworker_id
		WHERE c.account_id = ?
		ORDER BY a.username
	`), accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coworkers: %w", err)
	}
	return coworkers, nil
}

func (s *DataService) RemoveCoworker(ctx context.Context, accountID, coworkerID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM coworkers WHERE account_id = ? AND coworker_id = ?"), accountID, coworkerID)
	if err != nil {
		return fmt.Errorf("failed to remove coworker: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("coworker %s: %w", coworkerID, ErrNotFound)
	}
	return nil
}
