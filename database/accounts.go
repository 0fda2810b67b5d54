package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateAccount registers an email and returns its account. Registering an
// email that already exists returns the existing account.
func (s *DataService) CreateAccount(ctx context.Context, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address %q", email)
	}

	existing, err := s.GetAccountByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	acct := &Account{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: s.now().UTC(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Usernames come from the mailbox name; collisions get an id suffix.
	acct.Username = strings.SplitN(email, "@", 2)[0]
	var taken int
	if err := tx.GetContext(ctx, &taken, tx.Rebind("SELECT COUNT(*) FROM accounts WHERE username = ?"), acct.Username); err != nil {
		return nil, fmt.Errorf("failed to query username: %w", err)
	}
	if taken > 0 {
		acct.Username = acct.Username + "-" + acct.ID[:8]
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO accounts (id, email, username, sharing_enabled, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), acct.ID, acct.Email, acct.Username, false, acct.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return acct, nil
}

func (s *DataService) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.getAccount(ctx, "id", id)
}

func (s *DataService) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.getAccount(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *DataService) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	return s.getAccount(ctx, "username", username)
}

// column is always one of the literals above, never user input.
func (s *DataService) getAccount(ctx context.Context, column, value string) (*Account, error) {
	var acct Account
	query := s.db.Rebind(fmt.Sprintf(
		"SELECT id, email, username, sharing_enabled, created_at FROM accounts WHERE %s = ?", column))
	err := s.db.GetContext(ctx, &acct, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s=%s: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return &acct, nil
}

// SetSharing sets whether other accounts may view this account's tasks.
func (s *DataService) SetSharing(ctx context.Context, accountID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("UPDATE accounts SET sharing_enabled = ? WHERE id = ?"), enabled, accountID)
	if err != nil {
		return fmt.Errorf("failed to update sharing preference: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}
