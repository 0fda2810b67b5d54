package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// InitDB opens the database for driver ("sqlite3" or "postgres") and applies
// any outstanding migrations.
func InitDB(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite3" {
		// A single connection keeps ":memory:" databases shared and writes serialized.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// runMigrations reads the current schema version and applies newer migrations in order.
func runMigrations(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
		}
		if _, err := db.Exec(db.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.version); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// DataService handles database operations for accounts and their task data.
type DataService struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewDataService(db *sqlx.DB) *DataService {
	return &DataService{db: db, now: time.Now}
}

// GetSnapshot retrieves an account's stored buckets. A missing or unreadable
// row reports ok=false so callers fall back to defaults.
func (s *DataService) GetSnapshot(ctx context.Context, accountID string) (Snapshot, bool, error) {
	var data string
	err := s.db.GetContext(ctx, &data, s.db.Rebind("SELECT lists FROM todo_lists WHERE account_id = ?"), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		log.Printf("Ignoring unreadable snapshot for %s: %v", accountID, err)
		return nil, false, nil
	}
	return snap, true, nil
}

// SaveSnapshot replaces an account's stored buckets in one upsert keyed by
// account id. Whatever was stored before is discarded.
func (s *DataService) SaveSnapshot(ctx context.Context, accountID string, snap Snapshot) error {
	if snap == nil {
		snap = Snapshot{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireAccount(ctx, tx, accountID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO todo_lists (account_id, lists, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			lists = excluded.lists,
			updated_at = excluded.updated_at
	`), accountID, string(data), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteSnapshot removes an account's stored buckets.
func (s *DataService) DeleteSnapshot(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM todo_lists WHERE account_id = ?"), accountID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func requireAccount(ctx context.Context, tx *sqlx.Tx, accountID string) error {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM accounts WHERE id = ?"), accountID); err != nil {
		return fmt.Errorf("failed to query account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}
