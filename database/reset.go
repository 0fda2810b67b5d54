package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// ResetRecurringBuckets clears task completion in every account's recurring
// bucket and advances every account's reset marker to day. It runs in one
// transaction, so a failure part way leaves all accounts untouched. The
// returned count is the number of recurring buckets found.
func (s *DataService) ResetRecurringBuckets(ctx context.Context, day string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rows []struct {
		AccountID string `db:"account_id"`
		Lists     string `db:"lists"`
	}
	if err := tx.SelectContext(ctx, &rows, "SELECT account_id, lists FROM todo_lists"); err != nil {
		return 0, fmt.Errorf("failed to query snapshots: %w", err)
	}

	now := s.now().UTC()
	found := 0
	for _, row := range rows {
		var snap Snapshot
		if err := json.Unmarshal([]byte(row.Lists), &snap); err != nil {
			log.Printf("Skipping unreadable snapshot for %s: %v", row.AccountID, err)
			continue
		}
		for _, b := range snap {
			if b.IsRecurring() {
				found++
			}
		}

		if snap.ResetRecurring() {
			data, err := json.Marshal(snap)
			if err != nil {
				return 0, fmt.Errorf("failed to marshal snapshot: %w", err)
			}
			_, err = tx.ExecContext(ctx, tx.Rebind("UPDATE todo_lists SET lists = ?, updated_at = ? WHERE account_id = ?"),
				string(data), now, row.AccountID)
			if err != nil {
				return 0, fmt.Errorf("failed to update snapshot for %s: %w", row.AccountID, err)
			}
		}

		if err := setLastReset(ctx, tx, row.AccountID, day, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return found, nil
}
