package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ListArchivedTasks returns an account's archived tasks, newest first.
func (s *DataService) ListArchivedTasks(ctx context.Context, accountID string) ([]ArchivedTask, error) {
	tasks := []ArchivedTask{}
	err := s.db.SelectContext(ctx, &tasks, s.db.Rebind(`
		SELECT id, account_id, task_id, task_name, bucket_name, bucket_year, completed_at, optional, urgent
		FROM tasks_archive
		WHERE account_id = ?
		ORDER BY completed_at DESC
	`), accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived tasks: %w", err)
	}
	return tasks, nil
}

// ArchiveTasks inserts denormalized copies of completed tasks.
func (s *DataService) ArchiveTasks(ctx context.Context, tasks []ArchivedTask) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO tasks_archive (id, account_id, task_id, task_name, bucket_name, bucket_year, completed_at, optional, urgent)
		VALUES (:id, :account_id, :task_id, :task_name, :bucket_name, :bucket_year, :completed_at, :optional, :urgent)`

	for _, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.CompletedAt = t.CompletedAt.UTC()
		if _, err := tx.NamedExecContext(ctx, query, t); err != nil {
			return fmt.Errorf("failed to archive task %s: %w", t.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
