package services

import (
	"context"
	"fmt"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
)

type ArchiveStore interface {
	GetSnapshot(ctx context.Context, accountID string) (database.Snapshot, bool, error)
	ListArchivedTasks(ctx context.Context, accountID string) ([]database.ArchivedTask, error)
	ArchiveTasks(ctx context.Context, tasks []database.ArchivedTask) error
}

// ArchiveService serves an account's history of completed tasks.
type ArchiveService struct {
	store ArchiveStore
	clock quest.Clock
	retry quest.Retry
}

func NewArchiveService(store ArchiveStore, clock quest.Clock) *ArchiveService {
	if clock == nil {
		clock = quest.RealClock{}
	}
	return &ArchiveService{store: store, clock: clock, retry: quest.DefaultRetry}
}

// Tasks returns the account's archived tasks, newest first. An empty archive
// is seeded from the tasks currently marked completed.
func (a *ArchiveService) Tasks(ctx context.Context, accountID string) ([]database.ArchivedTask, error) {
	tasks, err := a.list(ctx, accountID)
	if err != nil || len(tasks) > 0 {
		return tasks, err
	}

	var (
		snap  database.Snapshot
		found bool
	)
	err = a.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		snap, found, err = a.store.GetSnapshot(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if !found {
		return tasks, nil
	}

	now := a.clock.Now().UTC()
	var completed []database.ArchivedTask
	for _, b := range snap {
		for _, t := range b.Tasks {
			if !t.Completed {
				continue
			}
			completed = append(completed, database.ArchivedTask{
				AccountID:   accountID,
				TaskID:      t.ID,
				TaskName:    t.Name,
				BucketName:  b.Name,
				BucketYear:  b.Year,
				CompletedAt: now,
				Optional:    t.Optional,
				Urgent:      t.Urgent,
			})
		}
	}
	if len(completed) == 0 {
		return tasks, nil
	}

	if err := a.store.ArchiveTasks(ctx, completed); err != nil {
		return nil, fmt.Errorf("failed to archive tasks: %w", err)
	}
	return a.list(ctx, accountID)
}

func (a *ArchiveService) list(ctx context.Context, accountID string) ([]database.ArchivedTask, error) {
	var tasks []database.ArchivedTask
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		tasks, err = a.store.ListArchivedTasks(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archived tasks: %w", err)
	}
	if tasks == nil {
		tasks = []database.ArchivedTask{}
	}
	return tasks, nil
}
