package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
)

// ErrSharingDisabled is returned when a user has not opted in to sharing.
var ErrSharingDisabled = errors.New("screen sharing is disabled")

// ErrSelfCoworker is returned when a user tries to add themselves.
var ErrSelfCoworker = errors.New("cannot add yourself as a coworker")

type ScreenspyStore interface {
	GetAccount(ctx context.Context, id string) (*database.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*database.Account, error)
	GetSnapshot(ctx context.Context, accountID string) (database.Snapshot, bool, error)
	SetSharing(ctx context.Context, accountID string, enabled bool) error
	CreateAccount(ctx context.Context, email string) (*database.Account, error)
	AddCoworker(ctx context.Context, accountID, coworkerID string) error
	ListCoworkers(ctx context.Context, accountID string) ([]database.Account, error)
	RemoveCoworker(ctx context.Context, accountID, coworkerID string) error
}

// LinkIssuer mints sign-in links for invited coworkers.
type LinkIssuer interface {
	GenerateMagicLink(acct *database.Account, baseURL string) (string, error)
}

// CoworkerTask is one task of another user, flattened across buckets.
type CoworkerTask struct {
	ID         string `json:"id"`
	BucketID   int    `json:"list_id,omitempty"`
	BucketName string `json:"list_title"`
	TaskName   string `json:"task_name"`
	Completed  bool   `json:"completed"`
	Urgent     bool   `json:"urgent"`
	Optional   bool   `json:"optional"`
}

// ScreenspyService lets users opt in to showing their task list to others.
type ScreenspyService struct {
	store ScreenspyStore
	links LinkIssuer
	retry quest.Retry
}

// NewScreenspyService builds the service. links may be nil, in which case
// coworkers cannot be invited by email.
func NewScreenspyService(store ScreenspyStore, links LinkIssuer) *ScreenspyService {
	return &ScreenspyService{store: store, links: links, retry: quest.DefaultRetry}
}

// SetRetry replaces the read retry policy.
func (s *ScreenspyService) SetRetry(r quest.Retry) { s.retry = r }

func (s *ScreenspyService) SetSharing(ctx context.Context, accountID string, enabled bool) error {
	return s.store.SetSharing(ctx, accountID, enabled)
}

// ToggleSharing flips the sharing flag and returns the new value.
func (s *ScreenspyService) ToggleSharing(ctx context.Context, accountID string) (bool, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	enabled := !acct.SharingEnabled
	if err := s.store.SetSharing(ctx, accountID, enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// CoworkerTasks returns the flattened tasks of username. The user must
// exist and have sharing enabled.
func (s *ScreenspyService) CoworkerTasks(ctx context.Context, username string) ([]CoworkerTask, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, " ") {
		return nil, fmt.Errorf("coworker %q: %w", username, database.ErrNotFound)
	}

	acct, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if !acct.SharingEnabled {
		return nil, ErrSharingDisabled
	}

	var snap database.Snapshot
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		snap, _, err = s.store.GetSnapshot(ctx, acct.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load coworker tasks: %w", err)
	}

	tasks := []CoworkerTask{}
	for _, b := range snap {
		for _, t := range b.Tasks {
			tasks = append(tasks, CoworkerTask{
				ID:         t.ID,
				BucketID:   b.Number,
				BucketName: b.Name,
				TaskName:   t.Name,
				Completed:  t.Completed,
				Urgent:     t.Urgent,
				Optional:   t.Optional,
			})
		}
	}
	return tasks, nil
}

// lookup reads an account by username. A missing account is returned at
// once rather than retried.
func (s *ScreenspyService) lookup(ctx context.Context, username string) (*database.Account, error) {
	var (
		acct    *database.Account
		missing error
	)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.GetAccountByUsername(ctx, username)
		if errors.Is(err, database.ErrNotFound) {
			missing = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up coworker: %w", err)
	}
	if missing != nil {
		return nil, missing
	}
	return acct, nil
}

// Coworkers lists the accounts accountID has added.
func (s *ScreenspyService) Coworkers(ctx context.Context, accountID string) ([]database.Account, error) {
	var coworkers []database.Account
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		coworkers, err = s.store.ListCoworkers(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list coworkers: %w", err)
	}
	if coworkers == nil {
		coworkers = []database.Account{}
	}
	return coworkers, nil
}

// AddCoworker adds an existing user to accountID's coworker list.
func (s *ScreenspyService) AddCoworker(ctx context.Context, accountID, username string) (*database.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, " ") {
		return nil, fmt.Errorf("coworker %q: %w", username, database.ErrNotFound)
	}

	acct, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if acct.ID == accountID {
		return nil, ErrSelfCoworker
	}
	if err := s.store.AddCoworker(ctx, accountID, acct.ID); err != nil {
		return nil, err
	}
	return acct, nil
}

// InviteCoworker registers email if it is new, adds the account to
// accountID's coworker list and returns a sign-in link for it.
func (s *ScreenspyService) InviteCoworker(ctx context.Context, accountID, email, baseURL string) (*database.Account, string, error) {
	if s.links == nil {
		return nil, "", errors.New("coworker invitations are not configured")
	}

	acct, err := s.store.CreateAccount(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if acct.ID == accountID {
		return nil, "", ErrSelfCoworker
	}
	if err := s.store.AddCoworker(ctx, accountID, acct.ID); err != nil {
		return nil, "", err
	}

	link, err := s.links.GenerateMagicLink(acct, baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send invitation: %w", err)
	}
	return acct, link, nil
}

func (s *ScreenspyService) RemoveCoworker(ctx context.Context, accountID, coworkerID string) error {
	return s.store.RemoveCoworker(ctx, accountID, coworkerID)
}
