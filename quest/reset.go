package quest

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultResetInterval is how often a mounted view re-checks the date.
const DefaultResetInterval = 60 * time.Second

// MarkerStore records the UTC date of each account's last recurring reset.
type MarkerStore interface {
	LastReset(ctx context.Context, accountID string) (string, bool, error)
	SetLastReset(ctx context.Context, accountID, day string) error
}

// ResetScheduler clears the recurring bucket at most once per UTC day.
type ResetScheduler struct {
	clock    Clock
	markers  MarkerStore
	retry    Retry
	interval time.Duration
	logger   *log.Logger
}

func NewResetScheduler(clock Clock, markers MarkerStore, logger *log.Logger) *ResetScheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ResetScheduler{
		clock:    clock,
		markers:  markers,
		retry:    DefaultRetry,
		interval: DefaultResetInterval,
		logger:   logger,
	}
}

func (s *ResetScheduler) Interval() time.Duration { return s.interval }

func (s *ResetScheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

func (s *ResetScheduler) SetRetry(r Retry) { s.retry = r }

// Check compares today's UTC date with the account's marker. On a new day
// the marker is advanced and the holder's recurring bucket is cleared, and
// Check reports true so the caller saves. When the marker cannot be read or
// written nothing is cleared and the next check tries again.
func (s *ResetScheduler) Check(ctx context.Context, accountID string, h *Holder) (bool, error) {
	today := Day(s.clock.Now())

	var (
		last string
		ok   bool
	)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		last, ok, err = s.markers.LastReset(ctx, accountID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to read reset marker: %w", err)
	}
	if ok && last == today {
		return false, nil
	}

	if err := s.markers.SetLastReset(ctx, accountID, today); err != nil {
		return false, fmt.Errorf("failed to write reset marker: %w", err)
	}
	h.ResetRecurring()
	s.logger.Printf("Reset daily tasks for %s on %s", accountID, today)
	return true, nil
}

// Today returns the scheduler's current UTC date.
func (s *ResetScheduler) Today() string {
	return Day(s.clock.Now())
}

// Reset clears the recurring bucket on request, whatever the marker says,
// and records today as the last reset. It reports whether the holder
// changed.
func (s *ResetScheduler) Reset(ctx context.Context, accountID string, h *Holder) (bool, error) {
	today := s.Today()
	if err := s.markers.SetLastReset(ctx, accountID, today); err != nil {
		return false, fmt.Errorf("failed to write reset marker: %w", err)
	}
	return h.ResetRecurring(), nil
}
