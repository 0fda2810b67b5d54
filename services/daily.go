package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/CrowderSoup/bizniz-quest/quest"
)

// BulkResetter clears every account's recurring bucket in one go.
type BulkResetter interface {
	ResetRecurringBuckets(ctx context.Context, day string) (int, error)
}

type ResetResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Found     int       `json:"found"`
}

// DailyReset is the authoritative all-accounts reset. It is triggered over
// HTTP, from the CLI, or by Run at every UTC midnight.
type DailyReset struct {
	store   BulkResetter
	clock   quest.Clock
	logger  *log.Logger
	onReset func(ResetResult)
}

func NewDailyReset(store BulkResetter, clock quest.Clock, logger *log.Logger) *DailyReset {
	if clock == nil {
		clock = quest.RealClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DailyReset{store: store, clock: clock, logger: logger}
}

// OnReset registers fn to run after every successful reset, so live views
// can be told to reload.
func (d *DailyReset) OnReset(fn func(ResetResult)) {
	d.onReset = fn
}

// RunOnce resets every account for the current UTC day.
func (d *DailyReset) RunOnce(ctx context.Context) (ResetResult, error) {
	now := d.clock.Now().UTC()
	day := quest.Day(now)

	found, err := d.store.ResetRecurringBuckets(ctx, day)
	if err != nil {
		return ResetResult{}, fmt.Errorf("failed to reset daily tasks: %w", err)
	}

	res := ResetResult{Success: true, Timestamp: now, Found: found}
	if found == 0 {
		res.Message = "No Daily Tasks months found to reset"
	} else {
		res.Message = "Reset daily tasks successfully"
	}
	d.logger.Printf("Daily reset for %s: %d recurring buckets", day, found)
	if d.onReset != nil {
		d.onReset(res)
	}
	return res, nil
}

// Run calls RunOnce at every UTC midnight until ctx is cancelled.
func (d *DailyReset) Run(ctx context.Context) {
	for {
		wait := quest.NextMidnight(d.clock.Now()).Sub(d.clock.Now())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if _, err := d.RunOnce(runCtx); err != nil {
			d.logger.Printf("Nightly reset failed: %v", err)
		}
		cancel()
	}
}
