package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResetter struct {
	mu   sync.Mutex
	days []string
	err  error
}

func (f *fakeResetter) ResetRecurringBuckets(_ context.Context, day string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, day)
	return 1, f.err
}

func (f *fakeResetter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.days)
}

func TestDailyReset_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	acct := newTestAccount(t, store, "daily@example.com")

	snap := database.DefaultSnapshot()
	snap[3].Tasks = []database.Task{{ID: "t1", Name: "Check email", Completed: true}}
	require.NoError(t, store.SaveSnapshot(ctx, acct.ID, snap))

	clock := quest.NewFakeClock(time.Date(2025, 4, 10, 0, 0, 5, 0, time.UTC))
	d := NewDailyReset(store, clock, discardLogger())

	res, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Reset daily tasks successfully", res.Message)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, clock.Now(), res.Timestamp)

	got, _, err := store.GetSnapshot(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, got[3].Tasks[0].Completed)

	day, ok, err := store.LastReset(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2025-04-10", day)
}

func TestDailyReset_NothingToReset(t *testing.T) {
	d := NewDailyReset(newTestStore(t), nil, discardLogger())

	res, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "No Daily Tasks months found to reset", res.Message)
	assert.Zero(t, res.Found)
}

func TestDailyReset_Failure(t *testing.T) {
	d := NewDailyReset(&fakeResetter{err: errors.New("disk full")}, nil, discardLogger())

	_, err := d.RunOnce(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestDailyReset_RunFiresAtMidnight(t *testing.T) {
	midnight := time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC)
	clock := quest.NewFakeClock(midnight.Add(-20 * time.Millisecond))
	resetter := &fakeResetter{}
	d := NewDailyReset(resetter, clock, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return resetter.calls() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestDailyReset_OnResetRunsAfterSuccess(t *testing.T) {
	resetter := &fakeResetter{}
	d := NewDailyReset(resetter, nil, discardLogger())

	var got []ResetResult
	d.OnReset(func(res ResetResult) { got = append(got, res) })

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Found)

	resetter.err = errors.New("disk full")
	_, err = d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, got, 1, "failed resets notify nobody")
}
