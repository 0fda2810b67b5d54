package quest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/CrowderSoup/bizniz-quest/database"
)

var errMockStore = errors.New("mock store failure")

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// MockStore implements SnapshotStore and MarkerStore for testing.
type MockStore struct {
	mu        sync.Mutex
	Snapshots map[string]database.Snapshot
	Markers   map[string]string

	GetFunc       func(ctx context.Context, accountID string) (database.Snapshot, bool, error)
	SaveFunc      func(ctx context.Context, accountID string, snap database.Snapshot) error
	LastResetFunc func(ctx context.Context, accountID string) (string, bool, error)
	SetResetFunc  func(ctx context.Context, accountID, day string) error

	GetCount  int
	SaveCount int
	Saved     []database.Snapshot
}

func NewMockStore() *MockStore {
	return &MockStore{
		Snapshots: make(map[string]database.Snapshot),
		Markers:   make(map[string]string),
	}
}

func (m *MockStore) GetSnapshot(ctx context.Context, accountID string) (database.Snapshot, bool, error) {
	m.mu.Lock()
	m.GetCount++
	fn := m.GetFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, accountID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.Snapshots[accountID]
	return snap.Clone(), ok, nil
}

func (m *MockStore) SaveSnapshot(ctx context.Context, accountID string, snap database.Snapshot) error {
	m.mu.Lock()
	m.SaveCount++
	fn := m.SaveFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, accountID, snap); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots[accountID] = snap.Clone()
	m.Saved = append(m.Saved, snap.Clone())
	return nil
}

func (m *MockStore) LastReset(ctx context.Context, accountID string) (string, bool, error) {
	if m.LastResetFunc != nil {
		return m.LastResetFunc(ctx, accountID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	day, ok := m.Markers[accountID]
	return day, ok, nil
}

func (m *MockStore) SetLastReset(ctx context.Context, accountID, day string) error {
	if m.SetResetFunc != nil {
		return m.SetResetFunc(ctx, accountID, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Markers[accountID] = day
	return nil
}

func (m *MockStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SaveCount
}

func (m *MockStore) stored(accountID string) database.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Snapshots[accountID].Clone()
}

// sequentialIDs returns an id minter producing t1, t2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
}
