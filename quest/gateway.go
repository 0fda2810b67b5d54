package quest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
)

// Debounce delays for wide and narrow clients.
const (
	DesktopDebounce = 1 * time.Second
	MobileDebounce  = 2 * time.Second
)

const defaultSaveTimeout = 10 * time.Second

// SnapshotStore persists one snapshot per account.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, accountID string) (database.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, accountID string, snap database.Snapshot) error
}

// LegacyCache is a pre-sync local copy of the buckets that is migrated into
// the store once and then cleared.
type LegacyCache interface {
	Load() ([]byte, bool)
	Clear() error
}

type Source string

const (
	SourceLegacy   Source = "legacy"
	SourceStore    Source = "store"
	SourceDefaults Source = "defaults"
)

type LoadResult struct {
	Snapshot database.Snapshot `json:"lists"`
	Source   Source            `json:"source"`
}

type pendingSave struct {
	timer *time.Timer
	snap  database.Snapshot
	done  func(error)
	seq   uint64
}

// Gateway loads and saves account snapshots. Each Gateway owns its own
// debounce timers, so one is created per mounted view.
type Gateway struct {
	store       SnapshotStore
	retry       Retry
	logger      *log.Logger
	saveTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave
	seq     uint64

	saveMu  sync.Mutex
	written map[string]uint64
}

func NewGateway(store SnapshotStore, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		store:       store,
		retry:       DefaultRetry,
		logger:      logger,
		saveTimeout: defaultSaveTimeout,
		pending:     make(map[string]*pendingSave),
		written:     make(map[string]uint64),
	}
}

// SetRetry replaces the read retry policy.
func (g *Gateway) SetRetry(r Retry) {
	g.retry = r
}

// ParseLegacy decodes a legacy cache value. Only a bucket list of the
// expected length is accepted.
func ParseLegacy(raw []byte) (database.Snapshot, bool) {
	var snap database.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	if len(snap) != database.ExpectedBuckets {
		return nil, false
	}
	return snap, true
}

// Load returns the account's snapshot. A well-formed legacy cache wins and is
// migrated into the store; otherwise the stored snapshot is used; otherwise
// the defaults are persisted and returned.
func (g *Gateway) Load(ctx context.Context, accountID string, legacy LegacyCache) (LoadResult, error) {
	if legacy != nil {
		if raw, ok := legacy.Load(); ok {
			if snap, ok := ParseLegacy(raw); ok {
				if err := g.store.SaveSnapshot(ctx, accountID, snap); err != nil {
					return LoadResult{}, fmt.Errorf("failed to migrate legacy tasks: %w", err)
				}
				if err := legacy.Clear(); err != nil {
					g.logger.Printf("Failed to clear legacy cache for %s: %v", accountID, err)
				}
				g.logger.Printf("Migrated legacy tasks for %s", accountID)
				return LoadResult{Snapshot: snap, Source: SourceLegacy}, nil
			}
			g.logger.Printf("Ignoring malformed legacy cache for %s", accountID)
		}
	}

	var (
		snap  database.Snapshot
		found bool
	)
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		snap, found, err = g.store.GetSnapshot(ctx, accountID)
		return err
	})
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to load tasks: %w", err)
	}
	if found && len(snap) > 0 {
		return LoadResult{Snapshot: snap, Source: SourceStore}, nil
	}

	defaults := database.DefaultSnapshot()
	if err := g.store.SaveSnapshot(ctx, accountID, defaults); err != nil {
		return LoadResult{}, fmt.Errorf("failed to save default tasks: %w", err)
	}
	return LoadResult{Snapshot: defaults, Source: SourceDefaults}, nil
}

// Save replaces the stored snapshot. Whatever was stored before is lost.
func (g *Gateway) Save(ctx context.Context, accountID string, snap database.Snapshot) error {
	if err := g.store.SaveSnapshot(ctx, accountID, snap.Clone()); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}
	return nil
}

// SaveDebounced schedules snap to be saved after delay. Each call restarts
// the account's timer and replaces the pending snapshot, so only the last
// snapshot of a burst is written. done, if set, is called from the timer
// goroutine with the result of that one write; callbacks of superseded calls
// are never invoked.
func (g *Gateway) SaveDebounced(accountID string, snap database.Snapshot, delay time.Duration, done func(error)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.pending[accountID]; ok {
		p.timer.Stop()
	}

	g.seq++
	p := &pendingSave{snap: snap.Clone(), done: done, seq: g.seq}
	g.pending[accountID] = p
	p.timer = time.AfterFunc(delay, func() { g.fire(accountID, p) })
}

// Flush writes the account's pending snapshot immediately, if any.
func (g *Gateway) Flush(ctx context.Context, accountID string) error {
	p := g.take(accountID)
	if p == nil {
		return nil
	}
	return g.write(ctx, accountID, p)
}

// Cancel drops the account's pending snapshot without writing it.
func (g *Gateway) Cancel(accountID string) {
	g.take(accountID)
}

// Pending reports whether a debounced save is scheduled for the account.
func (g *Gateway) Pending(accountID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[accountID]
	return ok
}

func (g *Gateway) take(accountID string) *pendingSave {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[accountID]
	if !ok {
		return nil
	}
	p.timer.Stop()
	delete(g.pending, accountID)
	return p
}

func (g *Gateway) fire(accountID string, p *pendingSave) {
	g.mu.Lock()
	if g.pending[accountID] != p {
		g.mu.Unlock()
		return
	}
	delete(g.pending, accountID)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), g.saveTimeout)
	defer cancel()
	g.write(ctx, accountID, p)
}

func (g *Gateway) write(ctx context.Context, accountID string, p *pendingSave) error {
	err := g.persist(ctx, accountID, p)
	if p.done != nil {
		p.done(err)
	}
	return err
}

func (g *Gateway) persist(ctx context.Context, accountID string, p *pendingSave) error {
	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	// A newer snapshot already reached the store.
	if p.seq < g.written[accountID] {
		return nil
	}

	if err := g.store.SaveSnapshot(ctx, accountID, p.snap); err != nil {
		err = fmt.Errorf("failed to save tasks: %w", err)
		g.logger.Printf("Debounced save for %s failed: %v", accountID, err)
		return err
	}
	g.written[accountID] = p.seq
	return nil
}
