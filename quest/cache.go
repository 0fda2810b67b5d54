package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemoryMarkers keeps reset markers in memory.
type MemoryMarkers struct {
	mu   sync.Mutex
	days map[string]string
}

func NewMemoryMarkers() *MemoryMarkers {
	return &MemoryMarkers{days: make(map[string]string)}
}

func (m *MemoryMarkers) LastReset(_ context.Context, accountID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day, ok := m.days[accountID]
	return day, ok, nil
}

func (m *MemoryMarkers) SetLastReset(_ context.Context, accountID, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[accountID] = day
	return nil
}

// FileMarkers keeps reset markers in a small JSON file keyed by account id.
type FileMarkers struct {
	Path string

	mu sync.Mutex
}

func (f *FileMarkers) LastReset(_ context.Context, accountID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	days, err := f.read()
	if err != nil {
		return "", false, err
	}
	day, ok := days[accountID]
	return day, ok, nil
}

func (f *FileMarkers) SetLastReset(_ context.Context, accountID, day string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	days, err := f.read()
	if err != nil {
		return err
	}
	days[accountID] = day

	data, err := json.MarshalIndent(days, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reset markers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write reset markers: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("failed to replace reset markers: %w", err)
	}
	return nil
}

func (f *FileMarkers) read() (map[string]string, error) {
	days := make(map[string]string)
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return days, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reset markers: %w", err)
	}
	if err := json.Unmarshal(data, &days); err != nil {
		// An unreadable marker file means no reset has been recorded.
		return make(map[string]string), nil
	}
	return days, nil
}

// FileLegacyCache is a legacy bucket list kept in a local file.
type FileLegacyCache struct {
	Path string
}

func (c FileLegacyCache) Load() ([]byte, bool) {
	data, err := os.ReadFile(c.Path)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c FileLegacyCache) Clear() error {
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove legacy cache: %w", err)
	}
	return nil
}

// MemoryLegacyCache holds a legacy bucket list handed over by a client.
type MemoryLegacyCache struct {
	Data    []byte
	Cleared bool
}

func (c *MemoryLegacyCache) Load() ([]byte, bool) {
	if c.Cleared || len(c.Data) == 0 {
		return nil, false
	}
	return c.Data, true
}

func (c *MemoryLegacyCache) Clear() error {
	c.Data = nil
	c.Cleared = true
	return nil
}
