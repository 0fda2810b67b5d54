package quest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMarkers(t *testing.T) {
	ctx := context.Background()
	m := &FileMarkers{Path: filepath.Join(t.TempDir(), "state", "markers.json")}

	_, ok, err := m.LastReset(ctx, "acct")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetLastReset(ctx, "acct", "2025-04-10"))
	require.NoError(t, m.SetLastReset(ctx, "other", "2025-04-09"))

	reopened := &FileMarkers{Path: m.Path}
	day, ok, err := reopened.LastReset(ctx, "acct")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2025-04-10", day)
}

func TestFileMarkers_CorruptFileMeansNoMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	m := &FileMarkers{Path: path}

	_, ok, err := m.LastReset(context.Background(), "acct")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileLegacyCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bizquest-todolists.json")
	c := FileLegacyCache{Path: path}

	_, ok := c.Load()
	assert.False(t, ok)
	assert.NoError(t, c.Clear(), "clearing a missing cache is fine")

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	data, ok := c.Load()
	assert.True(t, ok)
	assert.Equal(t, "[]", string(data))

	require.NoError(t, c.Clear())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestGatewayLoad_FromLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bizquest-todolists.json")
	require.NoError(t, os.WriteFile(path, legacyJSON(t, fourTaskSnapshot()), 0o600))
	store := NewMockStore()
	g := newTestGateway(store)

	res, err := g.Load(context.Background(), "acct", FileLegacyCache{Path: path})
	require.NoError(t, err)
	assert.Equal(t, SourceLegacy, res.Source)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
