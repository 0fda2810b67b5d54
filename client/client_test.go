package client

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/99designs/keyring"
	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore(t *testing.T) {
	store := NewTokenStore(keyring.NewArrayKeyring(nil))

	_, err := store.Get("http://localhost:3001")
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Set("http://localhost:3001", "abc"))
	require.NoError(t, store.Set("https://quest.example.com", "xyz"))

	token, err := store.Get("http://localhost:3001")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Delete("http://localhost:3001"))
	_, err = store.Get("http://localhost:3001")
	assert.ErrorIs(t, err, ErrNoToken)

	token, err = store.Get("https://quest.example.com")
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)
}

type fakeServer struct {
	token   string
	snap    database.Snapshot
	expired bool
	gets    atomic.Int32
	hits    atomic.Int32
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	if f.expired {
		http.Error(w, "authentication expired", http.StatusUnauthorized)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/api/data/get":
		f.gets.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": f.snap})
	case "/api/data/sync":
		if err := json.NewDecoder(r.Body).Decode(&f.snap); err != nil {
			http.Error(w, "Invalid request format", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "success"})
	case "/api/auth/verify":
		json.NewEncoder(w).Encode(map[string]string{"accountId": "acct-1", "status": "valid"})
	default:
		http.NotFound(w, r)
	}
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{token: "good", snap: database.DefaultSnapshot()}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func TestRemoteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f, server := newFakeServer(t)
	store := NewRemoteStore(server.URL+"/", "good")

	snap, ok, err := store.GetSnapshot(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, database.DefaultSnapshot(), snap)

	snap[0].Tasks = []database.Task{{ID: "a", Name: "Renew domain"}}
	require.NoError(t, store.SaveSnapshot(ctx, "", snap))
	assert.Equal(t, "Renew domain", f.snap[0].Tasks[0].Name)

	id, err := store.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id)
}

func TestRemoteStore_Unauthorized(t *testing.T) {
	_, server := newFakeServer(t)
	store := NewRemoteStore(server.URL, "bad")

	_, _, err := store.GetSnapshot(context.Background(), "")
	require.Error(t, err)
	assert.True(t, quest.IsAuthError(err))
	assert.Contains(t, err.Error(), "invalid token")
}

func TestRemoteStore_ExpiredSessionIsNotRetried(t *testing.T) {
	f, server := newFakeServer(t)
	f.expired = true

	gw := quest.NewGateway(NewRemoteStore(server.URL, "good"), log.New(io.Discard, "", 0))
	_, err := gw.Load(context.Background(), "acct-1", nil)

	require.Error(t, err)
	assert.True(t, quest.IsAuthError(err))
	assert.Contains(t, err.Error(), "authentication expired")
	assert.Equal(t, int32(1), f.hits.Load())
	assert.Zero(t, f.gets.Load())
}

func TestRemoteStore_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Failed to save data", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	err := NewRemoteStore(server.URL, "good").SaveSnapshot(context.Background(), "", database.DefaultSnapshot())
	require.Error(t, err)
	assert.False(t, quest.IsAuthError(err))
	assert.Contains(t, err.Error(), "500")
}
