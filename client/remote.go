package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
)

const defaultHTTPTimeout = 15 * time.Second

// RemoteStore reads and writes an account's snapshot through the HTTP API
// using a session token. It satisfies quest.SnapshotStore.
type RemoteStore struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

var _ quest.SnapshotStore = (*RemoteStore)(nil)

// GetSnapshot fetches the account's snapshot. The server seeds defaults for
// new accounts, so a successful response is always found. The account id is
// implied by the token.
func (s *RemoteStore) GetSnapshot(ctx context.Context, _ string) (database.Snapshot, bool, error) {
	var resp struct {
		Data database.Snapshot `json:"data"`
	}
	if err := s.do(ctx, http.MethodGet, "/api/data/get", nil, &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, len(resp.Data) > 0, nil
}

// SaveSnapshot replaces the account's stored snapshot.
func (s *RemoteStore) SaveSnapshot(ctx context.Context, _ string, snap database.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.do(ctx, http.MethodPost, "/api/data/sync", body, nil)
}

// Verify returns the account id behind the token.
func (s *RemoteStore) Verify(ctx context.Context) (string, error) {
	var resp struct {
		AccountID string `json:"accountId"`
	}
	if err := s.do(ctx, http.MethodGet, "/api/auth/verify", nil, &resp); err != nil {
		return "", err
	}
	return resp.AccountID, nil
}

func (s *RemoteStore) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &quest.AuthError{Message: strings.TrimSpace(string(msg))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
