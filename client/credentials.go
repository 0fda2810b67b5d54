package client

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "bizniz-quest"

// ErrNoToken is returned when no session token has been stored for a server.
var ErrNoToken = errors.New("not logged in")

// OpenKeyring returns the system keyring, falling back to an encrypted file
// under dir.
func OpenKeyring(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("bizniz-quest-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// TokenStore keeps one session token per server URL.
type TokenStore struct {
	ring keyring.Keyring
}

func NewTokenStore(ring keyring.Keyring) *TokenStore {
	return &TokenStore{ring: ring}
}

// Get returns the token saved for server, or ErrNoToken.
func (s *TokenStore) Get(server string) (string, error) {
	item, err := s.ring.Get(server)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting token for %q: %w", server, err)
	}
	return string(item.Data), nil
}

func (s *TokenStore) Set(server, token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   server,
		Data:  []byte(token),
		Label: serviceName + " session",
	})
	if err != nil {
		return fmt.Errorf("setting token for %q: %w", server, err)
	}
	return nil
}

// Delete forgets the token for server. Deleting a missing token is not an error.
func (s *TokenStore) Delete(server string) error {
	err := s.ring.Remove(server)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting token for %q: %w", server, err)
	}
	return nil
}
