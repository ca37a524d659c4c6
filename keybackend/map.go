// Package keybackend holds the secrets that sign upload URLs and session
// cookies, looked up by key id.
package keybackend

import (
	"fmt"
)

// MapSecretStore retrieves keys from an in-memory map.
type MapSecretStore struct {
	keys map[string]string
}

// NewMapSecretStore creates a store over a key id to secret mapping.
func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	return &MapSecretStore{keys: keys}
}

// Lookup returns the secret for keyID.
func (s *MapSecretStore) Lookup(keyID string) (string, error) {
	secret, found := s.keys[keyID]
	if !found {
		return "", fmt.Errorf("lookup %q: %w", keyID, ErrKeyNotFound)
	}
	return secret, nil
}

// Len reports how many keys the store holds.
func (s *MapSecretStore) Len() int {
	return len(s.keys)
}
