package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/ports"
)

// KeyStore is an in-memory implementation of ports.KeyStore.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]cloud.Key // by ID
}

// NewKeyStore creates a new in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys: make(map[string]cloud.Key),
	}
}

// List returns the keys of an owner ordered by id.
func (s *KeyStore) List(ctx context.Context, ownerID string) ([]cloud.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []cloud.Key
	for _, k := range s.keys {
		if k.OwnerID == ownerID {
			result = append(result, k)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Get retrieves a key by ID.
func (s *KeyStore) Get(ctx context.Context, id string) (cloud.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[id]
	if !ok {
		return cloud.Key{}, cloud.ErrNotFound
	}
	return k, nil
}

// Create stores a new key. Ids must be unique.
func (s *KeyStore) Create(ctx context.Context, k cloud.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[k.ID]; exists {
		return fmt.Errorf("key %s already exists", k.ID)
	}
	s.keys[k.ID] = k
	return nil
}

// Delete removes a key.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[id]; !ok {
		return cloud.ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
