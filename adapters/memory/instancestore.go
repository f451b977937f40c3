// Package memory provides in-memory implementations of the storage ports.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/ports"
)

// InstanceStore is an in-memory implementation of ports.InstanceStore.
type InstanceStore struct {
	mu        sync.RWMutex
	instances map[string]cloud.Instance // by ID
}

// NewInstanceStore creates a new in-memory instance store.
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{
		instances: make(map[string]cloud.Instance),
	}
}

// List returns the instances of an owner ordered by id.
func (s *InstanceStore) List(ctx context.Context, ownerID string) ([]cloud.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []cloud.Instance
	for _, inst := range s.instances {
		if inst.OwnerID == ownerID {
			result = append(result, copyInstance(inst))
		}
	}
	sort.Slice(result, func(i, j int) bool { return naturalLess(result[i].ID, result[j].ID) })
	return result, nil
}

// Get retrieves an instance by ID.
func (s *InstanceStore) Get(ctx context.Context, id string) (cloud.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return cloud.Instance{}, cloud.ErrNotFound
	}
	return copyInstance(inst), nil
}

// Save creates or replaces an instance.
func (s *InstanceStore) Save(ctx context.Context, inst cloud.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances[inst.ID] = copyInstance(inst)
	return nil
}

// Delete removes an instance.
func (s *InstanceStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[id]; !ok {
		return cloud.ErrNotFound
	}
	delete(s.instances, id)
	return nil
}

// Count returns the number of stored instances.
func (s *InstanceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

func copyInstance(inst cloud.Instance) cloud.Instance {
	inst.PublicAddresses = append([]string(nil), inst.PublicAddresses...)
	inst.PrivateAddresses = append([]string(nil), inst.PrivateAddresses...)
	inst.Actions = nil
	if inst.Profile.Overrides != nil {
		overrides := make(map[string]string, len(inst.Profile.Overrides))
		for k, v := range inst.Profile.Overrides {
			overrides[k] = v
		}
		inst.Profile.Overrides = overrides
	}
	return inst
}

// naturalLess orders ids so that inst2 sorts before inst10.
func naturalLess(a, b string) bool {
	pa, na := splitNumericSuffix(a)
	pb, nb := splitNumericSuffix(b)
	if pa != pb || na < 0 || nb < 0 {
		return a < b
	}
	return na < nb
}

func splitNumericSuffix(s string) (string, int) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) || len(s)-i > 9 {
		return s, -1
	}
	n := 0
	for _, c := range s[i:] {
		n = n*10 + int(c-'0')
	}
	return s[:i], n
}

// Ensure interface compliance.
var _ ports.InstanceStore = (*InstanceStore)(nil)
