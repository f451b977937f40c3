package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/ports"
)

// VolumeStore is an in-memory implementation of ports.VolumeStore.
type VolumeStore struct {
	mu      sync.RWMutex
	volumes map[string]cloud.StorageVolume // by ID
}

// NewVolumeStore creates a new in-memory volume store.
func NewVolumeStore() *VolumeStore {
	return &VolumeStore{
		volumes: make(map[string]cloud.StorageVolume),
	}
}

// List returns the volumes of an owner ordered by id.
func (s *VolumeStore) List(ctx context.Context, ownerID string) ([]cloud.StorageVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []cloud.StorageVolume
	for _, v := range s.volumes {
		if v.OwnerID == ownerID {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return naturalLess(result[i].ID, result[j].ID) })
	return result, nil
}

// Get retrieves a volume by ID.
func (s *VolumeStore) Get(ctx context.Context, id string) (cloud.StorageVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.volumes[id]
	if !ok {
		return cloud.StorageVolume{}, cloud.ErrNotFound
	}
	return v, nil
}

// Save creates or replaces a volume.
func (s *VolumeStore) Save(ctx context.Context, v cloud.StorageVolume) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volumes[v.ID] = v
	return nil
}

// Delete removes a volume.
func (s *VolumeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.volumes[id]; !ok {
		return cloud.ErrNotFound
	}
	delete(s.volumes, id)
	return nil
}

// Ensure interface compliance.
var _ ports.VolumeStore = (*VolumeStore)(nil)
