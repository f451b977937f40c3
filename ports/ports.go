// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/domain/lifecycle"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password hashing.
type Hasher interface {
	// Hash generates a hash from plaintext.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Backend Port
// -----------------------------------------------------------------------------

// Driver translates unified operations into one provider's calls.
// List operations honour an "id" filter plus the per-collection filters
// documented on each method. Unknown ids yield cloud.ErrNotFound.
type Driver interface {
	// Name is the driver identifier advertised by the entry point.
	Name() string

	// Lifecycle is the instance state machine the driver declares.
	Lifecycle() *lifecycle.Machine

	// Collections lists the supported collections in entry point order.
	Collections() []string

	// Features lists the optional capabilities of a collection.
	Features(collection string) []string

	// ValidCredentials checks a user/password pair against the provider.
	ValidCredentials(ctx context.Context, creds cloud.Credentials) bool

	// Realms filters: id, state.
	Realms(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Realm, error)

	// Images filters: id, owner_id ("self" means the caller), architecture.
	Images(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Image, error)

	// HardwareProfiles filters: id, architecture.
	HardwareProfiles(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.HardwareProfile, error)

	// Instances filters: id, state.
	Instances(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Instance, error)

	// CreateInstance launches an instance and returns it in its settled state.
	CreateInstance(ctx context.Context, creds cloud.Credentials, req cloud.InstanceRequest) (cloud.Instance, error)

	// InstanceAction applies a lifecycle action. The returned bool is false
	// when the action removed the instance.
	InstanceAction(ctx context.Context, creds cloud.Credentials, id, action string) (cloud.Instance, bool, error)

	// Keys filters: id.
	Keys(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Key, error)
	CreateKey(ctx context.Context, creds cloud.Credentials, name string) (cloud.Key, error)
	DestroyKey(ctx context.Context, creds cloud.Credentials, id string) error

	// StorageVolumes filters: id, state.
	StorageVolumes(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.StorageVolume, error)
	CreateStorageVolume(ctx context.Context, creds cloud.Credentials, req cloud.VolumeRequest) (cloud.StorageVolume, error)
	DestroyStorageVolume(ctx context.Context, creds cloud.Credentials, id string) error

	// StorageSnapshots filters: id.
	StorageSnapshots(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.StorageSnapshot, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// InstanceStore persists instances.
type InstanceStore interface {
	// List returns the instances of an owner ordered by id.
	List(ctx context.Context, ownerID string) ([]cloud.Instance, error)

	// Get retrieves an instance by ID.
	Get(ctx context.Context, id string) (cloud.Instance, error)

	// Save creates or replaces an instance.
	Save(ctx context.Context, inst cloud.Instance) error

	// Delete removes an instance.
	Delete(ctx context.Context, id string) error
}

// KeyStore persists instance access keys.
type KeyStore interface {
	// List returns the keys of an owner ordered by id.
	List(ctx context.Context, ownerID string) ([]cloud.Key, error)

	// Get retrieves a key by ID.
	Get(ctx context.Context, id string) (cloud.Key, error)

	// Create stores a new key.
	Create(ctx context.Context, k cloud.Key) error

	// Delete removes a key.
	Delete(ctx context.Context, id string) error
}

// VolumeStore persists storage volumes.
type VolumeStore interface {
	// List returns the volumes of an owner ordered by id.
	List(ctx context.Context, ownerID string) ([]cloud.StorageVolume, error)

	// Get retrieves a volume by ID.
	Get(ctx context.Context, id string) (cloud.StorageVolume, error)

	// Save creates or replaces a volume.
	Save(ctx context.Context, v cloud.StorageVolume) error

	// Delete removes a volume.
	Delete(ctx context.Context, id string) error
}
