// Package mock provides an in-process cloud backend with a static catalog
// and a lifecycle-driven instance simulator.
package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/artpar/cloudgate/adapters/clock"
	"github.com/artpar/cloudgate/adapters/hasher"
	"github.com/artpar/cloudgate/adapters/idgen"
	"github.com/artpar/cloudgate/adapters/memory"
	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/domain/lifecycle"
	"github.com/artpar/cloudgate/ports"
	"github.com/rs/zerolog"
)

// DriverName is the name advertised by the entry point.
const DriverName = "mock"

// Default account accepted when none is configured.
const (
	DefaultUser     = "mockuser"
	DefaultPassword = "mockpassword"
)

var collections = []string{
	"hardware_profiles",
	"realms",
	"images",
	"instance_states",
	"instances",
	"keys",
	"storage_volumes",
	"storage_snapshots",
}

var features = map[string][]string{
	"instances": {"user_name", "user_data", "authentication_key", "security_group", "hardware_profiles"},
}

// Config configures the mock driver. Zero values select in-memory stores,
// the built-in catalog and lifecycle, and the default account.
type Config struct {
	Catalog   *Catalog
	Lifecycle *lifecycle.Machine

	Instances ports.InstanceStore
	Keys      ports.KeyStore
	Volumes   ports.VolumeStore

	// Accounts maps user names to password hashes compared with Hasher.
	Accounts map[string][]byte
	Hasher   ports.Hasher

	InstanceIDs *idgen.Sequential
	IDs         ports.IDGenerator
	Clock       ports.Clock
	Logger      zerolog.Logger
}

// Driver implements ports.Driver against in-process state.
type Driver struct {
	catalog   *Catalog
	machine   *lifecycle.Machine
	instances ports.InstanceStore
	keys      ports.KeyStore
	volumes   ports.VolumeStore
	accounts  map[string][]byte
	hasher    ports.Hasher
	instIDs   *idgen.Sequential
	ids       ports.IDGenerator
	clock     ports.Clock
	logger    zerolog.Logger

	// instLocks holds a *sync.Mutex per instance id.
	instLocks sync.Map
}

// New creates a mock driver and seeds its stores from the catalog.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	d := &Driver{
		catalog:   cfg.Catalog,
		machine:   cfg.Lifecycle,
		instances: cfg.Instances,
		keys:      cfg.Keys,
		volumes:   cfg.Volumes,
		accounts:  cfg.Accounts,
		hasher:    cfg.Hasher,
		instIDs:   cfg.InstanceIDs,
		ids:       cfg.IDs,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With().Str("driver", DriverName).Logger(),
	}

	if d.catalog == nil {
		c, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		d.catalog = c
	}
	if d.machine == nil {
		m, err := lifecycle.Builtin(DriverName)
		if err != nil {
			return nil, err
		}
		d.machine = m
	}
	if d.instances == nil {
		d.instances = memory.NewInstanceStore()
	}
	if d.keys == nil {
		d.keys = memory.NewKeyStore()
	}
	if d.volumes == nil {
		d.volumes = memory.NewVolumeStore()
	}
	if d.hasher == nil {
		d.hasher = hasher.Plain{}
	}
	if len(d.accounts) == 0 {
		hash, err := d.hasher.Hash(DefaultPassword)
		if err != nil {
			return nil, fmt.Errorf("hash default password: %w", err)
		}
		d.accounts = map[string][]byte{DefaultUser: hash}
	}
	if d.instIDs == nil {
		d.instIDs = idgen.NewSequential("inst")
	}
	if d.ids == nil {
		d.ids = idgen.UUID{}
	}
	if d.clock == nil {
		d.clock = clock.Real{}
	}

	if err := d.seed(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// seed stores catalog instances and volumes that are not persisted yet.
func (d *Driver) seed(ctx context.Context) error {
	now := d.clock.Now()
	for _, s := range d.catalog.Instances {
		d.instIDs.Observe(s.ID)
		if _, err := d.instances.Get(ctx, s.ID); err == nil {
			continue
		} else if !errors.Is(err, cloud.ErrNotFound) {
			return fmt.Errorf("seed instance %s: %w", s.ID, err)
		}
		img, _ := d.catalog.image(s.ImageID)
		inst := cloud.Instance{
			ID:         s.ID,
			Name:       s.Name,
			OwnerID:    s.OwnerID,
			ImageID:    s.ImageID,
			RealmID:    s.RealmID,
			State:      cloud.DisplayState(s.State),
			Profile:    cloud.InstanceProfile{ProfileID: s.ProfileID, Overrides: s.Overrides},
			LaunchTime: now,
		}
		inst.PublicAddresses, inst.PrivateAddresses = addresses(img.ID, inst.ID)
		if err := d.instances.Save(ctx, inst); err != nil {
			return fmt.Errorf("seed instance %s: %w", s.ID, err)
		}
	}
	for _, s := range d.catalog.StorageVolumes {
		if _, err := d.volumes.Get(ctx, s.ID); err == nil {
			continue
		} else if !errors.Is(err, cloud.ErrNotFound) {
			return fmt.Errorf("seed storage volume %s: %w", s.ID, err)
		}
		v := cloud.StorageVolume{
			ID:         s.ID,
			OwnerID:    s.OwnerID,
			RealmID:    s.RealmID,
			Capacity:   s.Capacity,
			State:      cloud.DisplayState(s.State),
			InstanceID: s.InstanceID,
			Device:     s.Device,
			CreatedAt:  now,
		}
		if err := d.volumes.Save(ctx, v); err != nil {
			return fmt.Errorf("seed storage volume %s: %w", s.ID, err)
		}
	}
	d.logger.Debug().
		Int("instances", len(d.catalog.Instances)).
		Int("volumes", len(d.catalog.StorageVolumes)).
		Msg("catalog seeded")
	return nil
}

// Name returns the driver identifier.
func (d *Driver) Name() string {
	return DriverName
}

// Lifecycle returns the instance state machine.
func (d *Driver) Lifecycle() *lifecycle.Machine {
	return d.machine
}

// Collections lists the supported collections.
func (d *Driver) Collections() []string {
	return append([]string(nil), collections...)
}

// Features lists the optional capabilities of a collection.
func (d *Driver) Features(collection string) []string {
	return append([]string(nil), features[collection]...)
}

// ValidCredentials checks the pair against the configured accounts.
func (d *Driver) ValidCredentials(ctx context.Context, creds cloud.Credentials) bool {
	hash, ok := d.accounts[creds.User]
	if !ok {
		return false
	}
	return d.hasher.Compare(hash, creds.Password)
}

// Realms returns the catalog realms.
func (d *Driver) Realms(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Realm, error) {
	out := cloud.FilterOn(d.catalog.Realms, f, "id", func(r cloud.Realm) string { return r.ID })
	out = cloud.FilterOn(out, upper(f, "state"), "state", func(r cloud.Realm) string { return r.State })
	return notFoundIfFiltered(out, f)
}

// Images returns the catalog images. owner_id=self selects the caller's images.
func (d *Driver) Images(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Image, error) {
	if f["owner_id"] == "self" {
		f = withValue(f, "owner_id", creds.User)
	}
	out := cloud.FilterOn(d.catalog.Images, f, "id", func(i cloud.Image) string { return i.ID })
	out = cloud.FilterOn(out, f, "owner_id", func(i cloud.Image) string { return i.OwnerID })
	out = cloud.FilterOn(out, f, "architecture", func(i cloud.Image) string { return i.Architecture })
	return notFoundIfFiltered(out, f)
}

// HardwareProfiles returns the catalog hardware profiles.
func (d *Driver) HardwareProfiles(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.HardwareProfile, error) {
	out := cloud.FilterOn(d.catalog.HardwareProfiles, f, "id", func(p cloud.HardwareProfile) string { return p.ID })
	out = cloud.FilterOn(out, f, "architecture", func(p cloud.HardwareProfile) string {
		arch, _ := p.Property("architecture")
		return arch.Default
	})
	return notFoundIfFiltered(out, f)
}

// StorageSnapshots returns the catalog snapshots of the caller.
func (d *Driver) StorageSnapshots(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.StorageSnapshot, error) {
	out := cloud.FilterOn(d.catalog.StorageSnapshots, cloud.Filter{"owner_id": creds.User}, "owner_id",
		func(s cloud.StorageSnapshot) string { return s.OwnerID })
	out = cloud.FilterOn(out, f, "id", func(s cloud.StorageSnapshot) string { return s.ID })
	return notFoundIfFiltered(out, f)
}

// notFoundIfFiltered turns an empty id-filtered result into ErrNotFound.
func notFoundIfFiltered[T any](items []T, f cloud.Filter) ([]T, error) {
	if f["id"] != "" && len(items) == 0 {
		return nil, cloud.ErrNotFound
	}
	return items, nil
}

func withValue(f cloud.Filter, key, value string) cloud.Filter {
	out := make(cloud.Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[key] = value
	return out
}

// upper returns f with key upper-cased, since stored states are upper-case.
func upper(f cloud.Filter, key string) cloud.Filter {
	v, ok := f[key]
	if !ok {
		return f
	}
	return withValue(f, key, strings.ToUpper(v))
}

func addresses(imageID, instanceID string) (public, private []string) {
	return []string{fmt.Sprintf("%s.%s.public.com", imageID, instanceID)},
		[]string{fmt.Sprintf("%s.%s.private.com", imageID, instanceID)}
}

func (d *Driver) backendError(op string, err error) error {
	if errors.Is(err, cloud.ErrNotFound) {
		return err
	}
	return &cloud.BackendError{Driver: DriverName, Code: "500", Err: fmt.Errorf("%s: %w", op, err)}
}

// Ensure interface compliance.
var _ ports.Driver = (*Driver)(nil)
