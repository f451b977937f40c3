package mock

import (
	"context"
	"strconv"

	"github.com/artpar/cloudgate/domain/cloud"
)

// StorageVolumes returns the caller's volumes.
func (d *Driver) StorageVolumes(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.StorageVolume, error) {
	var list []cloud.StorageVolume
	if id := f["id"]; id != "" {
		v, err := d.ownedVolume(ctx, creds, id)
		if err != nil {
			return nil, err
		}
		list = []cloud.StorageVolume{v}
	} else {
		var err error
		if list, err = d.volumes.List(ctx, creds.User); err != nil {
			return nil, d.backendError("list storage volumes", err)
		}
	}
	return cloud.FilterOn(list, upper(f, "state"), "state", func(v cloud.StorageVolume) string { return v.State }), nil
}

// CreateStorageVolume creates an unattached volume. Capacity defaults to 1.
func (d *Driver) CreateStorageVolume(ctx context.Context, creds cloud.Credentials, req cloud.VolumeRequest) (cloud.StorageVolume, error) {
	capacity := req.Capacity
	if capacity == "" {
		capacity = "1"
	}
	if n, err := strconv.Atoi(capacity); err != nil || n <= 0 {
		return cloud.StorageVolume{}, cloud.Invalid("capacity", "must be a positive integer, got %q", capacity)
	}
	realmID := req.RealmID
	if realmID == "" {
		realmID = d.catalog.Realms[0].ID
	}
	if _, ok := d.catalog.realm(realmID); !ok {
		return cloud.StorageVolume{}, cloud.Invalid("realm_id", "unknown realm %q", realmID)
	}

	v := cloud.StorageVolume{
		ID:        d.ids.New(),
		OwnerID:   creds.User,
		RealmID:   realmID,
		Capacity:  capacity,
		State:     "AVAILABLE",
		CreatedAt: d.clock.Now(),
	}
	if err := d.volumes.Save(ctx, v); err != nil {
		return cloud.StorageVolume{}, d.backendError("save storage volume", err)
	}
	d.logger.Info().Str("volume", v.ID).Str("owner", creds.User).Msg("storage volume created")
	return v, nil
}

// DestroyStorageVolume deletes an unattached volume of the caller.
func (d *Driver) DestroyStorageVolume(ctx context.Context, creds cloud.Credentials, id string) error {
	v, err := d.ownedVolume(ctx, creds, id)
	if err != nil {
		return err
	}
	if v.InstanceID != "" {
		return cloud.Invalid("id", "storage volume %s is attached to %s", id, v.InstanceID)
	}
	if err := d.volumes.Delete(ctx, id); err != nil {
		return d.backendError("delete storage volume", err)
	}
	return nil
}

func (d *Driver) ownedVolume(ctx context.Context, creds cloud.Credentials, id string) (cloud.StorageVolume, error) {
	v, err := d.volumes.Get(ctx, id)
	if err != nil {
		return cloud.StorageVolume{}, d.backendError("get storage volume", err)
	}
	if v.OwnerID != creds.User {
		return cloud.StorageVolume{}, cloud.ErrNotFound
	}
	return v, nil
}
