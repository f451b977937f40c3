package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/ports"
)

// VolumeStore implements ports.VolumeStore using SQLite.
type VolumeStore struct {
	db *DB
}

// NewVolumeStore creates a new SQLite volume store.
func NewVolumeStore(db *DB) *VolumeStore {
	return &VolumeStore{db: db}
}

// List returns the volumes of an owner ordered by id.
func (s *VolumeStore) List(ctx context.Context, ownerID string) ([]cloud.StorageVolume, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, realm_id, capacity, state, instance_id, device, created_at
		FROM storage_volumes
		WHERE owner_id = ?
		ORDER BY length(id), id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []cloud.StorageVolume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	return volumes, rows.Err()
}

// Get retrieves a volume by ID.
func (s *VolumeStore) Get(ctx context.Context, id string) (cloud.StorageVolume, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, realm_id, capacity, state, instance_id, device, created_at
		FROM storage_volumes
		WHERE id = ?
	`, id)
	v, err := scanVolume(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cloud.StorageVolume{}, ErrNotFound
	}
	return v, err
}

// Save creates or replaces a volume.
func (s *VolumeStore) Save(ctx context.Context, v cloud.StorageVolume) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_volumes (id, owner_id, realm_id, capacity, state, instance_id, device, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			realm_id = excluded.realm_id,
			capacity = excluded.capacity,
			state = excluded.state,
			instance_id = excluded.instance_id,
			device = excluded.device,
			created_at = excluded.created_at
	`, v.ID, v.OwnerID, v.RealmID, v.Capacity, v.State, v.InstanceID, v.Device, nullTime(v.CreatedAt))
	return err
}

// Delete removes a volume.
func (s *VolumeStore) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, s.db, "storage_volumes", id)
}

func scanVolume(row scanner) (cloud.StorageVolume, error) {
	var (
		v       cloud.StorageVolume
		created sql.NullTime
	)
	err := row.Scan(&v.ID, &v.OwnerID, &v.RealmID, &v.Capacity, &v.State, &v.InstanceID, &v.Device, &created)
	if err != nil {
		return cloud.StorageVolume{}, err
	}
	if created.Valid {
		v.CreatedAt = created.Time
	}
	return v, nil
}

// Ensure interface compliance.
var _ ports.VolumeStore = (*VolumeStore)(nil)
