package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/ports"
)

// InstanceStore implements ports.InstanceStore using SQLite.
type InstanceStore struct {
	db *DB
}

// NewInstanceStore creates a new SQLite instance store.
func NewInstanceStore(db *DB) *InstanceStore {
	return &InstanceStore{db: db}
}

const instanceColumns = `id, owner_id, name, image_id, realm_id, state, profile_id,
	profile_overrides, public_addresses, private_addresses, launch_time`

// List returns the instances of an owner ordered by id.
func (s *InstanceStore) List(ctx context.Context, ownerID string) ([]cloud.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE owner_id = ?
		ORDER BY length(id), id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []cloud.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// Get retrieves an instance by ID.
func (s *InstanceStore) Get(ctx context.Context, id string) (cloud.Instance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cloud.Instance{}, ErrNotFound
	}
	return inst, err
}

// Save creates or replaces an instance.
func (s *InstanceStore) Save(ctx context.Context, inst cloud.Instance) error {
	overrides, err := json.Marshal(inst.Profile.Overrides)
	if err != nil {
		return fmt.Errorf("encode profile overrides: %w", err)
	}
	public, err := json.Marshal(inst.PublicAddresses)
	if err != nil {
		return fmt.Errorf("encode public addresses: %w", err)
	}
	private, err := json.Marshal(inst.PrivateAddresses)
	if err != nil {
		return fmt.Errorf("encode private addresses: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			image_id = excluded.image_id,
			realm_id = excluded.realm_id,
			state = excluded.state,
			profile_id = excluded.profile_id,
			profile_overrides = excluded.profile_overrides,
			public_addresses = excluded.public_addresses,
			private_addresses = excluded.private_addresses,
			launch_time = excluded.launch_time
	`, inst.ID, inst.OwnerID, inst.Name, inst.ImageID, inst.RealmID, inst.State, inst.Profile.ProfileID,
		string(overrides), string(public), string(private), nullTime(inst.LaunchTime))
	return err
}

// Delete removes an instance.
func (s *InstanceStore) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, s.db, "instances", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(row scanner) (cloud.Instance, error) {
	var (
		inst                       cloud.Instance
		overrides, public, private string
		launched                   sql.NullTime
	)
	err := row.Scan(&inst.ID, &inst.OwnerID, &inst.Name, &inst.ImageID, &inst.RealmID, &inst.State,
		&inst.Profile.ProfileID, &overrides, &public, &private, &launched)
	if err != nil {
		return cloud.Instance{}, err
	}

	if overrides != "" && overrides != "null" {
		if err := json.Unmarshal([]byte(overrides), &inst.Profile.Overrides); err != nil {
			return cloud.Instance{}, fmt.Errorf("decode profile overrides: %w", err)
		}
	}
	if public != "" && public != "null" {
		if err := json.Unmarshal([]byte(public), &inst.PublicAddresses); err != nil {
			return cloud.Instance{}, fmt.Errorf("decode public addresses: %w", err)
		}
	}
	if private != "" && private != "null" {
		if err := json.Unmarshal([]byte(private), &inst.PrivateAddresses); err != nil {
			return cloud.Instance{}, fmt.Errorf("decode private addresses: %w", err)
		}
	}
	if launched.Valid {
		inst.LaunchTime = launched.Time
	}
	return inst, nil
}

// Ensure interface compliance.
var _ ports.InstanceStore = (*InstanceStore)(nil)
