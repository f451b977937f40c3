package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/ports"
)

// KeyStore implements ports.KeyStore using SQLite.
type KeyStore struct {
	db *DB
}

// NewKeyStore creates a new SQLite key store.
func NewKeyStore(db *DB) *KeyStore {
	return &KeyStore{db: db}
}

// List returns the keys of an owner ordered by id.
func (s *KeyStore) List(ctx context.Context, ownerID string) ([]cloud.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, fingerprint, pem, created_at
		FROM keys
		WHERE owner_id = ?
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []cloud.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Get retrieves a key by ID.
func (s *KeyStore) Get(ctx context.Context, id string) (cloud.Key, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, fingerprint, pem, created_at
		FROM keys
		WHERE id = ?
	`, id)
	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cloud.Key{}, ErrNotFound
	}
	return k, err
}

// Create stores a new key.
func (s *KeyStore) Create(ctx context.Context, k cloud.Key) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO keys (id, owner_id, name, fingerprint, pem, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, k.ID, k.OwnerID, k.Name, k.Fingerprint, k.PEM, nullTime(k.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

// Delete removes a key.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, s.db, "keys", id)
}

func scanKey(row scanner) (cloud.Key, error) {
	var (
		k       cloud.Key
		created sql.NullTime
	)
	if err := row.Scan(&k.ID, &k.OwnerID, &k.Name, &k.Fingerprint, &k.PEM, &created); err != nil {
		return cloud.Key{}, err
	}
	if created.Valid {
		k.CreatedAt = created.Time
	}
	return k, nil
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
