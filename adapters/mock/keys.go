package mock

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"

	"github.com/artpar/cloudgate/domain/cloud"
	"golang.org/x/crypto/ssh"
)

// Keys returns the caller's keys.
func (d *Driver) Keys(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Key, error) {
	if id := f["id"]; id != "" {
		k, err := d.ownedKey(ctx, creds, id)
		if err != nil {
			return nil, err
		}
		return []cloud.Key{k}, nil
	}
	keys, err := d.keys.List(ctx, creds.User)
	if err != nil {
		return nil, d.backendError("list keys", err)
	}
	return keys, nil
}

// CreateKey generates an ed25519 key pair. The private key is returned once
// in PEM form and kept only as the fingerprint afterwards.
func (d *Driver) CreateKey(ctx context.Context, creds cloud.Credentials, name string) (cloud.Key, error) {
	if name == "" {
		return cloud.Key{}, cloud.Invalid("name", "is required")
	}
	existing, err := d.keys.List(ctx, creds.User)
	if err != nil {
		return cloud.Key{}, d.backendError("list keys", err)
	}
	for _, k := range existing {
		if k.Name == name {
			return cloud.Key{}, cloud.Invalid("name", "key %q already exists", name)
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return cloud.Key{}, d.backendError("generate key", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return cloud.Key{}, d.backendError("encode public key", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, name)
	if err != nil {
		return cloud.Key{}, d.backendError("encode private key", err)
	}

	k := cloud.Key{
		ID:          d.ids.New(),
		Name:        name,
		OwnerID:     creds.User,
		Fingerprint: ssh.FingerprintLegacyMD5(sshPub),
		CreatedAt:   d.clock.Now(),
	}
	if err := d.keys.Create(ctx, k); err != nil {
		return cloud.Key{}, d.backendError("store key", err)
	}
	k.PEM = string(pem.EncodeToMemory(block))
	d.logger.Info().Str("key", k.ID).Str("owner", creds.User).Msg("key created")
	return k, nil
}

// DestroyKey deletes a key of the caller.
func (d *Driver) DestroyKey(ctx context.Context, creds cloud.Credentials, id string) error {
	if _, err := d.ownedKey(ctx, creds, id); err != nil {
		return err
	}
	if err := d.keys.Delete(ctx, id); err != nil {
		return d.backendError("delete key", err)
	}
	return nil
}

// checkKeyName verifies that name refers to one of the caller's keys.
func (d *Driver) checkKeyName(ctx context.Context, creds cloud.Credentials, name string) error {
	keys, err := d.keys.List(ctx, creds.User)
	if err != nil {
		return d.backendError("list keys", err)
	}
	for _, k := range keys {
		if k.Name == name || k.ID == name {
			return nil
		}
	}
	return cloud.Invalid("keyname", "unknown key %q", name)
}

func (d *Driver) ownedKey(ctx context.Context, creds cloud.Credentials, id string) (cloud.Key, error) {
	k, err := d.keys.Get(ctx, id)
	if err != nil {
		return cloud.Key{}, d.backendError("get key", err)
	}
	if k.OwnerID != creds.User {
		return cloud.Key{}, fmt.Errorf("key %s: %w", id, cloud.ErrNotFound)
	}
	return k, nil
}
