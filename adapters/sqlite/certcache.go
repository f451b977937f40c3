package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"golang.org/x/crypto/acme/autocert"
)

// CertCache implements autocert.Cache on the database so certificates and
// the ACME account key survive restarts.
type CertCache struct {
	db *DB

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewCertCache creates a database-backed certificate cache.
func NewCertCache(db *DB) *CertCache {
	return &CertCache{db: db, cache: make(map[string][]byte)}
}

// Get returns cached data or autocert.ErrCacheMiss.
func (c *CertCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	err := c.db.QueryRowContext(ctx, `SELECT data FROM acme_cache WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autocert.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = data
	c.mu.Unlock()
	return data, nil
}

// Put stores data under key.
func (c *CertCache) Put(ctx context.Context, key string, data []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO acme_cache (key, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, key, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cache[key] = append([]byte(nil), data...)
	c.mu.Unlock()
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *CertCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM acme_cache WHERE key = ?`, key)
	return err
}

// Ensure interface compliance.
var _ autocert.Cache = (*CertCache)(nil)
