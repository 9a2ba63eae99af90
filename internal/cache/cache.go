// Package cache is a persistent blob store keyed by content hash.
// transform.Manager uses it as a result cache: the key is the hash of a
// target class's input bytes and the blob is that class's transformed
// output, so an unchanged class skips the handler chain. Backed by
// modernc.org/sqlite, the pack's pure-Go, cgo-free database driver.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transformer_cache (
	hash TEXT PRIMARY KEY,
	class_name TEXT NOT NULL,
	parsed BLOB NOT NULL
);
`

// Cache wraps a sqlite-backed table of hash -> blob, each row tagged with
// a class name. The blob (parsed column) is opaque to this package; it
// stores and returns the caller's bytes unchanged.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite database at path and ensures
// the cache schema exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("classmorph: opening cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("classmorph: initializing cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Hash returns the content hash cache entries are keyed by.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached blob for hash, and whether it was found.
func (c *Cache) Get(hash string) ([]byte, bool, error) {
	var parsed []byte
	err := c.db.QueryRow(`SELECT parsed FROM transformer_cache WHERE hash = ?`, hash).Scan(&parsed)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("classmorph: reading cache entry %s: %w", hash, err)
	}
	return parsed, true, nil
}

// Put stores or replaces the blob for hash.
func (c *Cache) Put(hash, className string, parsed []byte) error {
	_, err := c.db.Exec(
		`INSERT INTO transformer_cache (hash, class_name, parsed) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET class_name = excluded.class_name, parsed = excluded.parsed`,
		hash, className, parsed,
	)
	if err != nil {
		return fmt.Errorf("classmorph: writing cache entry %s: %w", hash, err)
	}
	return nil
}

// Invalidate removes every cache entry for className. transform.Manager's
// Hotswap calls it for each target before re-transforming that target, so
// the pre-hotswap output is not served for the unchanged input bytes.
func (c *Cache) Invalidate(className string) error {
	_, err := c.db.Exec(`DELETE FROM transformer_cache WHERE class_name = ?`, className)
	if err != nil {
		return fmt.Errorf("classmorph: invalidating cache entries for %s: %w", className, err)
	}
	return nil
}
