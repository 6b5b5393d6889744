// Package cache stores raw FactorDB response bodies keyed by endpoint and
// number, in memory, on disk, or both.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte-valued store with per-entry expiry
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for a lookup of number against endpoint.
// Different endpoints never share entries.
func Key(endpoint, number string) string {
	hash := sha256.Sum256([]byte(endpoint + "\x00" + number))
	return "factordb:v1:" + hex.EncodeToString(hash[:])
}
