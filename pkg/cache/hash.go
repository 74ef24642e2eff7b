package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/zeebo/xxh3"
)

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Fingerprint returns a content hash of an arbitrary value. Structs are
// hashed field by field, so maps and unordered sets tagged `hash:"set"`
// hash the same regardless of iteration order.
// NOT SUITABLE FOR CRYPTOGRAPHIC HASHING.
func Fingerprint(v any) (string, error) {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, &hashstructure.HashOptions{
		Hasher: xxh3.New(),
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}

// stripe maps a key to one of n lock stripes.
func stripe(key string, n int) int {
	return int(xxh3.HashString(key) % uint64(n))
}

