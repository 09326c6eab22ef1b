package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HTTPKey builds the key under which a registry or hosting response is stored.
// The namespace keeps clients apart ("rubygems:", "github:").
func HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}
