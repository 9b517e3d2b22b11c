package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// GenerateAPIKey creates a secure random API key and its SHA256 hash.
//
// Returns:
//   - realKey: the key to hand to the operator (e.g., "gs_admin_abc123...")
//   - keyHash: SHA256 hash to put in ADMIN_API_KEY_HASH
//   - error: any error during random byte generation
func GenerateAPIKey() (string, string, error) {
	// 1. Generate 32 random bytes using crypto/rand
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// 2. Convert to hexadecimal string and add prefix
	realKey := fmt.Sprintf("gs_admin_%s", hex.EncodeToString(bytes))

	// 3. Hash the key - this is what the config stores
	return realKey, HashKey(realKey), nil
}

// HashKey returns the hex SHA256 of key.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ValidateKey checks if a provided API key matches the stored hash.
func ValidateKey(providedKey, storedHash string) bool {
	computed := HashKey(providedKey)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
