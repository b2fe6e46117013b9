package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// NewCredential generates a high-entropy session secret. It is returned to
// the caller exactly once; only its hash is ever persisted.
func NewCredential() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process environment is broken.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// HashCredential returns the one-way hash persisted for a session secret.
// The secret carries 256 bits of entropy, so a plain digest is sufficient;
// there is nothing for an offline attacker to brute-force.
func HashCredential(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyCredential compares a presented secret against a stored hash in
// constant time.
func VerifyCredential(storedHash, secret string) bool {
	presented := HashCredential(secret)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(presented)) == 1
}
