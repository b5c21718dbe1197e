// Package auth implements the credential gate for the inbound pricing API.
package auth

import (
	"expanse/internal/types"
)

// Gate validates a caller-supplied API key against the configured secret.
// It is stateless beyond the secret loaded at construction and safe for
// concurrent use.
type Gate struct {
	secret types.SecretString
}

// NewGate creates a Gate for the configured secret. An empty secret makes the
// gate fail closed: every presented key is rejected.
func NewGate(secret types.SecretString) *Gate {
	return &Gate{secret: secret}
}

// Verify reports whether the presented key matches the configured secret.
//
// The length check short-circuits before any content comparison. This leaks
// the credential's length over a timing side channel, which is accepted as a
// documented low-severity tradeoff. Once lengths match, the comparison
// XOR-accumulates every byte pair with no early exit, so execution time does
// not depend on where equal-length inputs first differ.
func (g *Gate) Verify(presented string) bool {
	secret := g.secret.Unmask()
	if secret == "" {
		return false
	}
	if presented == "" {
		return false
	}
	if len(presented) != len(secret) {
		return false
	}

	var mismatch byte
	for i := 0; i < len(secret); i++ {
		mismatch |= presented[i] ^ secret[i]
	}
	return mismatch == 0
}
