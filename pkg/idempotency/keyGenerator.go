package idempotency

import (
	"crypto"
	_ "crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Scope separates idempotency keys of different queues so that equal payloads
// in two queues never collapse into one key.
type Scope string

const (
	ScopeInboxBlockActions   Scope = "INBOX_BLOCK_ACTIONS"
	ScopeInboxViewSubmission Scope = "INBOX_VIEW_SUBMISSION"
	ScopeOutbox              Scope = "OUTBOX"
)

// ErrHashUnavailable is returned when the configured hash is not linked into the binary.
var ErrHashUnavailable = errors.New("idempotency: hash algorithm unavailable")

// KeyGenerator derives deterministic idempotency keys.
type KeyGenerator struct {
	hash crypto.Hash
}

// NewKeyGenerator returns a generator using SHA-256.
func NewKeyGenerator() (*KeyGenerator, error) {
	return NewKeyGeneratorWithHash(crypto.SHA256)
}

// NewKeyGeneratorWithHash returns a generator for the given hash.
// A missing hash implementation is a configuration error and is never retried.
func NewKeyGeneratorWithHash(hash crypto.Hash) (*KeyGenerator, error) {
	if !hash.Available() {
		return nil, fmt.Errorf("%w: %v", ErrHashUnavailable, hash)
	}
	return &KeyGenerator{hash: hash}, nil
}

// Generate returns the lowercase hex digest of scope || payload.
// A blank payload hashes the same as the empty string.
func (g *KeyGenerator) Generate(scope Scope, payload string) string {
	if strings.TrimSpace(payload) == "" {
		payload = ""
	}
	h := g.hash.New()
	h.Write([]byte(scope))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
