package idempotency

import (
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	gen, err := NewKeyGenerator()
	require.NoError(t, err)

	first := gen.Generate(ScopeOutbox, "payload")
	second := gen.Generate(ScopeOutbox, "payload")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	sum := sha256.Sum256([]byte("OUTBOXpayload"))
	assert.Equal(t, hex.EncodeToString(sum[:]), first)
}

func TestGenerateDistinguishesScopeAndPayload(t *testing.T) {
	gen, err := NewKeyGenerator()
	require.NoError(t, err)

	base := gen.Generate(ScopeInboxBlockActions, "a")
	assert.NotEqual(t, base, gen.Generate(ScopeInboxViewSubmission, "a"))
	assert.NotEqual(t, base, gen.Generate(ScopeInboxBlockActions, "b"))
}

func TestGenerateBlankPayloadMatchesEmpty(t *testing.T) {
	gen, err := NewKeyGenerator()
	require.NoError(t, err)

	empty := gen.Generate(ScopeOutbox, "")
	assert.Equal(t, empty, gen.Generate(ScopeOutbox, "   "))
	assert.Equal(t, empty, gen.Generate(ScopeOutbox, "\n\t"))
}

func TestNewKeyGeneratorUnavailableHash(t *testing.T) {
	// MD4 is never linked in by this package.
	gen, err := NewKeyGeneratorWithHash(crypto.MD4)
	assert.Nil(t, gen)
	assert.ErrorIs(t, err, ErrHashUnavailable)
}
