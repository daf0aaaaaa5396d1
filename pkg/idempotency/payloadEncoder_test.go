package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeFields(t *testing.T) {
	encoded := EncodeFields(Field{Name: "a", Value: "xy"}, Field{Name: "b", Value: ""})
	assert.Equal(t, "a=2#xy;b=0#", encoded)
}

func TestOutboxPayloadEncode(t *testing.T) {
	p := OutboxPayload{
		SourceKey:   "INBOX:42",
		MessageType: "EPHEMERAL_TEXT",
		TeamID:      "T1",
		ChannelID:   "C1",
		UserID:      "U1",
	}
	assert.Equal(t, "source=8#INBOX:42;type=14#EPHEMERAL_TEXT;team=2#T1;channel=2#C1;user=2#U1", p.Encode())
}

func TestOutboxPayloadDelimiterCollision(t *testing.T) {
	// A naive "channel:user" join makes these two targets identical.
	a := OutboxPayload{SourceKey: "INBOX:1", MessageType: "CHANNEL_TEXT", TeamID: "T", ChannelID: "C1:U", UserID: "2"}
	b := OutboxPayload{SourceKey: "INBOX:1", MessageType: "CHANNEL_TEXT", TeamID: "T", ChannelID: "C1", UserID: "U:2"}

	assert.NotEqual(t, a.Encode(), b.Encode())

	gen, err := NewKeyGenerator()
	assert.NoError(t, err)
	assert.NotEqual(t, gen.Generate(ScopeOutbox, a.Encode()), gen.Generate(ScopeOutbox, b.Encode()))
}
