package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusClaimable(t *testing.T) {
	assert.True(t, StatusPending.IsClaimable())
	assert.True(t, StatusRetryPending.IsClaimable())
	assert.False(t, StatusProcessing.IsClaimable())
	assert.False(t, StatusSent.IsClaimable())
	assert.False(t, StatusFailed.IsClaimable())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusProcessed.IsTerminal())
	assert.True(t, StatusSent.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRetryPending.IsTerminal())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusRetryPending, StatusProcessing, true},
		{StatusProcessing, StatusSent, true},
		{StatusProcessing, StatusProcessed, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusRetryPending, true},
		{StatusPending, StatusSent, false},
		{StatusSent, StatusProcessing, false},
		{StatusFailed, StatusProcessing, false},
		{StatusProcessed, StatusFailed, false},
		{StatusSent, StatusRetryPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewOutboxEntry(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := NewOutboxEntry(MessageEphemeralText, "key", "INBOX:42", "T1", "C1", "U1", "hi", "", "", now)

	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, 0, entry.ProcessingAttempt)
	assert.Equal(t, now, entry.CreatedAt)
	assert.Equal(t, "INBOX:42", entry.SourceKey)
	assert.NotEqual(t, [16]byte{}, [16]byte(entry.ID))
	assert.Same(t, &entry.Delivery, entry.State())
}
