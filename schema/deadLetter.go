package schema

import (
	"time"

	"github.com/google/uuid"
)

// DeadLetter is published when an entry reaches FAILED.
type DeadLetter struct {
	Queue          string      `json:"queue"`
	EntryID        uuid.UUID   `json:"entry_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	FailureType    FailureType `json:"failure_type"`
	FailureReason  string      `json:"failure_reason"`
	Attempt        int         `json:"attempt"`
	FailedAt       time.Time   `json:"failed_at"`
}
