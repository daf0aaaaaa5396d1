package schema

import (
	"time"

	"github.com/google/uuid"
)

// Delivery holds the queue bookkeeping shared by inbox and outbox entries.
type Delivery struct {
	ID                  uuid.UUID   `json:"id" bson:"id"`
	IdempotencyKey      string      `json:"idempotency_key" bson:"idempotency_key"`
	Status              Status      `json:"status" bson:"status"`
	ProcessingAttempt   int         `json:"processing_attempt" bson:"processing_attempt"`
	FailureType         FailureType `json:"failure_type,omitempty" bson:"failure_type,omitempty"`
	FailureReason       string      `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt           time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" bson:"updated_at"`
	ProcessingStartedAt *time.Time  `json:"processing_started_at,omitempty" bson:"processing_started_at,omitempty"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Entry is implemented by every row type a queue engine can process.
type Entry interface {
	State() *Delivery
}

func newDelivery(key string, now time.Time) Delivery {
	return Delivery{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
