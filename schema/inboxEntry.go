package schema

import "time"

// InteractionType is the kind of Slack interaction callback stored in the inbox.
type InteractionType string

const (
	InteractionBlockActions   InteractionType = "BLOCK_ACTIONS"
	InteractionViewSubmission InteractionType = "VIEW_SUBMISSION"
)

// IsValid reports whether t is one of the supported interaction kinds.
func (t InteractionType) IsValid() bool {
	return t == InteractionBlockActions || t == InteractionViewSubmission
}

// InboxEntry is an inbound Slack interaction awaiting processing.
type InboxEntry struct {
	Delivery        `bson:",inline"`
	InteractionType InteractionType `json:"interaction_type" bson:"interaction_type"`
	Payload         string          `json:"payload" bson:"payload"`
}

// State implements Entry.
func (e *InboxEntry) State() *Delivery {
	return &e.Delivery
}

// NewInboxEntry creates a PENDING inbox entry.
func NewInboxEntry(interactionType InteractionType, key, payload string, now time.Time) *InboxEntry {
	return &InboxEntry{
		Delivery:        newDelivery(key, now),
		InteractionType: interactionType,
		Payload:         payload,
	}
}
