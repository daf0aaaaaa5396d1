package schema

import "time"

// MessageType is the kind of Slack notification stored in the outbox.
type MessageType string

const (
	MessageEphemeralText   MessageType = "EPHEMERAL_TEXT"
	MessageEphemeralBlocks MessageType = "EPHEMERAL_BLOCKS"
	MessageChannelText     MessageType = "CHANNEL_TEXT"
	MessageChannelBlocks   MessageType = "CHANNEL_BLOCKS"
)

// IsValid reports whether t is one of the supported message kinds.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageEphemeralText, MessageEphemeralBlocks, MessageChannelText, MessageChannelBlocks:
		return true
	default:
		return false
	}
}

// IsEphemeral reports whether the message targets a single user.
func (t MessageType) IsEphemeral() bool {
	return t == MessageEphemeralText || t == MessageEphemeralBlocks
}

// OutboxEntry is an outbound Slack notification awaiting delivery.
// The team's access token is deliberately not stored; it is resolved at send time.
type OutboxEntry struct {
	Delivery     `bson:",inline"`
	MessageType  MessageType `json:"message_type" bson:"message_type"`
	TeamID       string      `json:"team_id" bson:"team_id"`
	ChannelID    string      `json:"channel_id" bson:"channel_id"`
	UserID       string      `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Text         string      `json:"text,omitempty" bson:"text,omitempty"`
	Blocks       string      `json:"blocks,omitempty" bson:"blocks,omitempty"`
	FallbackText string      `json:"fallback_text,omitempty" bson:"fallback_text,omitempty"`
	SourceKey    string      `json:"source_key" bson:"source_key"`
}

// State implements Entry.
func (e *OutboxEntry) State() *Delivery {
	return &e.Delivery
}

// NewOutboxEntry creates a PENDING outbox entry with required fields and sensible defaults.
func NewOutboxEntry(
	messageType MessageType,
	key, sourceKey string,
	teamID, channelID, userID string,
	text, blocks, fallbackText string,
	now time.Time,
) *OutboxEntry {
	return &OutboxEntry{
		Delivery:     newDelivery(key, now),
		MessageType:  messageType,
		TeamID:       teamID,
		ChannelID:    channelID,
		UserID:       userID,
		Text:         text,
		Blocks:       blocks,
		FallbackText: fallbackText,
		SourceKey:    sourceKey,
	}
}
