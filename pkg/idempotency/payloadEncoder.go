package idempotency

import (
	"strconv"
	"strings"
)

// Field is a named value included in an encoded payload.
type Field struct {
	Name  string
	Value string
}

// EncodeFields writes every field as name=length#value, joined by ';'.
// The explicit length keeps values containing separators from colliding
// with a different split of the same characters.
func EncodeFields(fields ...Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(len(f.Value)))
		b.WriteByte('#')
		b.WriteString(f.Value)
	}
	return b.String()
}

// OutboxPayload is the identity of an outbound notification.
// Message content is not part of it: the same cause sending to the same
// target is one notification.
type OutboxPayload struct {
	SourceKey   string
	MessageType string
	TeamID      string
	ChannelID   string
	UserID      string
}

// Encode returns the canonical payload string fed to the key generator.
func (p OutboxPayload) Encode() string {
	return EncodeFields(
		Field{Name: "source", Value: p.SourceKey},
		Field{Name: "type", Value: p.MessageType},
		Field{Name: "team", Value: p.TeamID},
		Field{Name: "channel", Value: p.ChannelID},
		Field{Name: "user", Value: p.UserID},
	)
}
