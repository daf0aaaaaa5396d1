// Package source binds outbound notifications to the event that caused them.
package source

import (
	"context"
	"strings"
)

const (
	inboxPrefix         = "INBOX:"
	businessEventPrefix = "BUSINESS_EVENT:"
)

type sourceKey struct{}

// Key identifies the causal source of an outbox enqueue, e.g. "INBOX:42".
type Key string

// Inbox returns the source key of an inbox entry.
func Inbox(entryID string) Key {
	return Key(inboxPrefix + entryID)
}

// BusinessEvent returns the source key of a business event.
func BusinessEvent(eventID string) Key {
	return Key(businessEventPrefix + eventID)
}

// IsInbox reports whether k was derived from an inbox entry.
func (k Key) IsInbox() bool {
	return strings.HasPrefix(string(k), inboxPrefix)
}

func (k Key) String() string {
	return string(k)
}

// WithKey returns a context carrying k as the current source.
func WithKey(ctx context.Context, k Key) context.Context {
	return context.WithValue(ctx, sourceKey{}, k)
}

// WithInbox returns a context whose source is the inbox entry.
func WithInbox(ctx context.Context, entryID string) context.Context {
	return WithKey(ctx, Inbox(entryID))
}

// WithBusinessEvent returns a context whose source is the business event.
func WithBusinessEvent(ctx context.Context, eventID string) context.Context {
	return WithKey(ctx, BusinessEvent(eventID))
}

// FromContext returns the source bound to ctx, if any.
func FromContext(ctx context.Context) (Key, bool) {
	k, ok := ctx.Value(sourceKey{}).(Key)
	if !ok || k == "" {
		return "", false
	}
	return k, true
}

// RunWithInbox runs fn with the inbox entry as the current source.
// The caller's context is left untouched, so the binding ends when fn returns or panics.
func RunWithInbox(ctx context.Context, entryID string, fn func(ctx context.Context) error) error {
	return fn(WithInbox(ctx, entryID))
}

// RunWithBusinessEvent runs fn with the business event as the current source.
func RunWithBusinessEvent(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	return fn(WithBusinessEvent(ctx, eventID))
}
