package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/store"
	"github.com/zoff-tech/reviewbot/schema"
)

type sentMessage struct {
	kind    schema.MessageType
	token   string
	channel string
	user    string
	body    string
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentMessage
	errs  []error // consumed one per call, nil entries succeed
	calls int
}

func (f *fakeSender) record(m sentMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSender) SendEphemeralText(_ context.Context, token, channelID, userID, text string) error {
	return f.record(sentMessage{schema.MessageEphemeralText, token, channelID, userID, text})
}

func (f *fakeSender) SendEphemeralBlocks(_ context.Context, token, channelID, userID, blocks, _ string) error {
	return f.record(sentMessage{schema.MessageEphemeralBlocks, token, channelID, userID, blocks})
}

func (f *fakeSender) SendChannelText(_ context.Context, token, channelID, text string) error {
	return f.record(sentMessage{schema.MessageChannelText, token, channelID, "", text})
}

func (f *fakeSender) SendChannelBlocks(_ context.Context, token, channelID, blocks, _ string) error {
	return f.record(sentMessage{schema.MessageChannelBlocks, token, channelID, "", blocks})
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (f *fakeTokens) AccessToken(_ context.Context, teamID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[teamID]
	if !ok {
		return "", store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTokens) set(teamID, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[teamID] = token
}

type fakeDeadLetters struct {
	mu      sync.Mutex
	letters []schema.DeadLetter
}

func (f *fakeDeadLetters) PublishDeadLetter(_ context.Context, letter schema.DeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = append(f.letters, letter)
	return nil
}

func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     2 * time.Millisecond,
	}
}

var baseTime = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func outboxEntry(i int, messageType schema.MessageType) *schema.OutboxEntry {
	return schema.NewOutboxEntry(messageType,
		fmt.Sprintf("key-%d", i), fmt.Sprintf("INBOX:%d", i),
		"T1", "C1", "U1", fmt.Sprintf("message %d", i), "", "",
		baseTime.Add(time.Duration(i)*time.Second))
}
