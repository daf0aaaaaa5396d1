package interaction

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/source"
	"github.com/zoff-tech/reviewbot/pkg/writer"
	"github.com/zoff-tech/reviewbot/schema"
)

const blockActionsPayload = `{
  "type": "block_actions",
  "team": {"id": "T1"},
  "user": {"id": "U1"},
  "channel": {"id": "C1"},
  "actions": [{"action_id": "reserve", "block_id": "b1", "value": "42", "type": "button"}]
}`

const viewSubmissionPayload = `{
  "type": "view_submission",
  "team": {"id": "T1"},
  "user": {"id": "U1"},
  "view": {"id": "V1", "callback_id": "reserve_modal", "private_metadata": "C9"}
}`

var classifier = retry.NewClassifier()

type fakeOutbox struct {
	messages []writer.OutboxMessage
	sources  []source.Key
	err      error
}

func (f *fakeOutbox) Enqueue(ctx context.Context, msg writer.OutboxMessage) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	src, _ := source.FromContext(ctx)
	f.sources = append(f.sources, src)
	f.messages = append(f.messages, msg)
	return true, nil
}

func TestRouter_BlockActions(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var got *slack.BlockAction
	r.OnAction("reserve", func(_ context.Context, cb *slack.InteractionCallback, action *slack.BlockAction) error {
		assert.Equal(t, "T1", cb.Team.ID)
		got = action
		return nil
	})

	require.NoError(t, r.BlockActions().Handle(context.Background(), blockActionsPayload))
	require.NotNil(t, got)
	assert.Equal(t, "42", got.Value)
}

func TestRouter_BlockActionsFailures(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.OnAction("reserve", func(context.Context, *slack.InteractionCallback, *slack.BlockAction) error {
		return errors.New("db down")
	})

	tests := []struct {
		name      string
		payload   string
		permanent bool
	}{
		{name: "malformed json", payload: `{"type":`, permanent: true},
		{name: "wrong type", payload: viewSubmissionPayload, permanent: true},
		{name: "no actions", payload: `{"type":"block_actions","actions":[]}`, permanent: true},
		{name: "unknown action", payload: `{"type":"block_actions","actions":[{"action_id":"cancel","block_id":"b1"}]}`, permanent: true},
		{name: "handler transient error", payload: blockActionsPayload, permanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.BlockActions().Handle(context.Background(), tt.payload)
			require.Error(t, err)
			assert.Equal(t, tt.permanent, classifier.IsBusinessInvariant(err))
		})
	}
}

func TestRouter_ViewSubmission(t *testing.T) {
	r := NewRouter(zap.NewNop())
	called := false
	r.OnView("reserve_modal", func(_ context.Context, cb *slack.InteractionCallback) error {
		called = true
		assert.Equal(t, "V1", cb.View.ID)
		return nil
	})

	require.NoError(t, r.ViewSubmissions().Handle(context.Background(), viewSubmissionPayload))
	assert.True(t, called)

	err := r.ViewSubmissions().Handle(context.Background(),
		`{"type":"view_submission","view":{"callback_id":"other"}}`)
	require.Error(t, err)
	assert.True(t, classifier.IsBusinessInvariant(err))
}

func TestAcknowledger_EnqueuesUnderInboxSource(t *testing.T) {
	outbox := &fakeOutbox{}
	ack := NewAcknowledger(outbox)
	r := NewRouter(zap.NewNop())
	r.OnAction("reserve", ack.Action("Reservation received"))
	r.OnView("reserve_modal", ack.View("Submitted"))

	err := source.RunWithInbox(context.Background(), "42", func(ctx context.Context) error {
		if err := r.BlockActions().Handle(ctx, blockActionsPayload); err != nil {
			return err
		}
		return r.ViewSubmissions().Handle(ctx, viewSubmissionPayload)
	})
	require.NoError(t, err)

	require.Len(t, outbox.messages, 2)
	assert.Equal(t, writer.OutboxMessage{
		Type:      schema.MessageEphemeralText,
		TeamID:    "T1",
		ChannelID: "C1",
		UserID:    "U1",
		Text:      "Reservation received",
	}, outbox.messages[0])
	assert.Equal(t, "C9", outbox.messages[1].ChannelID)
	assert.Equal(t, []source.Key{source.Inbox("42"), source.Inbox("42")}, outbox.sources)
}

func TestAcknowledger_Failures(t *testing.T) {
	t.Run("missing channel", func(t *testing.T) {
		ack := NewAcknowledger(&fakeOutbox{})
		err := ack.View("ok")(context.Background(), &slack.InteractionCallback{
			Team: slack.Team{ID: "T1"},
			User: slack.User{ID: "U1"},
		})
		require.Error(t, err)
		assert.True(t, classifier.IsBusinessInvariant(err))
	})

	t.Run("enqueue error stays transient", func(t *testing.T) {
		ack := NewAcknowledger(&fakeOutbox{err: errors.New("insert failed")})
		err := ack.Action("ok")(context.Background(), &slack.InteractionCallback{
			Team:    slack.Team{ID: "T1"},
			User:    slack.User{ID: "U1"},
			Channel: slack.Channel{GroupConversation: slack.GroupConversation{Conversation: slack.Conversation{ID: "C1"}}},
		}, &slack.BlockAction{ActionID: "reserve"})
		require.Error(t, err)
		assert.False(t, classifier.IsBusinessInvariant(err))
	})
}
