package interaction

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/writer"
	"github.com/zoff-tech/reviewbot/schema"
)

// Enqueuer stores outbound messages. Satisfied by *writer.OutboxWriter.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg writer.OutboxMessage) (bool, error)
}

// Acknowledger replies to the interacting user with an ephemeral text. The reply
// is enqueued under the inbox entry bound to ctx, so reprocessing the same
// interaction never sends it twice.
type Acknowledger struct {
	outbox Enqueuer
}

func NewAcknowledger(outbox Enqueuer) *Acknowledger {
	return &Acknowledger{outbox: outbox}
}

// Action returns a handler replying text in the channel the action came from.
func (a *Acknowledger) Action(text string) ActionHandler {
	return func(ctx context.Context, cb *slack.InteractionCallback, action *slack.BlockAction) error {
		channelID := cb.Channel.ID
		if channelID == "" {
			channelID = cb.Container.ChannelID
		}
		return a.reply(ctx, cb, channelID, text)
	}
}

// View returns a handler replying text in the channel carried by the view's
// private metadata.
func (a *Acknowledger) View(text string) ViewHandler {
	return func(ctx context.Context, cb *slack.InteractionCallback) error {
		return a.reply(ctx, cb, cb.View.PrivateMetadata, text)
	}
}

func (a *Acknowledger) reply(ctx context.Context, cb *slack.InteractionCallback, channelID, text string) error {
	if cb.Team.ID == "" || cb.User.ID == "" || channelID == "" {
		return retry.BusinessInvariantf("interaction lacks team, user or channel")
	}

	_, err := a.outbox.Enqueue(ctx, writer.OutboxMessage{
		Type:      schema.MessageEphemeralText,
		TeamID:    cb.Team.ID,
		ChannelID: channelID,
		UserID:    cb.User.ID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("enqueue acknowledgement: %w", err)
	}
	return nil
}
