package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/store"
	"github.com/zoff-tech/reviewbot/schema"
)

// Sender performs the Slack API call of each outbound message type.
type Sender interface {
	SendEphemeralText(ctx context.Context, token, channelID, userID, text string) error
	SendEphemeralBlocks(ctx context.Context, token, channelID, userID, blocks, fallbackText string) error
	SendChannelText(ctx context.Context, token, channelID, text string) error
	SendChannelBlocks(ctx context.Context, token, channelID, blocks, fallbackText string) error
}

// OutboxWork resolves the team's token at send time and dispatches by message type.
func OutboxWork(tokens store.TeamTokenRepository, sender Sender) Work[*schema.OutboxEntry] {
	return func(ctx context.Context, entry *schema.OutboxEntry) error {
		token, err := tokens.AccessToken(ctx, entry.TeamID)
		if errors.Is(err, store.ErrNotFound) {
			return retry.BusinessInvariantf("no access token for team %s", entry.TeamID)
		}
		if err != nil {
			return fmt.Errorf("resolve access token for team %s: %w", entry.TeamID, err)
		}

		switch entry.MessageType {
		case schema.MessageEphemeralText:
			return sender.SendEphemeralText(ctx, token, entry.ChannelID, entry.UserID, entry.Text)
		case schema.MessageEphemeralBlocks:
			return sender.SendEphemeralBlocks(ctx, token, entry.ChannelID, entry.UserID, entry.Blocks, entry.FallbackText)
		case schema.MessageChannelText:
			return sender.SendChannelText(ctx, token, entry.ChannelID, entry.Text)
		case schema.MessageChannelBlocks:
			return sender.SendChannelBlocks(ctx, token, entry.ChannelID, entry.Blocks, entry.FallbackText)
		default:
			return retry.BusinessInvariantf("unsupported message type %q", entry.MessageType)
		}
	}
}

// NewOutboxEngine returns the engine of the outbox queue.
func NewOutboxEngine(repo store.QueueRepository[*schema.OutboxEntry], tokens store.TeamTokenRepository, sender Sender, opts ...Option) *Engine[*schema.OutboxEntry] {
	return NewEngine(QueueOutbox, repo, OutboxWork(tokens, sender), schema.StatusSent, opts...)
}
