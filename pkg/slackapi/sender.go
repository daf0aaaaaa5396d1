// Package slackapi performs the Slack Web API calls behind outbound messages.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/retry"
)

// permanentErrors are Slack error codes that no retry can fix.
var permanentErrors = map[string]struct{}{
	"channel_not_found":     {},
	"not_in_channel":        {},
	"user_not_in_channel":   {},
	"is_archived":           {},
	"invalid_blocks":        {},
	"invalid_blocks_format": {},
	"no_text":               {},
	"msg_too_long":          {},
	"invalid_auth":          {},
	"not_authed":            {},
	"account_inactive":      {},
	"token_revoked":         {},
	"missing_scope":         {},
}

// Sender posts messages with a per-call bot token.
type Sender struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Sender)

// WithAPIURL points the client at another Slack API base URL.
func WithAPIURL(url string) Option {
	return func(s *Sender) {
		if url != "" && !strings.HasSuffix(url, "/") {
			url += "/"
		}
		s.apiURL = url
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.httpClient = c }
}

func NewSender(logger *zap.Logger, opts ...Option) *Sender {
	s := &Sender{
		httpClient: http.DefaultClient,
		logger:     logger.Named("slackapi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) client(token string) *slack.Client {
	opts := []slack.Option{slack.OptionHTTPClient(s.httpClient)}
	if s.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(s.apiURL))
	}
	return slack.New(token, opts...)
}

func (s *Sender) SendEphemeralText(ctx context.Context, token, channelID, userID, text string) error {
	_, err := s.client(token).PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	return s.classify("chat.postEphemeral", channelID, err)
}

func (s *Sender) SendEphemeralBlocks(ctx context.Context, token, channelID, userID, blocks, fallbackText string) error {
	set, err := parseBlocks(blocks)
	if err != nil {
		return err
	}
	_, err = s.client(token).PostEphemeralContext(ctx, channelID, userID,
		slack.MsgOptionBlocks(set...),
		slack.MsgOptionText(fallbackText, false),
	)
	return s.classify("chat.postEphemeral", channelID, err)
}

func (s *Sender) SendChannelText(ctx context.Context, token, channelID, text string) error {
	_, _, err := s.client(token).PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	return s.classify("chat.postMessage", channelID, err)
}

func (s *Sender) SendChannelBlocks(ctx context.Context, token, channelID, blocks, fallbackText string) error {
	set, err := parseBlocks(blocks)
	if err != nil {
		return err
	}
	_, _, err = s.client(token).PostMessageContext(ctx, channelID,
		slack.MsgOptionBlocks(set...),
		slack.MsgOptionText(fallbackText, false),
	)
	return s.classify("chat.postMessage", channelID, err)
}

func parseBlocks(raw string) ([]slack.Block, error) {
	var blocks slack.Blocks
	if err := blocks.UnmarshalJSON([]byte(raw)); err != nil {
		return nil, retry.BusinessInvariantf("malformed blocks: %v", err)
	}
	return blocks.BlockSet, nil
}

// classify marks Slack rejections that retrying cannot fix as business invariant.
func (s *Sender) classify(method, channelID string, err error) error {
	if err == nil {
		return nil
	}

	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		if _, ok := permanentErrors[slackErr.Err]; ok {
			return retry.BusinessInvariant(fmt.Errorf("%s rejected for channel %s: %w", method, channelID, err))
		}
	}

	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		s.logger.Warn("slack rate limited",
			zap.String("method", method),
			zap.Duration("retry_after", rateLimited.RetryAfter))
	}

	return fmt.Errorf("%s for channel %s: %w", method, channelID, err)
}
