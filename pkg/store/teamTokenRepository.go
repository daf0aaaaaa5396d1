package store

import (
	"context"
)

// TeamTokenRepository resolves the current bot access token of a Slack team.
// Tokens are read on every call so that rotation is honored immediately.
type TeamTokenRepository interface {
	// AccessToken returns ErrNotFound when the team is not installed.
	AccessToken(ctx context.Context, teamID string) (string, error)
}

// StaticTeamTokens serves tokens from configuration.
type StaticTeamTokens map[string]string

func (s StaticTeamTokens) AccessToken(_ context.Context, teamID string) (string, error) {
	token, ok := s[teamID]
	if !ok || token == "" {
		return "", ErrNotFound
	}
	return token, nil
}
