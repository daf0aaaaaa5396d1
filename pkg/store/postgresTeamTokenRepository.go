package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresTeamTokenRepository struct {
	tx *TxManager
}

func NewPostgresTeamTokenRepository(tx *TxManager) *PostgresTeamTokenRepository {
	return &PostgresTeamTokenRepository{tx: tx}
}

func (r *PostgresTeamTokenRepository) AccessToken(ctx context.Context, teamID string) (string, error) {
	ctx, span := startSpan(ctx, "AccessToken")
	defer span.End()

	start := time.Now()
	var token string
	err := r.tx.Executor(ctx).QueryRowContext(ctx,
		`SELECT access_token FROM slack_team_tokens WHERE team_id=$1`, teamID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	addDBStatsToSpan(span, "AccessToken", 1, time.Since(start))
	return token, nil
}

// SaveAccessToken stores or rotates the token of a team.
func (r *PostgresTeamTokenRepository) SaveAccessToken(ctx context.Context, teamID, token string) error {
	ctx, span := startSpan(ctx, "SaveAccessToken")
	defer span.End()

	_, err := r.tx.Executor(ctx).ExecContext(ctx,
		`INSERT INTO slack_team_tokens (team_id, access_token, updated_at) VALUES ($1, $2, $3)
         ON CONFLICT (team_id) DO UPDATE SET access_token=EXCLUDED.access_token, updated_at=EXCLUDED.updated_at`,
		teamID, token, time.Now())
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
