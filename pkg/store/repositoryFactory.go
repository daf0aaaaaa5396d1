package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zoff-tech/reviewbot/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var sqlOpen = sql.Open

var mongoConnect = func(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongo.Connect(ctx, options.Client().ApplyURI(uri))
}

// NewDatabase opens the relational store holding the inbox and outbox.
func NewDatabase(cfg config.DbSettings) (*sql.DB, error) {
	switch cfg.Type {
	case "postgres":
		db, err := sqlOpen("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB type: %s", cfg.Type)
	}
}

// NewTeamTokenRepository builds the token backend named by cfg. The returned
// close func releases any connection the backend opened.
func NewTeamTokenRepository(ctx context.Context, cfg config.TokenSettings, tx *TxManager) (TeamTokenRepository, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Backend {
	case "postgres":
		return NewPostgresTeamTokenRepository(tx), noop, nil
	case "mongo":
		client, err := mongoConnect(ctx, cfg.URI)
		if err != nil {
			return nil, noop, err
		}
		return NewMongoTeamTokenRepository(client, cfg.DBName, cfg.Collection), client.Disconnect, nil
	case "static":
		return StaticTeamTokens(cfg.Static), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported token backend: %s", cfg.Backend)
	}
}
