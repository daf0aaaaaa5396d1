package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultInstallationsCollection holds one document per installed Slack team.
const DefaultInstallationsCollection = "slack_installations"

type installation struct {
	TeamID      string    `bson:"team_id"`
	AccessToken string    `bson:"access_token"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type MongoTeamTokenRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewMongoTeamTokenRepository(client *mongo.Client, database, collection string) *MongoTeamTokenRepository {
	if collection == "" {
		collection = DefaultInstallationsCollection
	}
	return &MongoTeamTokenRepository{
		client:     client,
		database:   database,
		collection: collection,
	}
}

func (m *MongoTeamTokenRepository) AccessToken(ctx context.Context, teamID string) (string, error) {
	ctx, span := startSpan(ctx, "AccessToken")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "mongodb"))

	var doc installation
	err := m.client.Database(m.database).Collection(m.collection).
		FindOne(ctx, bson.M{"team_id": teamID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if doc.AccessToken == "" {
		return "", ErrNotFound
	}
	return doc.AccessToken, nil
}

// SaveAccessToken stores or rotates the token of a team.
func (m *MongoTeamTokenRepository) SaveAccessToken(ctx context.Context, teamID, token string) error {
	ctx, span := startSpan(ctx, "SaveAccessToken")
	defer span.End()

	_, err := m.client.Database(m.database).Collection(m.collection).UpdateOne(ctx,
		bson.M{"team_id": teamID},
		bson.M{"$set": bson.M{"access_token": token, "updated_at": time.Now()}},
		options.Update().SetUpsert(true))
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
