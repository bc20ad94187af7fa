package message_repo

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/entity"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const messagesCollection = "conference_messages"

type MongoMessageRepo struct {
	Collection *mongo.Collection
}

func NewMongoMessageRepo(db *mongo.Database) *MongoMessageRepo {
	return &MongoMessageRepo{Collection: db.Collection(messagesCollection)}
}

// EnsureIndexes creates the (conferenceId, createdAt) listing index.
func (r *MongoMessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conferenceId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}

func (r *MongoMessageRepo) InsertMessage(ctx context.Context, msg *entity.ConferenceMessage) *app_error.AppError {
	if _, err := r.Collection.InsertOne(ctx, msg); err != nil {
		log.Error().Err(err).Str("conference_id", msg.ConferenceID).Msg("failed to insert conference message")
		return app_error.NewAppError(http.StatusInternalServerError, "failed to save message", "mongo-error")
	}
	return nil
}

func (r *MongoMessageRepo) ListMessages(ctx context.Context, conferenceID string) ([]entity.ConferenceMessage, *app_error.AppError) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.Collection.Find(ctx, bson.M{"conferenceId": conferenceID}, opts)
	if err != nil {
		log.Error().Err(err).Str("conference_id", conferenceID).Msg("failed to query conference messages")
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to fetch messages", "mongo-error")
	}
	defer cursor.Close(ctx)

	messages := make([]entity.ConferenceMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		log.Error().Err(err).Msg("failed to decode conference messages")
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to decode messages", "mongo-error")
	}
	return messages, nil
}
