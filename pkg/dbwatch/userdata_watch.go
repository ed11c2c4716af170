package dbwatch

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserDataWatch turns writes to a per user collection into user events, so alert runners
// pick up changes that did not come through the web API
type UserDataWatch struct {
	CollectionName string
	EventType      ctdf.EventType

	Publish func(event ctdf.Event) error
}

type userDataChange struct {
	OperationType            string       `bson:"operationType"`
	FullDocument             userDocument `bson:"fullDocument"`
	FullDocumentBeforeChange userDocument `bson:"fullDocumentBeforeChange"`
}

type userDocument struct {
	UserID string `bson:"userid"`
}

func NewUserDataWatch(collectionName string, eventType ctdf.EventType, publish func(event ctdf.Event) error) *UserDataWatch {
	return &UserDataWatch{
		CollectionName: collectionName,
		EventType:      eventType,
		Publish:        publish,
	}
}

func (w *UserDataWatch) Run(ctx context.Context) {
	log.Info().Str("collection", w.CollectionName).Msg("Starting dbwatch on collection")
	collection := database.GetCollection(w.CollectionName)

	matchPipeline := bson.D{
		{
			Key: "$match", Value: bson.D{
				{
					Key:   "operationType",
					Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}},
				},
			},
		},
	}

	projectPipeline := bson.D{
		{
			Key: "$project",
			Value: bson.D{
				bson.E{Key: "operationType", Value: 1},
				bson.E{Key: "fullDocument.userid", Value: 1},
				bson.E{Key: "fullDocumentBeforeChange.userid", Value: 1},
			},
		},
	}

	opts := options.ChangeStream().SetFullDocumentBeforeChange(options.WhenAvailable).SetFullDocument(options.UpdateLookup)
	stream, err := collection.Watch(ctx, mongo.Pipeline{matchPipeline, projectPipeline}, opts)
	if err != nil {
		log.Fatal().Err(err).Str("collection", w.CollectionName).Msg("Failed to watch collection")
	}

	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var change userDataChange
		if err := stream.Decode(&change); err != nil {
			log.Error().Err(err).Str("collection", w.CollectionName).Msg("Failed to decode change")
			continue
		}

		w.handleChange(change)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("collection", w.CollectionName).Msg("Change stream closed")
	}
}

func (w *UserDataWatch) handleChange(change userDataChange) {
	event, ok := w.eventForChange(change)
	if !ok {
		log.Debug().Str("collection", w.CollectionName).Str("operation", change.OperationType).Msg("Change has no user")
		return
	}

	if err := w.Publish(event); err != nil {
		log.Error().Err(err).Str("user", event.UserID).Msg("Failed to publish event")
		return
	}

	log.Debug().Str("user", event.UserID).Str("type", string(event.Type)).Msg("Published user event")
}

// Deletes only carry the user when the collection has pre images enabled
func (w *UserDataWatch) eventForChange(change userDataChange) (ctdf.Event, bool) {
	userID := change.FullDocument.UserID
	if userID == "" {
		userID = change.FullDocumentBeforeChange.UserID
	}

	if userID == "" {
		return ctdf.Event{}, false
	}

	return ctdf.NewUserEvent(w.EventType, userID), true
}
