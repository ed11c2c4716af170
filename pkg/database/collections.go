package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createBookmarkIndexes()
	createNotificationIndexes()
}

func createBookmarkIndexes() {
	// Bookmarked Routes
	bookmarksCollection := GetCollection(BookmarkedRoutesCollection)
	_, err := bookmarksCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userid", Value: 1},
				{Key: "routeid", Value: 1},
				{Key: "stationid", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "creationdatetime", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	// Bookmarked Stations
	stationBookmarksCollection := GetCollection(BookmarkedStationsCollection)
	_, err = stationBookmarksCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userid", Value: 1},
				{Key: "stationid", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	// Notification Settings
	settingsCollection := GetCollection(NotificationSettingsCollection)
	_, err = settingsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createNotificationIndexes() {
	// Notifications
	notificationsCollection := GetCollection(NotificationsCollection)
	_, err := notificationsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "targetuser", Value: 1},
				{Key: "read", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "creationdatetime", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 3600), // Expire after 30 days
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	// UserPushNotificationTarget
	userPushNotificationTargetCollection := GetCollection(UserPushNotificationTargetCollection)
	_, err = userPushNotificationTargetCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userid", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
