package database

import (
	"context"
	"time"

	"github.com/travigo/busalert/pkg/util"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoInstance struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var MongoGlobalInstance *MongoInstance

const defaultMongoConnectionString = "mongodb://localhost:27017/"
const defaultMongoDatabase = "busalert"

const (
	BookmarkedRoutesCollection           = "bookmarked_routes"
	BookmarkedStationsCollection         = "bookmarked_stations"
	NotificationSettingsCollection       = "notification_settings"
	NotificationsCollection              = "notifications"
	UserPushNotificationTargetCollection = "user_push_notification_target"
)

func Connect() error {
	connectionString := defaultMongoConnectionString
	dbName := defaultMongoDatabase

	env := util.GetEnvironmentVariables()

	if env["BUSALERT_MONGODB_CONNECTION"] != "" {
		connectionString = env["BUSALERT_MONGODB_CONNECTION"]
	}

	if env["BUSALERT_MONGODB_DATABASE"] != "" {
		dbName = env["BUSALERT_MONGODB_DATABASE"]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return err
	}

	MongoGlobalInstance = &MongoInstance{
		Client:   client,
		Database: client.Database(dbName),
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		return err
	}

	createIndexes()

	return nil
}

func Disconnect() error {
	if MongoGlobalInstance == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return MongoGlobalInstance.Client.Disconnect(ctx)
}

func GetCollection(collectionName string) *mongo.Collection {
	return MongoGlobalInstance.Database.Collection(collectionName)
}
