package userdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps user data in the collections created by database.Connect
type MongoStore struct{}

func NewMongoStore() *MongoStore {
	return &MongoStore{}
}

func (s *MongoStore) ListBookmarks(ctx context.Context, userID string) ([]*ctdf.BookmarkedRoute, error) {
	collection := database.GetCollection(database.BookmarkedRoutesCollection)

	opts := options.Find().SetSort(bson.D{{Key: "creationdatetime", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{"userid": userID}, opts)
	if err != nil {
		return nil, err
	}

	bookmarks := []*ctdf.BookmarkedRoute{}
	if err := cursor.All(ctx, &bookmarks); err != nil {
		return nil, err
	}

	return bookmarks, nil
}

func (s *MongoStore) AddBookmark(ctx context.Context, bookmark *ctdf.BookmarkedRoute) error {
	collection := database.GetCollection(database.BookmarkedRoutesCollection)

	if bookmark.CreationDateTime.IsZero() {
		bookmark.CreationDateTime = time.Now()
	}

	filter := bson.M{
		"userid":    bookmark.UserID,
		"routeid":   bookmark.RouteID,
		"stationid": bookmark.StationID,
	}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, bookmark, opts)

	return err
}

func (s *MongoStore) RemoveBookmark(ctx context.Context, userID string, routeID string, stationID string) error {
	collection := database.GetCollection(database.BookmarkedRoutesCollection)

	result, err := collection.DeleteOne(ctx, bson.M{
		"userid":    userID,
		"routeid":   routeID,
		"stationid": stationID,
	})
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MongoStore) ListBookmarkUsers(ctx context.Context) ([]string, error) {
	collection := database.GetCollection(database.BookmarkedRoutesCollection)

	values, err := collection.Distinct(ctx, "userid", bson.M{})
	if err != nil {
		return nil, err
	}

	users := []string{}
	for _, value := range values {
		if userID, ok := value.(string); ok {
			users = append(users, userID)
		}
	}

	return users, nil
}

func (s *MongoStore) ListStationBookmarks(ctx context.Context, userID string) ([]*ctdf.BookmarkedStation, error) {
	collection := database.GetCollection(database.BookmarkedStationsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "creationdatetime", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{"userid": userID}, opts)
	if err != nil {
		return nil, err
	}

	bookmarks := []*ctdf.BookmarkedStation{}
	if err := cursor.All(ctx, &bookmarks); err != nil {
		return nil, err
	}

	return bookmarks, nil
}

func (s *MongoStore) AddStationBookmark(ctx context.Context, bookmark *ctdf.BookmarkedStation) error {
	collection := database.GetCollection(database.BookmarkedStationsCollection)

	if bookmark.CreationDateTime.IsZero() {
		bookmark.CreationDateTime = time.Now()
	}

	filter := bson.M{
		"userid":    bookmark.UserID,
		"stationid": bookmark.StationID,
	}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, bookmark, opts)

	return err
}

func (s *MongoStore) RemoveStationBookmark(ctx context.Context, userID string, stationID string) error {
	collection := database.GetCollection(database.BookmarkedStationsCollection)

	result, err := collection.DeleteOne(ctx, bson.M{
		"userid":    userID,
		"stationid": stationID,
	})
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MongoStore) GetAlertThreshold(ctx context.Context, userID string) (ctdf.AlertThreshold, error) {
	collection := database.GetCollection(database.NotificationSettingsCollection)

	var threshold ctdf.AlertThreshold
	err := collection.FindOne(ctx, bson.M{"userid": userID}).Decode(&threshold)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ctdf.DefaultAlertThreshold(userID), nil
	} else if err != nil {
		return ctdf.AlertThreshold{}, err
	}

	return threshold, nil
}

func (s *MongoStore) SaveAlertThreshold(ctx context.Context, threshold ctdf.AlertThreshold) error {
	collection := database.GetCollection(database.NotificationSettingsCollection)

	threshold.ModificationDateTime = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"userid": threshold.UserID}, threshold, opts)

	return err
}

func (s *MongoStore) AddNotification(ctx context.Context, notification *ctdf.Notification) error {
	collection := database.GetCollection(database.NotificationsCollection)

	if notification.PrimaryIdentifier == "" {
		notification.PrimaryIdentifier = fmt.Sprintf("BUSALERT:NOTIFICATION:%s", uuid.NewString())
	}
	if notification.CreationDateTime.IsZero() {
		notification.CreationDateTime = time.Now()
	}

	_, err := collection.InsertOne(ctx, notification)

	return err
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID string, page int, size int) ([]*ctdf.Notification, int64, error) {
	collection := database.GetCollection(database.NotificationsCollection)

	page, size = normalisePage(page, size)
	filter := bson.M{"targetuser": userID}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "creationdatetime", Value: -1}}).
		SetSkip(int64(page * size)).
		SetLimit(int64(size))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	notifications := []*ctdf.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (s *MongoStore) ListUnread(ctx context.Context, userID string) ([]*ctdf.Notification, error) {
	collection := database.GetCollection(database.NotificationsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "creationdatetime", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{"targetuser": userID, "read": false}, opts)
	if err != nil {
		return nil, err
	}

	notifications := []*ctdf.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}

	return notifications, nil
}

func (s *MongoStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	collection := database.GetCollection(database.NotificationsCollection)

	return collection.CountDocuments(ctx, bson.M{"targetuser": userID, "read": false})
}

func (s *MongoStore) MarkRead(ctx context.Context, userID string, notificationID string) error {
	collection := database.GetCollection(database.NotificationsCollection)

	result, err := collection.UpdateOne(ctx,
		bson.M{"targetuser": userID, "primaryidentifier": notificationID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MongoStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	collection := database.GetCollection(database.NotificationsCollection)

	result, err := collection.UpdateMany(ctx,
		bson.M{"targetuser": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (s *MongoStore) GetPushTarget(ctx context.Context, userID string) (*ctdf.UserPushNotificationTarget, error) {
	collection := database.GetCollection(database.UserPushNotificationTargetCollection)

	var target *ctdf.UserPushNotificationTarget
	err := collection.FindOne(ctx, bson.M{"userid": userID}).Decode(&target)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return target, nil
}

func (s *MongoStore) SavePushTarget(ctx context.Context, target *ctdf.UserPushNotificationTarget) error {
	collection := database.GetCollection(database.UserPushNotificationTargetCollection)

	target.ModificationDateTime = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"userid": target.UserID}, target, opts)

	return err
}
