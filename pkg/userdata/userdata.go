package userdata

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/util"
)

var ErrNotFound = errors.New("userdata: not found")

type BookmarkStore interface {
	ListBookmarks(ctx context.Context, userID string) ([]*ctdf.BookmarkedRoute, error)
	AddBookmark(ctx context.Context, bookmark *ctdf.BookmarkedRoute) error
	RemoveBookmark(ctx context.Context, userID string, routeID string, stationID string) error

	// ListBookmarkUsers returns every user that has at least one bookmarked route
	ListBookmarkUsers(ctx context.Context) ([]string, error)
}

type StationBookmarkStore interface {
	ListStationBookmarks(ctx context.Context, userID string) ([]*ctdf.BookmarkedStation, error)
	AddStationBookmark(ctx context.Context, bookmark *ctdf.BookmarkedStation) error
	RemoveStationBookmark(ctx context.Context, userID string, stationID string) error
}

// IsStationBookmarked is answered from the list, the backend has no lookup for a single station
func IsStationBookmarked(ctx context.Context, store StationBookmarkStore, userID string, stationID string) (bool, error) {
	bookmarks, err := store.ListStationBookmarks(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, bookmark := range bookmarks {
		if bookmark.StationID == stationID {
			return true, nil
		}
	}

	return false, nil
}

type SettingsStore interface {
	// GetAlertThreshold returns the default threshold when the user has never saved one
	GetAlertThreshold(ctx context.Context, userID string) (ctdf.AlertThreshold, error)
	SaveAlertThreshold(ctx context.Context, threshold ctdf.AlertThreshold) error
}

type NotificationStore interface {
	AddNotification(ctx context.Context, notification *ctdf.Notification) error
	ListNotifications(ctx context.Context, userID string, page int, size int) ([]*ctdf.Notification, int64, error)
	ListUnread(ctx context.Context, userID string) ([]*ctdf.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID string, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type PushTargetStore interface {
	GetPushTarget(ctx context.Context, userID string) (*ctdf.UserPushNotificationTarget, error)
	SavePushTarget(ctx context.Context, target *ctdf.UserPushNotificationTarget) error
}

// Store bundles everything the API and alert runner need
type Store interface {
	BookmarkStore
	StationBookmarkStore
	SettingsStore
	NotificationStore
	PushTargetStore
}

const DefaultPageSize = 20
const MaxPageSize = 100

func normalisePage(page int, size int) (int, int) {
	if page < 0 {
		page = 0
	}

	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return page, size
}

type compositeStore struct {
	BookmarkStore
	StationBookmarkStore
	SettingsStore
	NotificationStore
	PushTargetStore
}

// NewStoreFromEnvironment uses MongoDB for everything unless BUSALERT_BACKEND_URL is set,
// in which case bookmarks and settings are read from the account backend instead.
// BUSALERT_USERDATA_STORE=memory keeps everything in process for local runs.
// database.Connect must have been called first unless the memory store is selected.
func NewStoreFromEnvironment() Store {
	if util.GetEnvironmentVariable("BUSALERT_USERDATA_STORE", "mongo") == "memory" {
		log.Warn().Msg("Using in memory user data store, nothing will be persisted")
		return NewMemoryStore()
	}

	mongoStore := NewMongoStore()

	backendURL := util.GetEnvironmentVariable("BUSALERT_BACKEND_URL", "")
	if backendURL == "" {
		return mongoStore
	}

	log.Info().Str("url", backendURL).Msg("Using account backend for bookmarks and settings")

	backendClient := NewBackendClient(backendURL)

	return &compositeStore{
		BookmarkStore:        backendClient,
		StationBookmarkStore: backendClient,
		SettingsStore:        backendClient,
		NotificationStore:    mongoStore,
		PushTargetStore:      mongoStore,
	}
}
