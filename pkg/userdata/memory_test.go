package userdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/busalert/pkg/ctdf"
)

func TestMemoryStoreBookmarks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.AddBookmark(ctx, &ctdf.BookmarkedRoute{UserID: "1", RouteID: "A", StationID: "S1", StaOrder: "1"}))
	require.NoError(t, store.AddBookmark(ctx, &ctdf.BookmarkedRoute{UserID: "1", RouteID: "B", StationID: "S1", StaOrder: "2"}))
	require.NoError(t, store.AddBookmark(ctx, &ctdf.BookmarkedRoute{UserID: "2", RouteID: "A", StationID: "S1", StaOrder: "1"}))

	// Re-adding replaces rather than duplicating
	require.NoError(t, store.AddBookmark(ctx, &ctdf.BookmarkedRoute{UserID: "1", RouteID: "A", StationID: "S1", StaOrder: "9"}))

	bookmarks, err := store.ListBookmarks(ctx, "1")
	require.NoError(t, err)
	require.Len(t, bookmarks, 2)
	assert.Equal(t, "9", bookmarks[0].StaOrder)

	bookmarks[0].StaOrder = "changed"
	again, _ := store.ListBookmarks(ctx, "1")
	assert.Equal(t, "9", again[0].StaOrder)

	users, err := store.ListBookmarkUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, users)

	require.NoError(t, store.RemoveBookmark(ctx, "1", "A", "S1"))
	assert.ErrorIs(t, store.RemoveBookmark(ctx, "1", "A", "S1"), ErrNotFound)
}

func TestMemoryStoreStationBookmarks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.AddStationBookmark(ctx, &ctdf.BookmarkedStation{UserID: "1", StationID: "S1", StationName: "강남역"}))
	require.NoError(t, store.AddStationBookmark(ctx, &ctdf.BookmarkedStation{UserID: "1", StationID: "S1", StationName: "강남역.신분당선"}))
	require.NoError(t, store.AddStationBookmark(ctx, &ctdf.BookmarkedStation{UserID: "2", StationID: "S2"}))

	bookmarks, err := store.ListStationBookmarks(ctx, "1")
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "강남역.신분당선", bookmarks[0].StationName)
	assert.False(t, bookmarks[0].CreationDateTime.IsZero())

	bookmarked, err := IsStationBookmarked(ctx, store, "1", "S1")
	require.NoError(t, err)
	assert.True(t, bookmarked)

	bookmarked, _ = IsStationBookmarked(ctx, store, "1", "S2")
	assert.False(t, bookmarked)

	require.NoError(t, store.RemoveStationBookmark(ctx, "1", "S1"))
	assert.ErrorIs(t, store.RemoveStationBookmark(ctx, "1", "S1"), ErrNotFound)

	bookmarked, _ = IsStationBookmarked(ctx, store, "1", "S1")
	assert.False(t, bookmarked)
}

func TestMemoryStoreThresholdDefault(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	threshold, err := store.GetAlertThreshold(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 5, threshold.MinutesBefore)
	assert.True(t, threshold.Enabled)

	require.NoError(t, store.SaveAlertThreshold(ctx, ctdf.AlertThreshold{UserID: "1", MinutesBefore: 10}))
	threshold, _ = store.GetAlertThreshold(ctx, "1")
	assert.Equal(t, 10, threshold.MinutesBefore)
	assert.False(t, threshold.Enabled)
}

func TestMemoryStoreNotifications(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddNotification(ctx, &ctdf.Notification{
			TargetUser:       "1",
			Message:          "message",
			CreationDateTime: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.AddNotification(ctx, &ctdf.Notification{TargetUser: "2"}))

	page, total, err := store.ListNotifications(ctx, "1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(4*time.Minute), page[0].CreationDateTime)

	lastPage, _, _ := store.ListNotifications(ctx, "1", 2, 2)
	assert.Len(t, lastPage, 1)

	empty, _, _ := store.ListNotifications(ctx, "1", 9, 2)
	assert.Empty(t, empty)

	unread, _ := store.CountUnread(ctx, "1")
	assert.Equal(t, int64(5), unread)

	require.NoError(t, store.MarkRead(ctx, "1", page[0].PrimaryIdentifier))
	assert.ErrorIs(t, store.MarkRead(ctx, "2", page[0].PrimaryIdentifier), ErrNotFound)

	unread, _ = store.CountUnread(ctx, "1")
	assert.Equal(t, int64(4), unread)

	unreadList, err := store.ListUnread(ctx, "1")
	require.NoError(t, err)
	require.Len(t, unreadList, 4)
	assert.Equal(t, base.Add(3*time.Minute), unreadList[0].CreationDateTime)
	for _, notification := range unreadList {
		assert.NotEqual(t, page[0].PrimaryIdentifier, notification.PrimaryIdentifier)
	}

	updated, err := store.MarkAllRead(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated)

	unread, _ = store.CountUnread(ctx, "2")
	assert.Equal(t, int64(1), unread)
}

func TestMemoryStorePushTarget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetPushTarget(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SavePushTarget(ctx, &ctdf.UserPushNotificationTarget{UserID: "1", PushNotificationToken: "token"}))

	target, err := store.GetPushTarget(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "token", target.PushNotificationToken)
}

func TestNewStoreFromEnvironmentMemory(t *testing.T) {
	t.Setenv("BUSALERT_USERDATA_STORE", "memory")

	store := NewStoreFromEnvironment()
	require.IsType(t, &MemoryStore{}, store)

	ctx := context.Background()
	require.NoError(t, store.AddBookmark(ctx, &ctdf.BookmarkedRoute{UserID: "1", RouteID: "A", StationID: "S1"}))

	bookmarks, err := store.ListBookmarks(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, bookmarks, 1)
}
