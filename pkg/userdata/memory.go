package userdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/travigo/busalert/pkg/ctdf"
)

// MemoryStore is a process local Store, used by the test suites and single user runs
type MemoryStore struct {
	mutex sync.Mutex

	bookmarks        []*ctdf.BookmarkedRoute
	stationBookmarks []*ctdf.BookmarkedStation
	thresholds       map[string]ctdf.AlertThreshold
	notifications    []*ctdf.Notification
	pushTargets      map[string]*ctdf.UserPushNotificationTarget

	sequence int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		thresholds:  map[string]ctdf.AlertThreshold{},
		pushTargets: map[string]*ctdf.UserPushNotificationTarget{},
	}
}

func (s *MemoryStore) ListBookmarks(_ context.Context, userID string) ([]*ctdf.BookmarkedRoute, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	bookmarks := []*ctdf.BookmarkedRoute{}
	for _, bookmark := range s.bookmarks {
		if bookmark.UserID == userID {
			var bookmarkCopy ctdf.BookmarkedRoute
			copier.Copy(&bookmarkCopy, bookmark)
			bookmarks = append(bookmarks, &bookmarkCopy)
		}
	}

	return bookmarks, nil
}

func (s *MemoryStore) AddBookmark(_ context.Context, bookmark *ctdf.BookmarkedRoute) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if bookmark.CreationDateTime.IsZero() {
		bookmark.CreationDateTime = time.Now()
	}

	var bookmarkCopy ctdf.BookmarkedRoute
	copier.Copy(&bookmarkCopy, bookmark)

	for i, existing := range s.bookmarks {
		if existing.Identifier() == bookmark.Identifier() {
			s.bookmarks[i] = &bookmarkCopy
			return nil
		}
	}

	s.bookmarks = append(s.bookmarks, &bookmarkCopy)

	return nil
}

func (s *MemoryStore) RemoveBookmark(_ context.Context, userID string, routeID string, stationID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, existing := range s.bookmarks {
		if existing.UserID == userID && existing.RouteID == routeID && existing.StationID == stationID {
			s.bookmarks = append(s.bookmarks[:i], s.bookmarks[i+1:]...)
			return nil
		}
	}

	return ErrNotFound
}

func (s *MemoryStore) ListBookmarkUsers(_ context.Context) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seen := map[string]bool{}
	users := []string{}
	for _, bookmark := range s.bookmarks {
		if !seen[bookmark.UserID] {
			seen[bookmark.UserID] = true
			users = append(users, bookmark.UserID)
		}
	}

	return users, nil
}

func (s *MemoryStore) ListStationBookmarks(_ context.Context, userID string) ([]*ctdf.BookmarkedStation, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	bookmarks := []*ctdf.BookmarkedStation{}
	for _, bookmark := range s.stationBookmarks {
		if bookmark.UserID == userID {
			bookmarkCopy := *bookmark
			bookmarks = append(bookmarks, &bookmarkCopy)
		}
	}

	return bookmarks, nil
}

func (s *MemoryStore) AddStationBookmark(_ context.Context, bookmark *ctdf.BookmarkedStation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if bookmark.CreationDateTime.IsZero() {
		bookmark.CreationDateTime = time.Now()
	}

	bookmarkCopy := *bookmark

	for i, existing := range s.stationBookmarks {
		if existing.Identifier() == bookmark.Identifier() {
			s.stationBookmarks[i] = &bookmarkCopy
			return nil
		}
	}

	s.stationBookmarks = append(s.stationBookmarks, &bookmarkCopy)

	return nil
}

func (s *MemoryStore) RemoveStationBookmark(_ context.Context, userID string, stationID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, existing := range s.stationBookmarks {
		if existing.UserID == userID && existing.StationID == stationID {
			s.stationBookmarks = append(s.stationBookmarks[:i], s.stationBookmarks[i+1:]...)
			return nil
		}
	}

	return ErrNotFound
}

func (s *MemoryStore) GetAlertThreshold(_ context.Context, userID string) (ctdf.AlertThreshold, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	threshold, exists := s.thresholds[userID]
	if !exists {
		return ctdf.DefaultAlertThreshold(userID), nil
	}

	return threshold, nil
}

func (s *MemoryStore) SaveAlertThreshold(_ context.Context, threshold ctdf.AlertThreshold) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	threshold.ModificationDateTime = time.Now()
	s.thresholds[threshold.UserID] = threshold

	return nil
}

func (s *MemoryStore) AddNotification(_ context.Context, notification *ctdf.Notification) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sequence++
	if notification.PrimaryIdentifier == "" {
		notification.PrimaryIdentifier = fmt.Sprintf("BUSALERT:NOTIFICATION:%d", s.sequence)
	}
	if notification.CreationDateTime.IsZero() {
		notification.CreationDateTime = time.Now()
	}

	var notificationCopy ctdf.Notification
	copier.Copy(&notificationCopy, notification)
	s.notifications = append(s.notifications, &notificationCopy)

	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, page int, size int) ([]*ctdf.Notification, int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	page, size = normalisePage(page, size)

	userNotifications := []*ctdf.Notification{}
	for _, notification := range s.notifications {
		if notification.TargetUser == userID {
			var notificationCopy ctdf.Notification
			copier.Copy(&notificationCopy, notification)
			userNotifications = append(userNotifications, &notificationCopy)
		}
	}

	sort.SliceStable(userNotifications, func(i, j int) bool {
		return userNotifications[i].CreationDateTime.After(userNotifications[j].CreationDateTime)
	})

	total := int64(len(userNotifications))

	start := page * size
	if start >= len(userNotifications) {
		return []*ctdf.Notification{}, total, nil
	}
	end := min(start+size, len(userNotifications))

	return userNotifications[start:end], total, nil
}

func (s *MemoryStore) ListUnread(_ context.Context, userID string) ([]*ctdf.Notification, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	unread := []*ctdf.Notification{}
	for _, notification := range s.notifications {
		if notification.TargetUser == userID && !notification.Read {
			var notificationCopy ctdf.Notification
			copier.Copy(&notificationCopy, notification)
			unread = append(unread, &notificationCopy)
		}
	}

	sort.SliceStable(unread, func(i, j int) bool {
		return unread[i].CreationDateTime.After(unread[j].CreationDateTime)
	})

	return unread, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var count int64
	for _, notification := range s.notifications {
		if notification.TargetUser == userID && !notification.Read {
			count++
		}
	}

	return count, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID string, notificationID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, notification := range s.notifications {
		if notification.TargetUser == userID && notification.PrimaryIdentifier == notificationID {
			notification.Read = true
			return nil
		}
	}

	return ErrNotFound
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var count int64
	for _, notification := range s.notifications {
		if notification.TargetUser == userID && !notification.Read {
			notification.Read = true
			count++
		}
	}

	return count, nil
}

func (s *MemoryStore) GetPushTarget(_ context.Context, userID string) (*ctdf.UserPushNotificationTarget, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	target, exists := s.pushTargets[userID]
	if !exists {
		return nil, ErrNotFound
	}

	targetCopy := *target
	return &targetCopy, nil
}

func (s *MemoryStore) SavePushTarget(_ context.Context, target *ctdf.UserPushNotificationTarget) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	target.ModificationDateTime = time.Now()
	targetCopy := *target
	s.pushTargets[target.UserID] = &targetCopy

	return nil
}
