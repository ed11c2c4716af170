package ctdf

import (
	"time"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	UserID    string
}

type EventType string

const (
	EventTypeBookmarksChanged EventType = "BookmarksChanged"
	EventTypeSettingsChanged  EventType = "SettingsChanged"
)

func NewUserEvent(eventType EventType, userID string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		UserID:    userID,
	}
}
