package ctdf

import (
	"fmt"
	"time"
)

type BookmarkedRoute struct {
	UserID string

	RouteID     string
	RouteName   string
	RouteNumber string

	StationID   string
	StationName string
	StaOrder    string

	CreationDateTime time.Time
}

func (b *BookmarkedRoute) Identifier() string {
	return fmt.Sprintf("%s:%s:%s", b.UserID, b.RouteID, b.StationID)
}

// DisplayRouteNumber picks the most human friendly route label available
func (b *BookmarkedRoute) DisplayRouteNumber(arrival *RouteArrival) string {
	switch {
	case b.RouteNumber != "":
		return b.RouteNumber
	case b.RouteName != "":
		return b.RouteName
	case arrival != nil && arrival.RouteName != "":
		return arrival.RouteName
	default:
		return b.RouteID
	}
}

func (b *BookmarkedRoute) DisplayStationName() string {
	if b.StationName != "" {
		return b.StationName
	}

	return b.StationID
}

type BookmarkedStation struct {
	UserID string

	StationID   string
	StationName string

	CreationDateTime time.Time
}

func (b *BookmarkedStation) Identifier() string {
	return fmt.Sprintf("%s:%s", b.UserID, b.StationID)
}

// DefaultStationName labels a station bookmarked without a name
func DefaultStationName(stationID string) string {
	return fmt.Sprintf("정류장 %s", stationID)
}

var AlertThresholdMinuteOptions = []int{3, 5, 10, 15}

const DefaultAlertThresholdMinutes = 5

type AlertThreshold struct {
	UserID string

	MinutesBefore int `validate:"oneof=3 5 10 15"`
	Enabled       bool

	ModificationDateTime time.Time
}

// DefaultAlertThreshold is what a user gets before they have saved any settings
func DefaultAlertThreshold(userID string) AlertThreshold {
	return AlertThreshold{
		UserID:        userID,
		MinutesBefore: DefaultAlertThresholdMinutes,
		Enabled:       true,
	}
}

// Triggers reports whether a bus this many minutes away should alert
func (a AlertThreshold) Triggers(minutes int) bool {
	return a.Enabled && minutes > 0 && minutes <= a.MinutesBefore
}
