package ctdf

import (
	"fmt"
	"time"
)

const ArrivalAlertTitle = "버스 도착 알림"

// ArrivalAlert is raised when the first bus of a bookmarked route is within the users threshold
type ArrivalAlert struct {
	UserID string

	RouteID     string
	RouteNumber string
	StationID   string
	StationName string
	StaOrder    string

	PlateNumber    string
	MinutesBefore  int
	PredictMinutes int

	Title   string
	Message string

	CreationDateTime time.Time
}

func NewArrivalAlert(bookmark *BookmarkedRoute, arrival *RouteArrival, predictMinutes int, threshold AlertThreshold, now time.Time) *ArrivalAlert {
	routeNumber := bookmark.DisplayRouteNumber(arrival)
	stationName := bookmark.DisplayStationName()

	return &ArrivalAlert{
		UserID: bookmark.UserID,

		RouteID:     bookmark.RouteID,
		RouteNumber: routeNumber,
		StationID:   bookmark.StationID,
		StationName: stationName,
		StaOrder:    bookmark.StaOrder,

		PlateNumber:    arrival.FirstBus().Plate(),
		MinutesBefore:  threshold.MinutesBefore,
		PredictMinutes: predictMinutes,

		Title:   ArrivalAlertTitle,
		Message: ArrivalAlertMessage(predictMinutes, routeNumber, stationName),

		CreationDateTime: now,
	}
}

func ArrivalAlertMessage(predictMinutes int, routeNumber string, stationName string) string {
	return fmt.Sprintf("%d분 후 %s번 버스가 %s에 도착합니다!", predictMinutes, routeNumber, stationName)
}

// SuppressionKey identifies the physical bus an alert is about
func (a *ArrivalAlert) SuppressionKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", a.UserID, a.RouteID, a.StationID, a.StaOrder, a.PlateNumber)
}

func (a *ArrivalAlert) Notification() *Notification {
	return &Notification{
		TargetUser: a.UserID,
		Type:       NotificationTypeArrival,

		Title:   a.Title,
		Message: a.Message,

		RouteID:   a.RouteID,
		StationID: a.StationID,

		CreationDateTime: a.CreationDateTime,
	}
}

type Notification struct {
	PrimaryIdentifier string
	TargetUser        string
	Type              NotificationType

	Title   string
	Message string

	RouteID   string
	StationID string

	Read             bool
	CreationDateTime time.Time
}

type NotificationType string

const (
	NotificationTypeArrival NotificationType = "Arrival"
	NotificationTypePush    NotificationType = "Push"
	NotificationTypeEmail   NotificationType = "Email"
)

type UserPushNotificationTarget struct {
	UserID                string
	PushNotificationToken string

	ModificationDateTime time.Time
}
