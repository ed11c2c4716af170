package ctdf

import (
	"fmt"
	"time"
)

// RouteArrival is the arrival prediction of one route serving one stop.
// Records are rebuilt on every poll and never mutated once created.
type RouteArrival struct {
	RouteID              string `groups:"basic"`
	RouteName            string `groups:"basic"`
	RouteDestinationName string `groups:"basic"`
	RouteTypeCode        int    `groups:"basic"`

	// Informational only, IsActive does not look at it
	OperatingFlag OperatingFlag `groups:"detailed"`

	Bus1 BusSlot `groups:"basic"`
	Bus2 BusSlot `groups:"basic"`

	StationID string `groups:"basic"`
	StaOrder  string `groups:"basic"`

	QueryTime string    `groups:"detailed"`
	FetchTime time.Time `groups:"detailed"`

	// Filled in by WithDisplay for API responses
	Display *RouteArrivalDisplay `groups:"basic" json:",omitempty"`
}

func (r *RouteArrival) RouteCategory() RouteCategory {
	return RouteCategoryFromCode(r.RouteTypeCode)
}

// IsActive reports whether either bus slot has a usable prediction or a plate number.
// The upstream operating flag is deliberately ignored as it is frequently out of step with the slots.
func (r *RouteArrival) IsActive() bool {
	return r.Bus1.IsPresent() || r.Bus2.IsPresent()
}

// FirstBusMinutes returns the smallest usable predicted minutes across both slots.
func (r *RouteArrival) FirstBusMinutes() (int, bool) {
	first, firstOK := r.Bus1.UsablePredictMinutes()
	second, secondOK := r.Bus2.UsablePredictMinutes()

	switch {
	case firstOK && secondOK:
		return min(first, second), true
	case firstOK:
		return first, true
	case secondOK:
		return second, true
	default:
		return 0, false
	}
}

// FirstBus returns the slot that FirstBusMinutes was taken from
func (r *RouteArrival) FirstBus() *BusSlot {
	first, firstOK := r.Bus1.UsablePredictMinutes()
	second, secondOK := r.Bus2.UsablePredictMinutes()

	if secondOK && (!firstOK || second < first) {
		return &r.Bus2
	}

	return &r.Bus1
}

type BusSlot struct {
	PlateNumber    *string `groups:"basic"`
	PredictMinutes *int    `groups:"basic"`
	PredictSeconds *int    `groups:"detailed"`
	LocationOffset *int    `groups:"basic"`
	StationName    *string `groups:"detailed"`
	RemainingSeats *int    `groups:"basic"`

	CrowdingLevel *CrowdingLevel    `groups:"basic"`
	LowFloor      *LowFloorType     `groups:"basic"`
	VehicleState  *VehicleStateCode `groups:"detailed"`

	VehicleID *string `groups:"detailed"`
}

// UsablePredictMinutes returns the predicted minutes if they are present and positive.
// Zero means the provider has no prediction, not that the bus is arriving now.
func (b *BusSlot) UsablePredictMinutes() (int, bool) {
	if b.PredictMinutes == nil || *b.PredictMinutes <= 0 {
		return 0, false
	}

	return *b.PredictMinutes, true
}

func (b *BusSlot) HasPlate() bool {
	return b.PlateNumber != nil && *b.PlateNumber != ""
}

func (b *BusSlot) IsPresent() bool {
	_, usable := b.UsablePredictMinutes()

	return usable || b.HasPlate()
}

func (b *BusSlot) Plate() string {
	if b.PlateNumber == nil {
		return ""
	}

	return *b.PlateNumber
}

// LocationLabel describes where the bus currently is, eg. "3번째 전"
func (b *BusSlot) LocationLabel() string {
	if b.StationName != nil && *b.StationName != "" {
		return *b.StationName
	}

	if b.LocationOffset != nil && *b.LocationOffset > 0 {
		return fmt.Sprintf("%d번째 전", *b.LocationOffset)
	}

	return ""
}

// HasSeatInformation is false for the -1 sentinel the provider uses on non seated routes
func (b *BusSlot) HasSeatInformation() bool {
	return b.RemainingSeats != nil && *b.RemainingSeats >= 0
}
