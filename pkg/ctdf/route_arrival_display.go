package ctdf

// RouteArrivalDisplay holds the text a client shows for an arrival.
// It is derived from the RouteArrival and never sent upstream.
type RouteArrivalDisplay struct {
	RouteCategory     string `groups:"basic"`
	RouteCategoryName string `groups:"basic"`
	OperatingStatus   string `groups:"detailed"`

	Bus1 BusSlotDisplay `groups:"basic"`
	Bus2 BusSlotDisplay `groups:"basic"`
}

type BusSlotDisplay struct {
	LocationLabel      string `groups:"basic"`
	CrowdingText       string `groups:"basic"`
	LowFloorText       string `groups:"basic"`
	HasSeatInformation bool   `groups:"basic"`
	VehicleStateText   string `groups:"detailed"`
}

func (r *RouteArrival) Describe() RouteArrivalDisplay {
	category := r.RouteCategory()

	return RouteArrivalDisplay{
		RouteCategory:     string(category),
		RouteCategoryName: category.DisplayName(),
		OperatingStatus:   r.OperatingFlag.String(),

		Bus1: r.Bus1.Describe(),
		Bus2: r.Bus2.Describe(),
	}
}

// Describe leaves text fields empty for values the provider did not send
func (b *BusSlot) Describe() BusSlotDisplay {
	display := BusSlotDisplay{
		LocationLabel:      b.LocationLabel(),
		HasSeatInformation: b.HasSeatInformation(),
	}

	if b.CrowdingLevel != nil {
		display.CrowdingText = b.CrowdingLevel.String()
	}
	if b.LowFloor != nil {
		display.LowFloorText = b.LowFloor.String()
	}
	if b.VehicleState != nil {
		display.VehicleStateText = b.VehicleState.String()
	}

	return display
}

// WithDisplay returns a shallow copy of the arrival with Display filled in
func (r *RouteArrival) WithDisplay() *RouteArrival {
	described := *r
	display := r.Describe()
	described.Display = &display

	return &described
}

func WithDisplay(arrivals []*RouteArrival) []*RouteArrival {
	described := make([]*RouteArrival, 0, len(arrivals))
	for _, arrival := range arrivals {
		if arrival == nil {
			continue
		}

		described = append(described, arrival.WithDisplay())
	}

	return described
}
