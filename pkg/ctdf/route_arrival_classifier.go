package ctdf

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

type ClassifiedRouteArrivals struct {
	Active   []*RouteArrival
	Inactive []*RouteArrival
}

// ClassifyRouteArrivals splits arrivals into routes with a bus currently on the way and routes without.
// Active routes are ordered by the soonest bus, inactive ones by route number with non numeric
// route numbers last. Both sorts are stable so equal keys keep the input order.
func ClassifyRouteArrivals(arrivals []*RouteArrival) ClassifiedRouteArrivals {
	classified := ClassifiedRouteArrivals{
		Active:   []*RouteArrival{},
		Inactive: []*RouteArrival{},
	}

	for _, arrival := range arrivals {
		if arrival == nil {
			continue
		}

		if arrival.IsActive() {
			classified.Active = append(classified.Active, arrival)
		} else {
			classified.Inactive = append(classified.Inactive, arrival)
		}
	}

	slices.SortStableFunc(classified.Active, func(a, b *RouteArrival) int {
		return compareInts(firstBusSortKey(a), firstBusSortKey(b))
	})

	slices.SortStableFunc(classified.Inactive, func(a, b *RouteArrival) int {
		aNumber, aNumeric := routeNumberSortKey(a)
		bNumber, bNumeric := routeNumberSortKey(b)

		switch {
		case aNumeric && bNumeric:
			return compareInts(aNumber, bNumber)
		case aNumeric:
			return -1
		case bNumeric:
			return 1
		default:
			return 0
		}
	})

	return classified
}

func firstBusSortKey(arrival *RouteArrival) int {
	minutes, ok := arrival.FirstBusMinutes()
	if !ok {
		return math.MaxInt
	}

	return minutes
}

func routeNumberSortKey(arrival *RouteArrival) (int, bool) {
	number, err := strconv.Atoi(strings.TrimSpace(arrival.RouteName))
	if err != nil {
		return 0, false
	}

	return number, true
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
