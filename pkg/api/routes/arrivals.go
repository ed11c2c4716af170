package routes

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/gbis"
)

const arrivalRequestTimeout = 20 * time.Second

type ArrivalFetcher interface {
	FetchArrival(ctx context.Context, routeID string, stationID string, staOrder string) (*ctdf.RouteArrival, error)
	FetchStationArrivals(ctx context.Context, stationID string) ([]*ctdf.RouteArrival, string, error)
	FetchRouteStations(ctx context.Context, routeID string) ([]*ctdf.RouteStation, string, error)
}

func StationsRouter(router fiber.Router, fetcher ArrivalFetcher, stationCache StationArrivalCache) {
	router.Get("/:stationId/arrivals", func(c *fiber.Ctx) error {
		return getStationArrivals(c, fetcher, stationCache)
	})
}

func BusRoutesRouter(router fiber.Router, fetcher ArrivalFetcher) {
	router.Get("/:routeId/arrival", func(c *fiber.Ctx) error {
		return getRouteArrival(c, fetcher)
	})
	router.Get("/:routeId/stations", func(c *fiber.Ctx) error {
		return getRouteStations(c, fetcher)
	})
}

func sheriffGroups(c *fiber.Ctx) []string {
	if c.QueryBool("detail") {
		return []string{"basic", "detailed"}
	}

	return []string{"basic"}
}

func getStationArrivals(c *fiber.Ctx, fetcher ArrivalFetcher, stationCache StationArrivalCache) error {
	stationID := c.Params("stationId")

	ctx, cancel := context.WithTimeout(c.UserContext(), arrivalRequestTimeout)
	defer cancel()

	var stationArrivals *StationArrivals
	if stationCache != nil {
		stationArrivals, _ = stationCache.Get(ctx, stationID)
	}

	if stationArrivals == nil {
		arrivals, queryTime, err := fetcher.FetchStationArrivals(ctx, stationID)
		if err != nil {
			log.Error().Err(err).Str("stationid", stationID).Msg("Failed to fetch station arrivals")

			// Clients always get a renderable body, the failure is only reported in the message
			return c.JSON(fiber.Map{
				"stationId": stationID,
				"message":   "Could not load arrival information for this station",
				"queryTime": "",
				"active":    []any{},
				"inactive":  []any{},
			})
		}

		stationArrivals = &StationArrivals{
			Arrivals:  arrivals,
			QueryTime: queryTime,
		}

		if stationCache != nil {
			stationCache.Set(ctx, stationID, stationArrivals)
		}
	}

	classified := ctdf.ClassifyRouteArrivals(stationArrivals.Arrivals)
	groups := sheriffGroups(c)

	activeReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, ctdf.WithDisplay(classified.Active))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce active arrivals",
		})
	}

	inactiveReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, ctdf.WithDisplay(classified.Inactive))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce inactive arrivals",
		})
	}

	return c.JSON(fiber.Map{
		"stationId": stationID,
		"queryTime": stationArrivals.QueryTime,
		"active":    activeReduced,
		"inactive":  inactiveReduced,
	})
}

func getRouteArrival(c *fiber.Ctx, fetcher ArrivalFetcher) error {
	routeID := c.Params("routeId")
	stationID := c.Query("stationId")
	staOrder := c.Query("staOrder")

	ctx, cancel := context.WithTimeout(c.UserContext(), arrivalRequestTimeout)
	defer cancel()

	arrival, err := fetcher.FetchArrival(ctx, routeID, stationID, staOrder)
	if err != nil {
		return upstreamErrorResponse(c, err, "routeId, stationId and staOrder are required")
	}

	arrivalReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: sheriffGroups(c),
	}, arrival.WithDisplay())
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce arrival",
		})
	}

	return c.JSON(arrivalReduced)
}

func getRouteStations(c *fiber.Ctx, fetcher ArrivalFetcher) error {
	routeID := c.Params("routeId")

	ctx, cancel := context.WithTimeout(c.UserContext(), arrivalRequestTimeout)
	defer cancel()

	stations, queryTime, err := fetcher.FetchRouteStations(ctx, routeID)
	if err != nil {
		log.Error().Err(err).Str("routeid", routeID).Msg("Failed to fetch route stations")
		return upstreamErrorResponse(c, err, "routeId is required")
	}

	stationsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: sheriffGroups(c),
	}, stations)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce route stations",
		})
	}

	return c.JSON(fiber.Map{
		"routeId":   routeID,
		"queryTime": queryTime,
		"stations":  stationsReduced,
	})
}

func upstreamErrorResponse(c *fiber.Ctx, err error, missingParameterMessage string) error {
	switch {
	case errors.Is(err, gbis.ErrMissingParameter):
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": missingParameterMessage,
		})
	case errors.Is(err, gbis.ErrUpstreamReportedFailure):
		c.SendStatus(fiber.StatusFailedDependency)
	default:
		c.SendStatus(fiber.StatusBadGateway)
	}

	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}
