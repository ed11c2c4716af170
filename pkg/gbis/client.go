package gbis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/util"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://apis.data.go.kr/6410000/busarrivalservice/v2"
const DefaultRouteBaseURL = "https://apis.data.go.kr/6410000/busrouteservice/v2"
const DefaultTimeout = 15 * time.Second

const defaultRequestsPerSecond = 5
const defaultBurst = 5

const maxResponseBytes = 4 << 20

// The upstream quota is per service key so every client in the process shares one bucket
var sharedLimiter = rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst)

type Client struct {
	BaseURL      string
	RouteBaseURL string
	ServiceKey   string

	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

func NewClient(baseURL string, serviceKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		BaseURL:      baseURL,
		RouteBaseURL: DefaultRouteBaseURL,
		ServiceKey:   serviceKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Limiter: sharedLimiter,
	}
}

func NewClientFromEnvironment() (*Client, error) {
	env := util.GetEnvironmentVariables()

	serviceKey := env["BUSALERT_GBIS_SERVICE_KEY"]
	if serviceKey == "" {
		return nil, errors.New("BUSALERT_GBIS_SERVICE_KEY must be set")
	}

	client := NewClient(env["BUSALERT_GBIS_BASE_URL"], serviceKey)
	if env["BUSALERT_GBIS_ROUTE_BASE_URL"] != "" {
		client.RouteBaseURL = env["BUSALERT_GBIS_ROUTE_BASE_URL"]
	}

	if env["BUSALERT_GBIS_REQUESTS_PER_SECOND"] != "" {
		requestsPerSecond, err := strconv.ParseFloat(env["BUSALERT_GBIS_REQUESTS_PER_SECOND"], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing BUSALERT_GBIS_REQUESTS_PER_SECOND: %w", err)
		}

		sharedLimiter.SetLimit(rate.Limit(requestsPerSecond))
	}

	return client, nil
}

// FetchArrival gets the prediction for a single route at a single stop.
// One HTTP request is made per call and nothing is retried.
func (c *Client) FetchArrival(ctx context.Context, routeID string, stationID string, staOrder string) (*ctdf.RouteArrival, error) {
	if util.AnyBlank(routeID, stationID, staOrder) {
		return nil, ErrMissingParameter
	}

	routeID = strings.TrimSpace(routeID)
	stationID = strings.TrimSpace(stationID)
	staOrder = strings.TrimSpace(staOrder)

	query := url.Values{}
	query.Set("routeId", routeID)
	query.Set("stationId", stationID)
	query.Set("staOrder", staOrder)

	body, err := c.get(ctx, c.BaseURL, "getBusArrivalItemv2", query)
	if err != nil {
		return nil, err
	}

	fetchTime := time.Now()

	items, queryTime, err := decodeArrivalResponse(body)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, &MalformedResponseError{Err: errors.New("response has no arrival item")}
	}

	arrival := items[0].routeArrival(routeID, stationID, staOrder, queryTime, fetchTime)

	log.Debug().
		Str("routeid", routeID).
		Str("stationid", stationID).
		Str("staorder", staOrder).
		Bool("active", arrival.IsActive()).
		Msg("Fetched route arrival")

	return arrival, nil
}

// FetchStationArrivals gets the predictions for every route serving a stop
func (c *Client) FetchStationArrivals(ctx context.Context, stationID string) ([]*ctdf.RouteArrival, string, error) {
	if util.IsBlank(stationID) {
		return nil, "", ErrMissingParameter
	}

	stationID = strings.TrimSpace(stationID)

	query := url.Values{}
	query.Set("stationId", stationID)

	body, err := c.get(ctx, c.BaseURL, "getBusArrivalListv2", query)
	if err != nil {
		return nil, "", err
	}

	fetchTime := time.Now()

	items, queryTime, err := decodeArrivalResponse(body)
	if err != nil {
		return nil, "", err
	}

	arrivals := make([]*ctdf.RouteArrival, 0, len(items))
	for _, item := range items {
		arrivals = append(arrivals, item.routeArrival("", stationID, "", queryTime, fetchTime))
	}

	log.Debug().
		Str("stationid", stationID).
		Int("routes", len(arrivals)).
		Msg("Fetched station arrivals")

	return arrivals, queryTime, nil
}

// FetchRouteStations lists the stops a route serves in order.
// A route the upstream has no stations for gives an empty list rather than an error.
func (c *Client) FetchRouteStations(ctx context.Context, routeID string) ([]*ctdf.RouteStation, string, error) {
	if util.IsBlank(routeID) {
		return nil, "", ErrMissingParameter
	}

	routeID = strings.TrimSpace(routeID)

	query := url.Values{}
	query.Set("routeId", routeID)

	routeBaseURL := c.RouteBaseURL
	if routeBaseURL == "" {
		routeBaseURL = DefaultRouteBaseURL
	}

	body, err := c.get(ctx, routeBaseURL, "getBusRouteStationListv2", query)
	if err != nil {
		return nil, "", err
	}

	stations, queryTime, err := decodeRouteStationResponse(body)
	if err != nil {
		return nil, "", err
	}

	log.Debug().
		Str("routeid", routeID).
		Int("stations", len(stations)).
		Msg("Fetched route stations")

	return stations, queryTime, nil
}

func (c *Client) get(ctx context.Context, baseURL string, operation string, query url.Values) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	query.Set("serviceKey", c.ServiceKey)
	query.Set("format", "json")

	endpoint := fmt.Sprintf("%s/%s?%s", strings.TrimRight(baseURL, "/"), operation, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "busalert")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	return body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return &http.Client{Timeout: DefaultTimeout}
	}

	return c.HTTPClient
}
