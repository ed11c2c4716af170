package userdata

import (
	"bytes"
	"context"
	"encoding/json"
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
)

// BackendClient talks to the account backend over its REST API.
// It only covers bookmarks and notification settings, everything else stays in MongoDB.
type BackendClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewBackendClient(baseURL string) *BackendClient {
	return &BackendClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type backendEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type backendBookmarkedRoute struct {
	UserID      any `json:"userId"`
	RouteID     any `json:"routeId"`
	RouteName   any `json:"routeName"`
	RouteNumber any `json:"routeNumber"`
	StationID   any `json:"stationId"`
	StationName any `json:"stationName"`
	StaOrder    any `json:"staOrder"`
}

type backendBookmarkedStation struct {
	UserID      any `json:"userId"`
	StationID   any `json:"stationId"`
	StationName any `json:"stationName"`
}

type backendNotificationSettings struct {
	UserID        any   `json:"userId,omitempty"`
	MinutesBefore *int  `json:"minutesBefore"`
	Enabled       *bool `json:"enabled"`
}

func (c *BackendClient) ListBookmarks(ctx context.Context, userID string) ([]*ctdf.BookmarkedRoute, error) {
	query := url.Values{}
	query.Set("userId", userID)

	var routes []backendBookmarkedRoute
	if err := c.do(ctx, http.MethodGet, "/bookmarks/routes", query, nil, &routes); err != nil {
		return nil, err
	}

	bookmarks := []*ctdf.BookmarkedRoute{}
	for _, route := range routes {
		bookmarks = append(bookmarks, &ctdf.BookmarkedRoute{
			UserID:      userID,
			RouteID:     stringValue(route.RouteID),
			RouteName:   stringValue(route.RouteName),
			RouteNumber: stringValue(route.RouteNumber),
			StationID:   stringValue(route.StationID),
			StationName: stringValue(route.StationName),
			StaOrder:    stringValue(route.StaOrder),
		})
	}

	return bookmarks, nil
}

func (c *BackendClient) AddBookmark(ctx context.Context, bookmark *ctdf.BookmarkedRoute) error {
	body := backendBookmarkedRoute{
		UserID:      numberOrString(bookmark.UserID),
		RouteID:     bookmark.RouteID,
		RouteName:   bookmark.RouteName,
		RouteNumber: bookmark.RouteNumber,
		StationID:   bookmark.StationID,
		StationName: bookmark.StationName,
		StaOrder:    numberOrString(bookmark.StaOrder),
	}

	return c.do(ctx, http.MethodPost, "/bookmarks/routes", nil, body, nil)
}

func (c *BackendClient) RemoveBookmark(ctx context.Context, userID string, routeID string, stationID string) error {
	query := url.Values{}
	query.Set("userId", userID)

	path := fmt.Sprintf("/bookmarks/routes/%s/stations/%s", url.PathEscape(routeID), url.PathEscape(stationID))

	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

func (c *BackendClient) ListStationBookmarks(ctx context.Context, userID string) ([]*ctdf.BookmarkedStation, error) {
	query := url.Values{}
	query.Set("userId", userID)

	var stations []backendBookmarkedStation
	if err := c.do(ctx, http.MethodGet, "/bookmarks/stations", query, nil, &stations); err != nil {
		return nil, err
	}

	bookmarks := []*ctdf.BookmarkedStation{}
	for _, station := range stations {
		bookmarks = append(bookmarks, &ctdf.BookmarkedStation{
			UserID:      userID,
			StationID:   stringValue(station.StationID),
			StationName: stringValue(station.StationName),
		})
	}

	return bookmarks, nil
}

func (c *BackendClient) AddStationBookmark(ctx context.Context, bookmark *ctdf.BookmarkedStation) error {
	body := backendBookmarkedStation{
		UserID:      numberOrString(bookmark.UserID),
		StationID:   bookmark.StationID,
		StationName: bookmark.StationName,
	}

	return c.do(ctx, http.MethodPost, "/bookmarks/stations", nil, body, nil)
}

func (c *BackendClient) RemoveStationBookmark(ctx context.Context, userID string, stationID string) error {
	query := url.Values{}
	query.Set("userId", userID)

	return c.do(ctx, http.MethodDelete, "/bookmarks/stations/"+url.PathEscape(stationID), query, nil, nil)
}

// ListBookmarkUsers is not offered by the backend, runs against it need an explicit user list
func (c *BackendClient) ListBookmarkUsers(_ context.Context) ([]string, error) {
	return nil, errors.ErrUnsupported
}

func (c *BackendClient) GetAlertThreshold(ctx context.Context, userID string) (ctdf.AlertThreshold, error) {
	query := url.Values{}
	query.Set("userId", userID)

	var settings *backendNotificationSettings
	if err := c.do(ctx, http.MethodGet, "/notifications/settings", query, nil, &settings); err != nil {
		return ctdf.AlertThreshold{}, err
	}

	threshold := ctdf.DefaultAlertThreshold(userID)
	if settings == nil {
		return threshold, nil
	}

	if settings.MinutesBefore != nil && *settings.MinutesBefore != 0 {
		threshold.MinutesBefore = *settings.MinutesBefore
	}
	if settings.Enabled != nil {
		threshold.Enabled = *settings.Enabled
	}

	return threshold, nil
}

func (c *BackendClient) SaveAlertThreshold(ctx context.Context, threshold ctdf.AlertThreshold) error {
	body := backendNotificationSettings{
		UserID:        numberOrString(threshold.UserID),
		MinutesBefore: &threshold.MinutesBefore,
		Enabled:       &threshold.Enabled,
	}

	return c.do(ctx, http.MethodPut, "/notifications/settings", nil, body, nil)
}

func (c *BackendClient) do(ctx context.Context, method string, path string, query url.Values, body any, result any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	var requestBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		requestBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, requestBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID := query.Get("userId"); userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	var envelope backendEnvelope
	if len(bytes.TrimSpace(responseBytes)) > 0 {
		if err := json.Unmarshal(responseBytes, &envelope); err != nil {
			return fmt.Errorf("backend %s %s: decoding response: %w", method, path, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend %s %s: status %d: %s", method, path, resp.StatusCode, envelope.Message)
	}

	if !envelope.Success && len(responseBytes) > 0 {
		return fmt.Errorf("backend %s %s: %s", method, path, envelope.Message)
	}

	log.Debug().Str("method", method).Str("path", path).Msg("Backend request")

	if result == nil || len(envelope.Data) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(envelope.Data))
	decoder.UseNumber()

	return decoder.Decode(result)
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// numberOrString sends numeric identifiers as JSON numbers, the backend stores them as longs
func numberOrString(value string) any {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return json.Number(value)
	}

	return value
}
