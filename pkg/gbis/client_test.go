package gbis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arrivalItemBody = `{
  "response": {
    "comMsgHeader": "",
    "msgHeader": {"queryTime": "2025-03-01 08:00:00.000", "resultCode": 0, "resultMessage": "정상적으로 처리되었습니다."},
    "msgBody": {
      "busArrivalItem": {
        "flag": "PASS",
        "routeId": 200000085,
        "routeName": 146,
        "routeDestName": "강남역",
        "routeTypeCd": "13",
        "stationId": 200000177,
        "staOrder": 3,
        "plateNo1": "경기70아1234",
        "predictTime1": "4",
        "predictTimeSec1": 245,
        "locationNo1": 2,
        "stationNm1": "",
        "remainSeatCnt1": -1,
        "crowded1": 1,
        "lowPlate1": "1",
        "stateCd1": 0,
        "vehId1": 234001234,
        "plateNo2": "",
        "predictTime2": "",
        "predictTimeSec2": null,
        "locationNo2": "",
        "remainSeatCnt2": "",
        "crowded2": "",
        "lowPlate2": "",
        "stateCd2": "",
        "vehId2": ""
      }
    }
  }
}`

func newTestClient(server *httptest.Server) *Client {
	client := NewClient(server.URL, "test-key")
	client.RouteBaseURL = server.URL
	client.Limiter = nil

	return client
}

func TestFetchArrival(t *testing.T) {
	var requestedPath string
	var requestedQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		requestedQuery = r.URL.Query()
		w.Write([]byte(arrivalItemBody))
	}))
	defer server.Close()

	arrival, err := newTestClient(server).FetchArrival(context.Background(), "200000085", "200000177", "3")
	require.NoError(t, err)

	assert.Equal(t, "/getBusArrivalItemv2", requestedPath)
	assert.Equal(t, []string{"200000085"}, requestedQuery["routeId"])
	assert.Equal(t, []string{"200000177"}, requestedQuery["stationId"])
	assert.Equal(t, []string{"3"}, requestedQuery["staOrder"])
	assert.Equal(t, []string{"test-key"}, requestedQuery["serviceKey"])
	assert.Equal(t, []string{"json"}, requestedQuery["format"])

	assert.Equal(t, "200000085", arrival.RouteID)
	assert.Equal(t, "146", arrival.RouteName)
	assert.Equal(t, 13, arrival.RouteTypeCode)
	assert.Equal(t, "200000177", arrival.StationID)
	assert.Equal(t, "3", arrival.StaOrder)
	assert.Equal(t, "2025-03-01 08:00:00.000", arrival.QueryTime)

	require.NotNil(t, arrival.Bus1.PredictMinutes)
	assert.Equal(t, 4, *arrival.Bus1.PredictMinutes)
	assert.Equal(t, 245, *arrival.Bus1.PredictSeconds)
	assert.Equal(t, "경기70아1234", arrival.Bus1.Plate())
	assert.Equal(t, -1, *arrival.Bus1.RemainingSeats)
	assert.False(t, arrival.Bus1.HasSeatInformation())
	assert.Nil(t, arrival.Bus1.StationName)
	assert.Equal(t, "2번째 전", arrival.Bus1.LocationLabel())
	assert.True(t, arrival.Bus1.LowFloor.IsLowFloor())
	assert.Equal(t, "234001234", *arrival.Bus1.VehicleID)

	assert.Nil(t, arrival.Bus2.PlateNumber)
	assert.Nil(t, arrival.Bus2.PredictMinutes)
	assert.Nil(t, arrival.Bus2.PredictSeconds)
	assert.Nil(t, arrival.Bus2.RemainingSeats)
	assert.Nil(t, arrival.Bus2.CrowdingLevel)
	assert.Nil(t, arrival.Bus2.VehicleID)

	minutes, ok := arrival.FirstBusMinutes()
	assert.True(t, ok)
	assert.Equal(t, 4, minutes)
	assert.True(t, arrival.IsActive())
}

func TestFetchArrivalMissingParameter(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(server)

	for _, params := range [][3]string{
		{"", "200000177", "3"},
		{"200000085", " ", "3"},
		{"200000085", "200000177", ""},
	} {
		arrival, err := client.FetchArrival(context.Background(), params[0], params[1], params[2])

		assert.Nil(t, arrival)
		assert.ErrorIs(t, err, ErrMissingParameter)
	}

	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchArrivalStatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchArrival(context.Background(), "1", "2", "3")

	assert.ErrorIs(t, err, ErrTransport)

	var transportError *TransportError
	require.True(t, errors.As(err, &transportError))
	assert.Equal(t, http.StatusInternalServerError, transportError.StatusCode)
}

func TestFetchArrivalTimeout(t *testing.T) {
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server)
	client.HTTPClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := client.FetchArrival(context.Background(), "1", "2", "3")

	assert.ErrorIs(t, err, ErrTransport)

	var transportError *TransportError
	require.True(t, errors.As(err, &transportError))
	assert.Equal(t, 0, transportError.StatusCode)
}

func TestFetchArrivalMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<OpenAPI_ServiceResponse>SERVICE ERROR</OpenAPI_ServiceResponse>"},
		{name: "no header", body: `{"response": {}}`},
		{name: "non numeric prediction", body: `{"response": {"msgHeader": {"resultCode": 0}, "msgBody": {"busArrivalItem": {"predictTime1": "soon"}}}}`},
		{name: "no item", body: `{"response": {"msgHeader": {"resultCode": 0}, "msgBody": {}}}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			_, err := newTestClient(server).FetchArrival(context.Background(), "1", "2", "3")

			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.NotErrorIs(t, err, ErrTransport)
		})
	}
}

func TestFetchArrivalUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"msgHeader": {"resultCode": "4", "resultMessage": "결과가 존재하지 않습니다."}}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchArrival(context.Background(), "1", "2", "3")

	assert.ErrorIs(t, err, ErrUpstreamReportedFailure)

	var upstreamError *UpstreamError
	require.True(t, errors.As(err, &upstreamError))
	assert.Equal(t, 4, upstreamError.ResultCode)
	assert.Equal(t, "결과가 존재하지 않습니다.", upstreamError.Message)
}

func TestFetchStationArrivals(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{
			name:     "list",
			body:     `{"response": {"msgHeader": {"resultCode": 0, "queryTime": "q"}, "msgBody": {"busArrivalList": [{"routeId": 1, "routeName": "7-2", "predictTime1": 3}, {"routeId": 2, "routeName": "720"}]}}}`,
			expected: 2,
		},
		{
			name:     "single object",
			body:     `{"response": {"msgHeader": {"resultCode": 0, "queryTime": "q"}, "msgBody": {"busArrivalList": {"routeId": 1, "routeName": "7-2"}}}}`,
			expected: 1,
		},
		{
			name:     "empty body",
			body:     `{"response": {"msgHeader": {"resultCode": 0, "queryTime": "q"}}}`,
			expected: 0,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/getBusArrivalListv2", r.URL.Path)
				assert.Equal(t, "200000177", r.URL.Query().Get("stationId"))
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			arrivals, queryTime, err := newTestClient(server).FetchStationArrivals(context.Background(), "200000177")
			require.NoError(t, err)

			assert.Equal(t, "q", queryTime)
			assert.Len(t, arrivals, test.expected)
			for _, arrival := range arrivals {
				assert.Equal(t, "200000177", arrival.StationID)
			}
		})
	}
}

func TestFetchStationArrivalsMissingStation(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "key")

	_, _, err := client.FetchStationArrivals(context.Background(), "")

	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestNewClientFromEnvironment(t *testing.T) {
	t.Setenv("BUSALERT_GBIS_SERVICE_KEY", "")
	_, err := NewClientFromEnvironment()
	assert.Error(t, err)

	t.Setenv("BUSALERT_GBIS_SERVICE_KEY", "abc")
	t.Setenv("BUSALERT_GBIS_BASE_URL", "")
	client, err := NewClientFromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, client.BaseURL)
	assert.Equal(t, DefaultRouteBaseURL, client.RouteBaseURL)
	assert.Equal(t, "abc", client.ServiceKey)
	assert.NotNil(t, client.Limiter)

	t.Setenv("BUSALERT_GBIS_ROUTE_BASE_URL", "http://routes.local")
	client, err = NewClientFromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "http://routes.local", client.RouteBaseURL)
}

const routeStationListBody = `{
  "response": {
    "comMsgHeader": "",
    "msgHeader": {"queryTime": "2025-03-01 08:00:00.000", "resultCode": 0, "resultMessage": "정상적으로 처리되었습니다."},
    "msgBody": {
      "busRouteStationList": [
        {"stationId": 200000177, "stationName": "강남역", "stationSeq": 1, "x": 127.0276, "y": 37.4979, "centerYn": "N", "regionName": "서울", "adminName": "서울특별시", "mobileNo": " 22009 ", "turnYn": "N", "turnSeq": 23, "districtCd": 1},
        {"stationId": "228000704", "stationName": "수원역", "stationSeq": "2", "x": "127.0001", "y": "37.2660", "centerYn": "Y", "regionName": "수원", "mobileNo": "", "turnYn": "Y", "turnSeq": 23, "districtCd": "2"}
      ]
    }
  }
}`

func TestFetchRouteStations(t *testing.T) {
	var requestedPath string
	var requestedQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		requestedQuery = r.URL.Query()
		w.Write([]byte(routeStationListBody))
	}))
	defer server.Close()

	stations, queryTime, err := newTestClient(server).FetchRouteStations(context.Background(), " 200000085 ")
	require.NoError(t, err)

	assert.Equal(t, "/getBusRouteStationListv2", requestedPath)
	assert.Equal(t, []string{"200000085"}, requestedQuery["routeId"])
	assert.Equal(t, []string{"test-key"}, requestedQuery["serviceKey"])
	assert.Equal(t, []string{"json"}, requestedQuery["format"])
	assert.Equal(t, "2025-03-01 08:00:00.000", queryTime)

	require.Len(t, stations, 2)

	assert.Equal(t, "200000177", stations[0].StationID)
	assert.Equal(t, "강남역", stations[0].StationName)
	assert.Equal(t, 1, stations[0].StationSeq)
	assert.InDelta(t, 37.4979, stations[0].Latitude, 0.00001)
	assert.InDelta(t, 127.0276, stations[0].Longitude, 0.00001)
	assert.Equal(t, "22009", stations[0].MobileNo)
	assert.Equal(t, "서울특별시", stations[0].AdminName)
	assert.Equal(t, 1, stations[0].DistrictCode)
	assert.False(t, stations[0].IsTurningPoint())

	assert.Equal(t, "228000704", stations[1].StationID)
	assert.Equal(t, 2, stations[1].StationSeq)
	assert.InDelta(t, 37.2660, stations[1].Latitude, 0.00001)
	assert.Equal(t, "", stations[1].MobileNo)
	assert.True(t, stations[1].IsTurningPoint())
}

func TestFetchRouteStationsNoData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no data code", body: `{"response": {"msgHeader": {"resultCode": 99, "resultMessage": "SERVICE ERROR"}}}`},
		{name: "no data message", body: `{"response": {"msgHeader": {"resultCode": 4, "resultMessage": "해당하는 데이터가 없습니다."}}}`},
		{name: "empty body", body: `{"response": {"msgHeader": {"resultCode": 0}, "msgBody": {"busRouteStationList": ""}}}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			stations, _, err := newTestClient(server).FetchRouteStations(context.Background(), "200000085")
			require.NoError(t, err)
			assert.NotNil(t, stations)
			assert.Empty(t, stations)
		})
	}
}

func TestFetchRouteStationsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"msgHeader": {"resultCode": 30, "resultMessage": "SERVICE_KEY_IS_NOT_REGISTERED_ERROR"}}}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	_, _, err := client.FetchRouteStations(context.Background(), "200000085")
	assert.ErrorIs(t, err, ErrUpstreamReportedFailure)

	_, _, err = client.FetchRouteStations(context.Background(), " ")
	assert.ErrorIs(t, err, ErrMissingParameter)
}
