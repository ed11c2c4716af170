package gbis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/travigo/busalert/pkg/ctdf"
)

// optionalInt accepts a JSON number, a numeric string, an empty string or null.
// Anything that is not present ends up as a nil Value.
type optionalInt struct {
	Value *int
}

func (o *optionalInt) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}

	var text string
	switch value := raw.(type) {
	case nil:
		o.Value = nil
		return nil
	case json.Number:
		text = value.String()
	case string:
		text = strings.TrimSpace(value)
		if text == "" {
			o.Value = nil
			return nil
		}
	default:
		return fmt.Errorf("expected number, got %s", string(data))
	}

	if number, err := strconv.Atoi(text); err == nil {
		o.Value = &number
		return nil
	}

	float, err := strconv.ParseFloat(text, 64)
	if err != nil || float != float64(int(float)) {
		return fmt.Errorf("expected integer, got %q", text)
	}

	number := int(float)
	o.Value = &number

	return nil
}

// optionalString accepts a JSON string or number, empty strings and null become a nil Value
type optionalString struct {
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}

	var text string
	switch value := raw.(type) {
	case nil:
		o.Value = nil
		return nil
	case json.Number:
		text = value.String()
	case string:
		text = strings.TrimSpace(value)
	default:
		return fmt.Errorf("expected string, got %s", string(data))
	}

	if text == "" {
		o.Value = nil
		return nil
	}

	o.Value = &text

	return nil
}

func (o optionalString) String() string {
	if o.Value == nil {
		return ""
	}

	return *o.Value
}

func (o optionalInt) Int() int {
	if o.Value == nil {
		return 0
	}

	return *o.Value
}

// optionalFloat is optionalInt for coordinates
type optionalFloat struct {
	Value *float64
}

func (o *optionalFloat) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}

	var text string
	switch value := raw.(type) {
	case nil:
		o.Value = nil
		return nil
	case json.Number:
		text = value.String()
	case string:
		text = strings.TrimSpace(value)
		if text == "" {
			o.Value = nil
			return nil
		}
	default:
		return fmt.Errorf("expected number, got %s", string(data))
	}

	number, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", text)
	}
	o.Value = &number

	return nil
}

func (o optionalFloat) Float() float64 {
	if o.Value == nil {
		return 0
	}

	return *o.Value
}

// itemList is either a JSON array of items or, when the upstream only has one, a bare object
type itemList[T any] []T

func (l *itemList[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")), bytes.Equal(trimmed, []byte(`""`)):
		*l = nil
		return nil
	case trimmed[0] == '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	case trimmed[0] == '{':
		var item T
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return err
		}
		*l = itemList[T]{item}
		return nil
	default:
		return fmt.Errorf("expected object or list, got %s", string(trimmed))
	}
}

type arrivalItems = itemList[arrivalItem]

type responseHeader struct {
	QueryTime     optionalString `json:"queryTime"`
	ResultCode    optionalInt    `json:"resultCode"`
	ResultMessage optionalString `json:"resultMessage"`
}

// check validates the header and turns a non zero result code into an UpstreamError
func (h *responseHeader) check() error {
	if h == nil {
		return &MalformedResponseError{Err: fmt.Errorf("missing response header")}
	}

	if h.ResultCode.Value == nil {
		return &MalformedResponseError{Err: fmt.Errorf("missing result code")}
	}

	if *h.ResultCode.Value != 0 {
		return &UpstreamError{
			ResultCode: *h.ResultCode.Value,
			Message:    h.ResultMessage.String(),
		}
	}

	return nil
}

type arrivalResponse struct {
	Response *struct {
		MsgHeader *responseHeader `json:"msgHeader"`
		MsgBody   *struct {
			BusArrivalItem arrivalItems `json:"busArrivalItem"`
			BusArrivalList arrivalItems `json:"busArrivalList"`
		} `json:"msgBody"`
	} `json:"response"`
}

type arrivalItem struct {
	Flag          optionalString `json:"flag"`
	RouteID       optionalString `json:"routeId"`
	RouteName     optionalString `json:"routeName"`
	RouteDestName optionalString `json:"routeDestName"`
	RouteTypeCd   optionalInt    `json:"routeTypeCd"`
	StationID     optionalString `json:"stationId"`
	StaOrder      optionalString `json:"staOrder"`

	PlateNo1        optionalString `json:"plateNo1"`
	PredictTime1    optionalInt    `json:"predictTime1"`
	PredictTimeSec1 optionalInt    `json:"predictTimeSec1"`
	LocationNo1     optionalInt    `json:"locationNo1"`
	StationNm1      optionalString `json:"stationNm1"`
	RemainSeatCnt1  optionalInt    `json:"remainSeatCnt1"`
	Crowded1        optionalInt    `json:"crowded1"`
	LowPlate1       optionalInt    `json:"lowPlate1"`
	StateCd1        optionalInt    `json:"stateCd1"`
	VehID1          optionalString `json:"vehId1"`

	PlateNo2        optionalString `json:"plateNo2"`
	PredictTime2    optionalInt    `json:"predictTime2"`
	PredictTimeSec2 optionalInt    `json:"predictTimeSec2"`
	LocationNo2     optionalInt    `json:"locationNo2"`
	StationNm2      optionalString `json:"stationNm2"`
	RemainSeatCnt2  optionalInt    `json:"remainSeatCnt2"`
	Crowded2        optionalInt    `json:"crowded2"`
	LowPlate2       optionalInt    `json:"lowPlate2"`
	StateCd2        optionalInt    `json:"stateCd2"`
	VehID2          optionalString `json:"vehId2"`
}

// decodeArrivalResponse parses the envelope and returns the queried items.
// A non zero result code turns into an UpstreamError.
func decodeArrivalResponse(body []byte) (arrivalItems, string, error) {
	var response arrivalResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, "", &MalformedResponseError{Err: err}
	}

	if response.Response == nil {
		return nil, "", &MalformedResponseError{Err: fmt.Errorf("missing response")}
	}

	header := response.Response.MsgHeader
	if err := header.check(); err != nil {
		return nil, "", err
	}

	if response.Response.MsgBody == nil {
		return arrivalItems{}, header.QueryTime.String(), nil
	}

	items := append(arrivalItems{}, response.Response.MsgBody.BusArrivalItem...)
	items = append(items, response.Response.MsgBody.BusArrivalList...)

	return items, header.QueryTime.String(), nil
}

func (i *arrivalItem) routeArrival(requestRouteID string, requestStationID string, requestStaOrder string, queryTime string, fetchTime time.Time) *ctdf.RouteArrival {
	arrival := &ctdf.RouteArrival{
		RouteID:              fallback(i.RouteID.String(), requestRouteID),
		RouteName:            i.RouteName.String(),
		RouteDestinationName: i.RouteDestName.String(),
		RouteTypeCode:        i.RouteTypeCd.Int(),

		OperatingFlag: ctdf.OperatingFlag(strings.ToUpper(i.Flag.String())),

		Bus1: ctdf.BusSlot{
			PlateNumber:    i.PlateNo1.Value,
			PredictMinutes: i.PredictTime1.Value,
			PredictSeconds: i.PredictTimeSec1.Value,
			LocationOffset: i.LocationNo1.Value,
			StationName:    i.StationNm1.Value,
			RemainingSeats: i.RemainSeatCnt1.Value,
			CrowdingLevel:  convertCode[ctdf.CrowdingLevel](i.Crowded1.Value),
			LowFloor:       convertCode[ctdf.LowFloorType](i.LowPlate1.Value),
			VehicleState:   convertCode[ctdf.VehicleStateCode](i.StateCd1.Value),
			VehicleID:      i.VehID1.Value,
		},
		Bus2: ctdf.BusSlot{
			PlateNumber:    i.PlateNo2.Value,
			PredictMinutes: i.PredictTime2.Value,
			PredictSeconds: i.PredictTimeSec2.Value,
			LocationOffset: i.LocationNo2.Value,
			StationName:    i.StationNm2.Value,
			RemainingSeats: i.RemainSeatCnt2.Value,
			CrowdingLevel:  convertCode[ctdf.CrowdingLevel](i.Crowded2.Value),
			LowFloor:       convertCode[ctdf.LowFloorType](i.LowPlate2.Value),
			VehicleState:   convertCode[ctdf.VehicleStateCode](i.StateCd2.Value),
			VehicleID:      i.VehID2.Value,
		},

		StationID: fallback(i.StationID.String(), requestStationID),
		StaOrder:  fallback(i.StaOrder.String(), requestStaOrder),

		QueryTime: queryTime,
		FetchTime: fetchTime,
	}

	return arrival
}

func convertCode[T ~int](value *int) *T {
	if value == nil {
		return nil
	}

	converted := T(*value)
	return &converted
}

func fallback(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}

	return value
}

type routeStationResponse struct {
	Response *struct {
		MsgHeader *responseHeader `json:"msgHeader"`
		MsgBody   *struct {
			BusRouteStationList itemList[routeStationItem] `json:"busRouteStationList"`
		} `json:"msgBody"`
	} `json:"response"`
}

type routeStationItem struct {
	StationID   optionalString `json:"stationId"`
	StationName optionalString `json:"stationName"`
	StationSeq  optionalInt    `json:"stationSeq"`
	X           optionalFloat  `json:"x"`
	Y           optionalFloat  `json:"y"`
	CenterYn    optionalString `json:"centerYn"`
	RegionName  optionalString `json:"regionName"`
	AdminName   optionalString `json:"adminName"`
	MobileNo    optionalString `json:"mobileNo"`
	TurnYn      optionalString `json:"turnYn"`
	TurnSeq     optionalInt    `json:"turnSeq"`
	DistrictCd  optionalInt    `json:"districtCd"`
}

const routeStationsNoDataResultCode = 99

// isNoData reports whether the upstream said the route simply has no stations listed
func isNoData(upstreamError *UpstreamError) bool {
	return upstreamError.ResultCode == routeStationsNoDataResultCode ||
		strings.Contains(upstreamError.Message, "데이터가 없습니다")
}

// decodeRouteStationResponse treats a "no data" result as an empty list
func decodeRouteStationResponse(body []byte) ([]*ctdf.RouteStation, string, error) {
	var response routeStationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, "", &MalformedResponseError{Err: err}
	}

	if response.Response == nil {
		return nil, "", &MalformedResponseError{Err: fmt.Errorf("missing response")}
	}

	header := response.Response.MsgHeader
	if err := header.check(); err != nil {
		var upstreamError *UpstreamError
		if errors.As(err, &upstreamError) && isNoData(upstreamError) {
			return []*ctdf.RouteStation{}, header.QueryTime.String(), nil
		}

		return nil, "", err
	}

	stations := []*ctdf.RouteStation{}
	if response.Response.MsgBody == nil {
		return stations, header.QueryTime.String(), nil
	}

	for _, item := range response.Response.MsgBody.BusRouteStationList {
		stations = append(stations, item.routeStation())
	}

	return stations, header.QueryTime.String(), nil
}

func (i *routeStationItem) routeStation() *ctdf.RouteStation {
	return &ctdf.RouteStation{
		StationID:    i.StationID.String(),
		StationName:  i.StationName.String(),
		StationSeq:   i.StationSeq.Int(),
		Latitude:     i.Y.Float(),
		Longitude:    i.X.Float(),
		CenterYn:     i.CenterYn.String(),
		RegionName:   i.RegionName.String(),
		AdminName:    i.AdminName.String(),
		MobileNo:     i.MobileNo.String(),
		TurnYn:       i.TurnYn.String(),
		TurnSeq:      i.TurnSeq.Int(),
		DistrictCode: i.DistrictCd.Int(),
	}
}
