package ctdf

// RouteStation is one stop along a route, in the order buses serve them
type RouteStation struct {
	StationID   string `groups:"basic"`
	StationName string `groups:"basic"`
	StationSeq  int    `groups:"basic"`

	Latitude  float64 `groups:"basic"`
	Longitude float64 `groups:"basic"`

	CenterYn     string `groups:"detailed"`
	RegionName   string `groups:"basic"`
	AdminName    string `groups:"detailed"`
	MobileNo     string `groups:"basic"`
	TurnYn       string `groups:"detailed"`
	TurnSeq      int    `groups:"detailed"`
	DistrictCode int    `groups:"detailed"`
}

// IsTurningPoint is true for the stop where the route turns back
func (r *RouteStation) IsTurningPoint() bool {
	return r.TurnYn == "Y"
}
