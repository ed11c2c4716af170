package ctdf

type OperatingFlag string

const (
	OperatingFlagPass OperatingFlag = "PASS"
	OperatingFlagWait OperatingFlag = "WAIT"
	OperatingFlagStop OperatingFlag = "STOP"
)

func (f OperatingFlag) String() string {
	switch f {
	case OperatingFlagPass:
		return "운행중"
	case OperatingFlagWait:
		return "대기중"
	case OperatingFlagStop:
		return "운행종료"
	default:
		return "정보없음"
	}
}

type CrowdingLevel int

const (
	CrowdingLevelRelaxed CrowdingLevel = 0
	CrowdingLevelNormal  CrowdingLevel = 1
	CrowdingLevelCrowded CrowdingLevel = 2
)

func (c CrowdingLevel) String() string {
	switch c {
	case CrowdingLevelRelaxed:
		return "여유"
	case CrowdingLevelNormal:
		return "보통"
	case CrowdingLevelCrowded:
		return "혼잡"
	default:
		return "정보없음"
	}
}

type LowFloorType int

const (
	LowFloorTypeStandard    LowFloorType = 0
	LowFloorTypeLowFloor    LowFloorType = 1
	LowFloorTypeArticulated LowFloorType = 2
)

func (l LowFloorType) String() string {
	switch l {
	case LowFloorTypeStandard:
		return "일반"
	case LowFloorTypeLowFloor:
		return "저상"
	case LowFloorTypeArticulated:
		return "굴절"
	default:
		return "정보없음"
	}
}

// IsLowFloor is true for both low floor and articulated vehicles
func (l LowFloorType) IsLowFloor() bool {
	return l == LowFloorTypeLowFloor || l == LowFloorTypeArticulated
}

type VehicleStateCode int

const (
	VehicleStateOperating VehicleStateCode = 0
	VehicleStateTurning   VehicleStateCode = 1
	VehicleStateGarage    VehicleStateCode = 2
)

func (v VehicleStateCode) String() string {
	switch v {
	case VehicleStateOperating:
		return "운행중"
	case VehicleStateTurning:
		return "회차지"
	case VehicleStateGarage:
		return "차고지"
	default:
		return "정보없음"
	}
}

type RouteCategory string

const (
	RouteCategoryOrdinary RouteCategory = "Ordinary"
	RouteCategorySeated   RouteCategory = "Seated"
	RouteCategoryVillage  RouteCategory = "Village"
	RouteCategoryWideArea RouteCategory = "WideArea"
	RouteCategoryExpress  RouteCategory = "Express"
	RouteCategoryDirect   RouteCategory = "Direct"
	RouteCategoryOther    RouteCategory = "Other"
)

func RouteCategoryFromCode(routeTypeCode int) RouteCategory {
	switch routeTypeCode {
	case 11:
		return RouteCategoryOrdinary
	case 12:
		return RouteCategorySeated
	case 13:
		return RouteCategoryVillage
	case 14:
		return RouteCategoryWideArea
	case 15:
		return RouteCategoryExpress
	case 16:
		return RouteCategoryDirect
	default:
		return RouteCategoryOther
	}
}

func (r RouteCategory) DisplayName() string {
	switch r {
	case RouteCategoryOrdinary:
		return "일반"
	case RouteCategorySeated:
		return "좌석"
	case RouteCategoryVillage:
		return "마을"
	case RouteCategoryWideArea:
		return "광역"
	case RouteCategoryExpress:
		return "급행"
	case RouteCategoryDirect:
		return "직행"
	default:
		return "기타"
	}
}
