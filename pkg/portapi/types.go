package portapi

// Wire shapes for the logistics backend. The agent depends on these staying
// stable, not on the backend's transport details.

type Terminal struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Type     string `json:"type,omitempty"`
	IsActive bool   `json:"isActive,omitempty"`
}

type TimeSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type Carrier struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
}

type Truck struct {
	PlateNumber string `json:"plateNumber"`
	TruckType   string `json:"truckType,omitempty"`
	DriverName  string `json:"driverName,omitempty"`
}

type Booking struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	TimeSlot TimeSlot `json:"timeSlot"`
	Terminal Terminal `json:"terminal"`
	Carrier  Carrier  `json:"carrier"`
	Truck    Truck    `json:"truck"`
}

// BookingQuery narrows GET /api/bookings. Empty fields are omitted.
type BookingQuery struct {
	Status     string
	TerminalID string
	CarrierID  string
	StartDate  string
	EndDate    string
}

type AvailabilitySlot struct {
	StartTime         string `json:"startTime"`
	EndTime           string `json:"endTime"`
	IsAvailable       bool   `json:"isAvailable"`
	AvailableCapacity int    `json:"availableCapacity"`
	Capacity          int    `json:"capacity"`
}

type AvailabilityDay struct {
	Date     string             `json:"date"`
	IsClosed bool               `json:"isClosed"`
	Slots    []AvailabilitySlot `json:"slots"`
}

type SummarySlot struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Booked      int    `json:"booked"`
	Capacity    int    `json:"capacity"`
	Available   int    `json:"available"`
	IsAvailable bool   `json:"isAvailable"`
}

type TerminalDaySummary struct {
	Terminal Terminal      `json:"terminal"`
	Slots    []SummarySlot `json:"slots"`
}

type UtilizationEntry struct {
	Name            string  `json:"name"`
	UtilizationRate float64 `json:"utilizationRate"`
	BookedCapacity  int     `json:"bookedCapacity"`
	TotalCapacity   int     `json:"totalCapacity"`
	SlotsCount      int     `json:"slotsCount"`
}

// CapacityForDate is the effective capacity configuration of one terminal on
// one date. Closed dates carry only the closure fields.
type CapacityForDate struct {
	Date             string `json:"date"`
	DayOfWeek        string `json:"dayOfWeek,omitempty"`
	IsClosed         bool   `json:"isClosed"`
	ClosedReason     string `json:"closedReason,omitempty"`
	Source           string `json:"source,omitempty"`
	OperatingStart   string `json:"operatingStart,omitempty"`
	OperatingEnd     string `json:"operatingEnd,omitempty"`
	SlotDurationMin  int    `json:"slotDurationMin,omitempty"`
	MaxTrucksPerSlot int    `json:"maxTrucksPerSlot,omitempty"`
}

type User struct {
	ID               string   `json:"id"`
	Carrier          *Carrier `json:"carrier,omitempty"`
	OperatorTerminal *struct {
		Terminal Terminal `json:"terminal"`
	} `json:"operatorTerminal,omitempty"`
}

type bookingsResponse struct {
	Bookings []Booking `json:"bookings"`
}

type availabilityResponse struct {
	Availability []AvailabilityDay `json:"availability"`
}

type terminalsResponse struct {
	Terminals []Terminal `json:"terminals"`
}

type summariesResponse struct {
	Summaries []TerminalDaySummary `json:"summaries"`
}

type overviewResponse struct {
	Overview map[string]any `json:"overview"`
}

type utilizationResponse struct {
	Utilization []UtilizationEntry `json:"utilization"`
}

type userResponse struct {
	User User `json:"user"`
}
