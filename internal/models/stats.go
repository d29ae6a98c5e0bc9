package models

// DashboardStats is the payload behind the admin dashboard cards and charts.
type DashboardStats struct {
	Date                Date             `json:"date"`
	Cabins              int              `json:"cabins"`
	ActiveCabins        int              `json:"active_cabins"`
	Guests              int              `json:"guests"`
	PendingRequests     int              `json:"pending_requests"`
	ReservationsByState map[string]int   `json:"reservations_by_status"`
	ArrivalsToday       int              `json:"arrivals_today"`
	DeparturesToday     int              `json:"departures_today"`
	OccupancyRate       float64          `json:"occupancy_rate"`
	MonthlyRevenue      []MonthlyRevenue `json:"monthly_revenue"`
}

type MonthlyRevenue struct {
	Month  string  `json:"month" db:"month"` // YYYY-MM
	Amount float64 `json:"amount" db:"amount"`
}

// TodayBoard lists the reservations arriving and departing on a day.
type TodayBoard struct {
	Date       Date           `json:"date"`
	Arrivals   []*Reservation `json:"arrivals"`
	Departures []*Reservation `json:"departures"`
	InHouse    []*Reservation `json:"in_house"`
}
