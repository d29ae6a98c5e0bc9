package domain

import (
	"context"
	"time"

	"cabinrent/internal/database"
	"cabinrent/internal/models"
)

type CabinRepository interface {
	ListCabins(ctx context.Context, activeOnly bool) ([]*models.Cabin, error)
	GetCabin(ctx context.Context, id int64) (*models.Cabin, error)
	CreateCabin(ctx context.Context, cabin *models.Cabin) error
	UpdateCabin(ctx context.Context, cabin *models.Cabin) error
	DeleteCabin(ctx context.Context, id int64) error
	AvailableCabins(ctx context.Context, start, end models.Date, guests int) ([]*models.Cabin, error)
	CabinCalendar(ctx context.Context, cabinID int64, from models.Date, days int) ([]*models.Availability, error)
}

type GuestRepository interface {
	ListGuests(ctx context.Context, search string) ([]*models.Guest, error)
	GetGuest(ctx context.Context, id int64) (*models.Guest, error)
	GetGuestByEmail(ctx context.Context, email string) (*models.Guest, error)
	CreateGuest(ctx context.Context, guest *models.Guest) error
	UpdateGuest(ctx context.Context, guest *models.Guest) error
	DeleteGuest(ctx context.Context, id int64) error
}

type ReservationRepository interface {
	ListReservations(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, int, error)
	ReservationsInRange(ctx context.Context, from, to models.Date) ([]*models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CountOverlapping(ctx context.Context, cabinID int64, start, end models.Date, excludeID int64) (int, error)
	CreateReservation(ctx context.Context, r *models.Reservation, price database.PriceFunc) error
	UpdateReservation(ctx context.Context, r *models.Reservation, price database.PriceFunc) error
	UpdateReservationStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	DeleteReservation(ctx context.Context, id int64) (int64, error)
	Arrivals(ctx context.Context, day models.Date) ([]*models.Reservation, error)
	Departures(ctx context.Context, day models.Date) ([]*models.Reservation, error)
	InHouse(ctx context.Context, day models.Date) ([]*models.Reservation, error)
}

type PaymentRepository interface {
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error)
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	DeletePayment(ctx context.Context, id int64) error
	Balance(ctx context.Context, reservationID int64) (models.Balance, error)
}

type UserRepository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type BookingRequestRepository interface {
	ListBookingRequests(ctx context.Context, status string) ([]*models.BookingRequest, error)
	GetBookingRequest(ctx context.Context, id int64) (*models.BookingRequest, error)
	CreateBookingRequest(ctx context.Context, br *models.BookingRequest) error
	DeleteBookingRequest(ctx context.Context, id int64) error
	RejectBookingRequest(ctx context.Context, id, decidedBy int64, note string) (*models.BookingRequest, error)
	ApproveBookingRequest(ctx context.Context, id, decidedBy int64, note string, price database.PriceFunc) (*models.Reservation, error)
}

type StatsRepository interface {
	Counts(ctx context.Context) (database.Counts, error)
	CountReservationsByStatus(ctx context.Context) (map[string]int, error)
	OccupiedNights(ctx context.Context, from, to models.Date) (int, error)
	RevenueByMonth(ctx context.Context, from models.Date) ([]models.MonthlyRevenue, error)
	Arrivals(ctx context.Context, day models.Date) ([]*models.Reservation, error)
	Departures(ctx context.Context, day models.Date) ([]*models.Reservation, error)
}

// CacheStore holds short-lived values and counters (stats snapshots, login attempts).
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
