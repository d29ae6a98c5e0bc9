package models

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidRange = errors.New("end date must be after start date")

type Reservation struct {
	ID          int64     `json:"id" db:"id"`
	CabinID     int64     `json:"cabin_id" db:"cabin_id"`
	CabinName   string    `json:"cabin_name,omitempty" db:"cabin_name"`
	GuestID     int64     `json:"guest_id" db:"guest_id"`
	GuestName   string    `json:"guest_name,omitempty" db:"guest_name"`
	StartDate   Date      `json:"start_date" db:"start_date"`
	EndDate     Date      `json:"end_date" db:"end_date"`
	GuestsCount int       `json:"guests_count" db:"guests_count"`
	TotalPrice  float64   `json:"total_price" db:"total_price"`
	Status      string    `json:"status" db:"status"` // reserved, check_in, cleaning, check_out, cancelled
	Notes       string    `json:"notes" db:"notes"`
	Version     int64     `json:"version" db:"version"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (r *Reservation) Nights() int {
	n, _ := Nights(r.StartDate, r.EndDate)
	return n
}

// Nights counts the nights of the stay [start, end).
func Nights(start, end Date) (int, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0, ErrInvalidRange
	}
	return start.DaysUntil(end), nil
}

// Overlaps reports whether the half-open stays [aStart, aEnd) and [bStart, bEnd) share a night.
// A stay ending on the day another begins does not overlap it.
func Overlaps(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// lifecycle lists the forward edges of the reservation state machine.
var lifecycle = map[string]string{
	StatusReserved: StatusCheckIn,
	StatusCheckIn:  StatusCleaning,
	StatusCleaning: StatusCheckOut,
}

// NextStatus returns the status that follows s, or "" for terminal states.
func NextStatus(s string) string {
	return lifecycle[s]
}

func CanTransition(from, to string) bool {
	if from == StatusReserved && to == StatusCancelled {
		return true
	}
	return lifecycle[from] == to && to != ""
}

// IsBlocking reports whether a reservation in status s occupies its cabin.
func IsBlocking(s string) bool {
	switch s {
	case StatusReserved, StatusCheckIn, StatusCleaning:
		return true
	}
	return false
}

func IsReservationStatus(s string) bool {
	switch s {
	case StatusReserved, StatusCheckIn, StatusCleaning, StatusCheckOut, StatusCancelled:
		return true
	}
	return false
}

// BlockingStatuses is the status set used by overlap queries.
func BlockingStatuses() []string {
	return []string{StatusReserved, StatusCheckIn, StatusCleaning}
}

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	Status  string
	CabinID int64
	GuestID int64
	From    Date
	To      Date
	Page    int
	PerPage int
}

// Normalize applies paging defaults and bounds.
func (f *ReservationFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PerPage <= 0:
		f.PerPage = DefaultPageSize
	case f.PerPage > MaxPageSize:
		f.PerPage = MaxPageSize
	}
}

func (f ReservationFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}
