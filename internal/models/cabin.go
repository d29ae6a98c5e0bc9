package models

import "time"

type Cabin struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Capacity      int       `json:"capacity" db:"capacity"`
	PricePerNight float64   `json:"price_per_night" db:"price_per_night"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Availability is one day of a cabin calendar.
type Availability struct {
	Date          Date  `json:"date"`
	CabinID       int64 `json:"cabin_id"`
	Available     bool  `json:"available"`
	ReservationID int64 `json:"reservation_id,omitempty"`
}
