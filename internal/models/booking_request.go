package models

import "time"

// BookingRequest is an inquiry from the public site that an admin approves or rejects.
type BookingRequest struct {
	ID            int64      `json:"id" db:"id"`
	CabinID       int64      `json:"cabin_id" db:"cabin_id"`
	CabinName     string     `json:"cabin_name,omitempty" db:"cabin_name"`
	FirstName     string     `json:"first_name" db:"first_name"`
	LastName      string     `json:"last_name" db:"last_name"`
	Email         string     `json:"email" db:"email"`
	Phone         string     `json:"phone" db:"phone"`
	StartDate     Date       `json:"start_date" db:"start_date"`
	EndDate       Date       `json:"end_date" db:"end_date"`
	GuestsCount   int        `json:"guests_count" db:"guests_count"`
	Message       string     `json:"message" db:"message"`
	Status        string     `json:"status" db:"status"` // pending, approved, rejected
	ReservationID *int64     `json:"reservation_id" db:"reservation_id"`
	DecisionNote  string     `json:"decision_note" db:"decision_note"`
	DecidedBy     *int64     `json:"decided_by" db:"decided_by"`
	DecidedAt     *time.Time `json:"decided_at" db:"decided_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
