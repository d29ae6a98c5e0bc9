package service

import (
	"fmt"
	"time"

	"cabinrent/internal/config"
	"cabinrent/internal/database"
	"cabinrent/internal/models"
)

// Quote is the priced offer for a stay in one cabin.
type Quote struct {
	CabinID       int64       `json:"cabin_id"`
	CabinName     string      `json:"cabin_name"`
	StartDate     models.Date `json:"start_date"`
	EndDate       models.Date `json:"end_date"`
	Guests        int         `json:"guests"`
	Nights        int         `json:"nights"`
	PricePerNight float64     `json:"price_per_night"`
	Total         float64     `json:"total"`
	Available     bool        `json:"available"`
}

// Pricer applies the booking limits and computes stay totals.
type Pricer struct {
	maxStayNights  int
	maxAdvanceDays int
	loc            *time.Location
	now            func() time.Time
}

func NewPricer(cfg config.BookingConfig) *Pricer {
	p := &Pricer{
		maxStayNights:  cfg.MaxStayNights,
		maxAdvanceDays: cfg.MaxAdvanceDays,
		loc:            cfg.Location(),
		now:            time.Now,
	}
	if p.maxStayNights <= 0 {
		p.maxStayNights = models.DefaultMaxStayNights
	}
	if p.maxAdvanceDays <= 0 {
		p.maxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	return p
}

// Today is the current day in the booking timezone.
func (p *Pricer) Today() models.Date {
	return models.DateOf(p.now().In(p.loc))
}

// QuoteStay prices [start, end) in cabin for guests people.
func (p *Pricer) QuoteStay(cabin *models.Cabin, start, end models.Date, guests int) (Quote, error) {
	nights, err := p.checkStay(start, end)
	if err != nil {
		return Quote{}, err
	}
	if guests < 1 {
		return Quote{}, invalid("guests_count", "must be at least 1")
	}
	if guests > cabin.Capacity {
		return Quote{}, fmt.Errorf("%d guests, %s sleeps %d: %w", guests, cabin.Name, cabin.Capacity, ErrCapacity)
	}

	return Quote{
		CabinID:       cabin.ID,
		CabinName:     cabin.Name,
		StartDate:     start,
		EndDate:       end,
		Guests:        guests,
		Nights:        nights,
		PricePerNight: cabin.PricePerNight,
		Total:         models.RoundMoney(float64(nights) * cabin.PricePerNight),
	}, nil
}

func (p *Pricer) checkStay(start, end models.Date) (int, error) {
	if start.IsZero() || end.IsZero() {
		return 0, invalid("dates", "start_date and end_date are required")
	}
	nights, err := models.Nights(start, end)
	if err != nil {
		return 0, invalid("end_date", err.Error())
	}
	if nights > p.maxStayNights {
		return 0, fmt.Errorf("%d nights, limit %d: %w", nights, p.maxStayNights, ErrStayTooLong)
	}
	return nights, nil
}

// CheckWindow enforces how far ahead a stay may start, and optionally that it is not in the past.
func (p *Pricer) CheckWindow(start models.Date, allowPast bool) error {
	today := p.Today()
	if !allowPast && start.Before(today) {
		return ErrPastDate
	}
	if start.After(today.AddDays(p.maxAdvanceDays)) {
		return fmt.Errorf("limit is %d days ahead: %w", p.maxAdvanceDays, ErrTooFarAhead)
	}
	return nil
}

// PriceFunc re-quotes a stay against the cabin row locked inside the write transaction.
func (p *Pricer) PriceFunc() database.PriceFunc {
	return func(cabin *models.Cabin, r *models.Reservation) (float64, error) {
		q, err := p.QuoteStay(cabin, r.StartDate, r.EndDate, r.GuestsCount)
		if err != nil {
			return 0, err
		}
		return q.Total, nil
	}
}
