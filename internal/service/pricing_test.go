package service

import (
	"testing"
	"time"

	"cabinrent/internal/config"
	"cabinrent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteStay(t *testing.T) {
	p := NewPricer(config.BookingConfig{MaxStayNights: 14, MaxAdvanceDays: 90})
	cabin := &models.Cabin{ID: 3, Name: "Pine", Capacity: 4, PricePerNight: 33.333}

	q, err := p.QuoteStay(cabin, day(1), day(4), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Nights)
	assert.Equal(t, 100.0, q.Total)
	assert.Equal(t, int64(3), q.CabinID)

	_, err = p.QuoteStay(cabin, day(1), day(1), 2)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.QuoteStay(cabin, day(1), day(4), 5)
	assert.ErrorIs(t, err, ErrCapacity)

	_, err = p.QuoteStay(cabin, day(1), day(4), 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.QuoteStay(cabin, day(1), day(16), 2)
	assert.ErrorIs(t, err, ErrStayTooLong)

	_, err = p.QuoteStay(cabin, models.Date{}, day(2), 2)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckWindow(t *testing.T) {
	p := NewPricer(config.BookingConfig{MaxAdvanceDays: 10, Timezone: "Europe/Helsinki"})
	// 22:30 UTC is already the next day in Helsinki
	p.now = func() time.Time { return time.Date(2025, time.June, 30, 22, 30, 0, 0, time.UTC) }

	assert.Equal(t, day(1), p.Today())
	assert.NoError(t, p.CheckWindow(day(1), false))
	assert.ErrorIs(t, p.CheckWindow(models.NewDate(2025, time.June, 30), false), ErrPastDate)
	assert.NoError(t, p.CheckWindow(models.NewDate(2025, time.June, 30), true))
	assert.NoError(t, p.CheckWindow(day(11), false))
	assert.ErrorIs(t, p.CheckWindow(day(12), false), ErrTooFarAhead)
}

func TestPriceFuncDefaults(t *testing.T) {
	p := NewPricer(config.BookingConfig{})
	price := p.PriceFunc()

	total, err := price(&models.Cabin{Capacity: 2, PricePerNight: 50},
		&models.Reservation{StartDate: day(1), EndDate: day(1).AddDays(models.DefaultMaxStayNights), GuestsCount: 2})
	require.NoError(t, err)
	assert.Equal(t, float64(models.DefaultMaxStayNights*50), total)

	_, err = price(&models.Cabin{Capacity: 2, PricePerNight: 50},
		&models.Reservation{StartDate: day(1), EndDate: day(1).AddDays(models.DefaultMaxStayNights + 1), GuestsCount: 2})
	assert.ErrorIs(t, err, ErrStayTooLong)
}
