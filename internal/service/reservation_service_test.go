package service

import (
	"context"
	"encoding/json"
	"testing"

	"cabinrent/internal/database"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationCreate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.reservations()
	pine := e.cabin(t, "Pine", 4, 120)
	ann := e.guest(t, "Ann", "Lee", "")

	r := &models.Reservation{CabinID: pine.ID, GuestID: ann.ID, StartDate: day(5), EndDate: day(8), GuestsCount: 3, Notes: "  late arrival "}
	require.NoError(t, svc.Create(ctx, r, staff))
	assert.Equal(t, 360.0, r.TotalPrice)
	assert.Equal(t, models.StatusReserved, r.Status)
	assert.Equal(t, "late arrival", r.Notes)
	assert.Equal(t, "Pine", r.CabinName)

	last := e.bus.Last()
	assert.Equal(t, events.EventReservationCreated, last.Type)
	var payload events.ReservationEventPayload
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, "desk", payload.ChangedBy)
	assert.Equal(t, r.ID, payload.ReservationID)

	t.Run("Overlap", func(t *testing.T) {
		other := &models.Reservation{CabinID: pine.ID, GuestID: ann.ID, StartDate: day(7), EndDate: day(9), GuestsCount: 1}
		assert.ErrorIs(t, svc.Create(ctx, other, staff), database.ErrNotAvailable)
	})

	t.Run("SameDayTurnover", func(t *testing.T) {
		next := &models.Reservation{CabinID: pine.ID, GuestID: ann.ID, StartDate: day(8), EndDate: day(10), GuestsCount: 1}
		assert.NoError(t, svc.Create(ctx, next, staff))
	})

	t.Run("Capacity", func(t *testing.T) {
		big := &models.Reservation{CabinID: pine.ID, GuestID: ann.ID, StartDate: day(20), EndDate: day(22), GuestsCount: 5}
		assert.ErrorIs(t, svc.Create(ctx, big, staff), ErrCapacity)
	})

	t.Run("TooFarAhead", func(t *testing.T) {
		far := &models.Reservation{CabinID: pine.ID, GuestID: ann.ID, StartDate: day(1).AddDays(120), EndDate: day(1).AddDays(122), GuestsCount: 1}
		assert.ErrorIs(t, svc.Create(ctx, far, staff), ErrTooFarAhead)
	})

	t.Run("MissingFields", func(t *testing.T) {
		assert.ErrorIs(t, svc.Create(ctx, &models.Reservation{GuestID: ann.ID}, staff), ErrValidation)
		assert.ErrorIs(t, svc.Create(ctx, &models.Reservation{CabinID: pine.ID, GuestID: ann.ID, StartDate: day(3), EndDate: day(2), GuestsCount: 1}, staff), ErrValidation)
	})

	t.Run("InactiveCabin", func(t *testing.T) {
		closed := e.cabin(t, "Closed", 2, 50)
		closed.IsActive = false
		require.NoError(t, e.db.UpdateCabin(ctx, closed))
		r := &models.Reservation{CabinID: closed.ID, GuestID: ann.ID, StartDate: day(3), EndDate: day(4), GuestsCount: 1}
		assert.ErrorIs(t, svc.Create(ctx, r, staff), database.ErrCabinInactive)
	})
}

func TestReservationQuote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.reservations()
	pine := e.cabin(t, "Pine", 4, 100)
	ann := e.guest(t, "Ann", "Lee", "")
	r := e.reserve(t, pine.ID, ann.ID, day(5), day(8))

	q, err := svc.Quote(ctx, pine.ID, day(6), day(9), 2, 0)
	require.NoError(t, err)
	assert.False(t, q.Available)
	assert.Equal(t, 300.0, q.Total)

	q, err = svc.Quote(ctx, pine.ID, day(6), day(9), 2, r.ID)
	require.NoError(t, err)
	assert.True(t, q.Available, "own reservation is excluded")

	q, err = svc.Quote(ctx, pine.ID, day(8), day(9), 2, 0)
	require.NoError(t, err)
	assert.True(t, q.Available)

	_, err = svc.Quote(ctx, 999, day(8), day(9), 2, 0)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestReservationUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.reservations()
	pine := e.cabin(t, "Pine", 4, 100)
	birch := e.cabin(t, "Birch", 2, 80)
	ann := e.guest(t, "Ann", "Lee", "")
	r := e.reserve(t, pine.ID, ann.ID, day(5), day(8))

	update := *r
	update.CabinID = birch.ID
	update.EndDate = day(9)
	require.NoError(t, svc.Update(ctx, &update, staff))
	assert.Equal(t, 320.0, update.TotalPrice)
	assert.Equal(t, r.Version+1, update.Version)
	assert.Equal(t, events.EventReservationUpdated, e.bus.Last().Type)

	stale := *r
	stale.Notes = "stale"
	assert.ErrorIs(t, svc.Update(ctx, &stale, staff), database.ErrConcurrentModification)

	require.NoError(t, e.db.CreatePayment(ctx, &models.Payment{ReservationID: r.ID, Amount: 300, Method: models.MethodCash, PaidAt: day(1)}))
	shorter := update
	shorter.EndDate = day(6)
	assert.ErrorIs(t, svc.Update(ctx, &shorter, staff), database.ErrOverpayment)
}

func TestReservationLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.reservations()
	pine := e.cabin(t, "Pine", 4, 100)
	ann := e.guest(t, "Ann", "Lee", "")
	r := e.reserve(t, pine.ID, ann.ID, day(1), day(3))

	_, err := svc.Transition(ctx, r.ID, r.Version, models.StatusCleaning, staff)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.Transition(ctx, r.ID, r.Version, "archived", staff)
	assert.ErrorIs(t, err, ErrValidation)

	checkedIn, err := svc.Transition(ctx, r.ID, r.Version, models.StatusCheckIn, staff)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckIn, checkedIn.Status)

	var payload events.ReservationEventPayload
	require.NoError(t, json.Unmarshal(e.bus.Last().Payload, &payload))
	assert.Equal(t, models.StatusReserved, payload.PreviousStatus)
	assert.Equal(t, models.StatusCheckIn, payload.Status)
	assert.Equal(t, int64(1), payload.ChangedByID)

	_, err = svc.Transition(ctx, r.ID, r.Version, models.StatusCleaning, staff)
	assert.ErrorIs(t, err, database.ErrConcurrentModification)

	_, err = svc.Cancel(ctx, r.ID, checkedIn.Version, staff)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.Delete(ctx, r.ID, staff)
	assert.ErrorIs(t, err, database.ErrGuestOnSite)

	board, err := svc.Today(ctx, day(2))
	require.NoError(t, err)
	require.Len(t, board.InHouse, 1)
	assert.Empty(t, board.Arrivals)

	cleaning, err := svc.Transition(ctx, r.ID, checkedIn.Version, models.StatusCleaning, staff)
	require.NoError(t, err)
	done, err := svc.Transition(ctx, r.ID, cleaning.Version, models.StatusCheckOut, staff)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckOut, done.Status)

	// checked-out stays free the cabin
	available, err := svc.CheckAvailability(ctx, pine.ID, day(1), day(3), 0)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestReservationCancelAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.reservations()
	pine := e.cabin(t, "Pine", 4, 100)
	ann := e.guest(t, "Ann", "Lee", "")
	r := e.reserve(t, pine.ID, ann.ID, day(4), day(6))

	cancelled, err := svc.Cancel(ctx, r.ID, r.Version, staff)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	again := e.reserve(t, pine.ID, ann.ID, day(4), day(6))
	require.NoError(t, e.db.CreatePayment(ctx, &models.Payment{ReservationID: again.ID, Amount: 50, Method: models.MethodCard, PaidAt: day(1)}))

	removed, err := svc.Delete(ctx, again.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, events.EventReservationDeleted, e.bus.Last().Type)

	_, err = svc.Get(ctx, again.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestReservationList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.reservations()
	pine := e.cabin(t, "Pine", 4, 100)
	ann := e.guest(t, "Ann", "Lee", "")
	e.reserve(t, pine.ID, ann.ID, day(1), day(3))
	e.reserve(t, pine.ID, ann.ID, day(10), day(12))

	items, total, err := svc.List(ctx, models.ReservationFilter{From: day(9), To: day(20), PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, day(10), items[0].StartDate)

	_, _, err = svc.List(ctx, models.ReservationFilter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = svc.List(ctx, models.ReservationFilter{From: day(9), To: day(2)})
	assert.ErrorIs(t, err, ErrValidation)
}
