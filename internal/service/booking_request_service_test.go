package service

import (
	"context"
	"testing"
	"time"

	"cabinrent/internal/database"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(cabinID int64, email string, start, end models.Date) *models.BookingRequest {
	return &models.BookingRequest{
		CabinID:     cabinID,
		FirstName:   " Mia ",
		LastName:    "Berg",
		Email:       email,
		StartDate:   start,
		EndDate:     end,
		GuestsCount: 2,
		Message:     "arriving by train",
	}
}

func TestSubmitBookingRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewBookingRequestService(e.db, e.db, e.bus, e.pricer, e.logger)
	pine := e.cabin(t, "Pine", 4, 100)

	br := request(pine.ID, " Mia@Example.com ", day(10), day(12))
	require.NoError(t, svc.Submit(ctx, br))
	assert.Equal(t, models.RequestPending, br.Status)
	assert.Equal(t, "Mia", br.FirstName)
	assert.Equal(t, "mia@example.com", br.Email)
	assert.Equal(t, "Pine", br.CabinName)
	assert.Equal(t, events.EventBookingRequestCreated, e.bus.Last().Type)

	t.Run("Validation", func(t *testing.T) {
		noName := request(pine.ID, "a@b.c", day(10), day(12))
		noName.LastName = " "
		assert.ErrorIs(t, svc.Submit(ctx, noName), ErrValidation)

		noContact := request(pine.ID, "", day(10), day(12))
		assert.ErrorIs(t, svc.Submit(ctx, noContact), ErrValidation)

		badEmail := request(pine.ID, "not-an-address", day(10), day(12))
		assert.ErrorIs(t, svc.Submit(ctx, badEmail), ErrValidation)

		phoneOnly := request(pine.ID, "", day(10), day(12))
		phoneOnly.Phone = "+358 40 123"
		assert.NoError(t, svc.Submit(ctx, phoneOnly))
	})

	t.Run("Limits", func(t *testing.T) {
		past := request(pine.ID, "a@b.c", models.NewDate(2025, time.June, 30), day(2))
		assert.ErrorIs(t, svc.Submit(ctx, past), ErrPastDate)

		crowd := request(pine.ID, "a@b.c", day(10), day(12))
		crowd.GuestsCount = 6
		assert.ErrorIs(t, svc.Submit(ctx, crowd), ErrCapacity)

		long := request(pine.ID, "a@b.c", day(1), day(20))
		assert.ErrorIs(t, svc.Submit(ctx, long), ErrStayTooLong)

		missing := request(999, "a@b.c", day(10), day(12))
		assert.ErrorIs(t, svc.Submit(ctx, missing), database.ErrNotFound)
	})

	t.Run("InactiveCabin", func(t *testing.T) {
		closed := e.cabin(t, "Closed", 4, 100)
		closed.IsActive = false
		require.NoError(t, e.db.UpdateCabin(ctx, closed))
		assert.ErrorIs(t, svc.Submit(ctx, request(closed.ID, "a@b.c", day(10), day(12))), database.ErrCabinInactive)
	})

	pending, err := svc.List(ctx, models.RequestPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	_, err = svc.List(ctx, "maybe")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecideBookingRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewBookingRequestService(e.db, e.db, e.bus, e.pricer, e.logger)
	pine := e.cabin(t, "Pine", 4, 100)

	admin, err := NewUserService(e.db, e.logger).Create(ctx, UserInput{Username: "admin", Role: strPtr(models.RoleAdmin), Password: strPtr("long enough")})
	require.NoError(t, err)
	actor := Actor{ID: admin.ID, Username: admin.Username}

	first := request(pine.ID, "mia@example.com", day(10), day(12))
	require.NoError(t, svc.Submit(ctx, first))

	r, err := svc.Approve(ctx, first.ID, " ok ", actor)
	require.NoError(t, err)
	assert.Equal(t, 200.0, r.TotalPrice)
	assert.Equal(t, "Mia Berg", r.GuestName)
	assert.Equal(t, "arriving by train", r.Notes)
	types := e.bus.Types()
	assert.Equal(t, []string{events.EventBookingRequestApproved, events.EventReservationCreated}, types[len(types)-2:])

	approved, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	assert.Equal(t, "ok", approved.DecisionNote)
	require.NotNil(t, approved.ReservationID)
	assert.Equal(t, r.ID, *approved.ReservationID)

	_, err = svc.Approve(ctx, first.ID, "", actor)
	assert.ErrorIs(t, err, database.ErrNotPending)

	t.Run("ReusesGuestByEmail", func(t *testing.T) {
		again := request(pine.ID, "MIA@example.com", day(20), day(22))
		require.NoError(t, svc.Submit(ctx, again))
		second, err := svc.Approve(ctx, again.ID, "", actor)
		require.NoError(t, err)
		assert.Equal(t, r.GuestID, second.GuestID)
	})

	t.Run("ConflictKeepsPending", func(t *testing.T) {
		clash := request(pine.ID, "other@example.com", day(11), day(13))
		require.NoError(t, svc.Submit(ctx, clash))
		_, err := svc.Approve(ctx, clash.ID, "", actor)
		assert.ErrorIs(t, err, database.ErrNotAvailable)

		still, err := svc.Get(ctx, clash.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, still.Status)

		rejected, err := svc.Reject(ctx, clash.ID, "dates taken", actor)
		require.NoError(t, err)
		assert.Equal(t, models.RequestRejected, rejected.Status)
		assert.Equal(t, events.EventBookingRequestRejected, e.bus.Last().Type)

		_, err = svc.Reject(ctx, clash.ID, "", actor)
		assert.ErrorIs(t, err, database.ErrNotPending)

		require.NoError(t, svc.Delete(ctx, clash.ID))
		_, err = svc.Get(ctx, clash.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}
