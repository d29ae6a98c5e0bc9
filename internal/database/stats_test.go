package database

import (
	"context"
	"testing"
	"time"

	"cabinrent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	pine := mustCabin(t, db, "Pine", 4, 100)
	closed := mustCabin(t, db, "Elm", 4, 100)
	closed.IsActive = false
	require.NoError(t, db.UpdateCabin(ctx, closed))
	guest := mustGuest(t, db, "Ann", "Lee", "")
	require.NoError(t, db.CreateBookingRequest(ctx, newRequest(pine.ID, "", day(20), day(21))))

	june := mustReservation(t, db, pine.ID, guest.ID, models.NewDate(2025, time.June, 28), day(3))
	july := mustReservation(t, db, pine.ID, guest.ID, day(10), day(12))
	cancelled := mustReservation(t, db, pine.ID, guest.ID, day(20), day(25))
	require.NoError(t, db.UpdateReservationStatusWithVersion(ctx, cancelled.ID, cancelled.Version, models.StatusCancelled))

	require.NoError(t, db.CreatePayment(ctx, &models.Payment{
		ReservationID: june.ID, Amount: 100, Method: models.MethodCash, PaidAt: models.NewDate(2025, time.June, 20),
	}))
	require.NoError(t, db.CreatePayment(ctx, &models.Payment{
		ReservationID: june.ID, Amount: 50.5, Method: models.MethodCard, PaidAt: day(2),
	}))
	require.NoError(t, db.CreatePayment(ctx, &models.Payment{
		ReservationID: july.ID, Amount: 200, Method: models.MethodCard, PaidAt: day(10),
	}))

	counts, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Cabins: 2, ActiveCabins: 1, Guests: 1, PendingRequests: 1}, counts)

	byStatus, err := db.CountReservationsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, byStatus[models.StatusReserved])
	assert.Equal(t, 1, byStatus[models.StatusCancelled])

	// July: 2 nights of the June stay plus 2 nights of the July stay
	nights, err := db.OccupiedNights(ctx, day(1), models.NewDate(2025, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, nights)

	// stays in a cabin that was later deactivated do not count against active capacity
	oak := mustCabin(t, db, "Oak", 4, 100)
	mustReservation(t, db, oak.ID, guest.ID, day(5), day(15))
	oak.IsActive = false
	require.NoError(t, db.UpdateCabin(ctx, oak))
	nights, err = db.OccupiedNights(ctx, day(1), models.NewDate(2025, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, nights)

	revenue, err := db.RevenueByMonth(ctx, models.NewDate(2025, time.June, 1))
	require.NoError(t, err)
	require.Len(t, revenue, 2)
	assert.Equal(t, "2025-06", revenue[0].Month)
	assert.InDelta(t, 100.0, revenue[0].Amount, 0.001)
	assert.Equal(t, "2025-07", revenue[1].Month)
	assert.InDelta(t, 250.5, revenue[1].Amount, 0.001)
}
