package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"cabinrent/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConcurrentReservation(t *testing.T) {
	db := setupFileDB(t)
	ctx := context.Background()

	cabin := mustCabin(t, db, "Pine", 4, 100)
	guest := mustGuest(t, db, "Ann", "Lee", "")

	const numGoroutines = 20
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			r := &models.Reservation{CabinID: cabin.ID, GuestID: guest.ID, StartDate: day(10), EndDate: day(13), GuestsCount: 2}
			results <- db.CreateReservation(ctx, r, flatPrice)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrNotAvailable)
	}
	assert.Equal(t, 1, succeeded, "only one overlapping stay may be stored")

	n, err := db.CountOverlapping(ctx, cabin.ID, day(10), day(13), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentPayments(t *testing.T) {
	db := setupFileDB(t)
	ctx := context.Background()

	cabin := mustCabin(t, db, "Pine", 4, 100)
	guest := mustGuest(t, db, "Ann", "Lee", "")
	r := mustReservation(t, db, cabin.ID, guest.ID, day(1), day(4))
	require.Equal(t, 300.0, r.TotalPrice)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			p := &models.Payment{ReservationID: r.ID, Amount: 100, Method: models.MethodCash, PaidAt: day(1)}
			results <- db.CreatePayment(ctx, p)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrOverpayment), "unexpected error: %v", err)
	}
	assert.Equal(t, 3, succeeded)

	balance, err := db.Balance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, balance.Paid)
	assert.Equal(t, models.PaymentCompleted, balance.Status)
}

func TestConcurrentAdminRemoval(t *testing.T) {
	db := setupFileDB(t)
	ctx := context.Background()

	var admins []*models.User
	for _, name := range []string{"owner", "partner"} {
		u := &models.User{Username: name, Role: models.RoleAdmin, PasswordHash: "hash"}
		require.NoError(t, db.CreateUser(ctx, u))
		admins = append(admins, u)
	}

	var wg sync.WaitGroup
	wg.Add(len(admins))
	results := make(chan error, len(admins))
	for _, u := range admins {
		go func(id int64) {
			defer wg.Done()
			results <- db.DeleteUser(ctx, id)
		}(u.ID)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrLastAdmin)
	}
	assert.Equal(t, 1, succeeded)

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
}
