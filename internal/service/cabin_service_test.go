package service

import (
	"context"
	"testing"

	"cabinrent/internal/database"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCabinService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewCabinService(e.db, e.bus, e.pricer, e.logger)

	pine := &models.Cabin{Name: " Pine ", Capacity: 4, PricePerNight: 99.999, IsActive: true}
	require.NoError(t, svc.Create(ctx, pine))
	assert.Equal(t, "Pine", pine.Name)
	assert.Equal(t, 100.0, pine.PricePerNight)
	assert.Equal(t, events.EventCabinChanged, e.bus.Last().Type)

	assert.ErrorIs(t, svc.Create(ctx, &models.Cabin{Name: "", Capacity: 2, PricePerNight: 10}), ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Cabin{Name: "X", Capacity: 0, PricePerNight: 10}), ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Cabin{Name: "X", Capacity: 2, PricePerNight: 0}), ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Cabin{Name: "Pine", Capacity: 2, PricePerNight: 10}), database.ErrDuplicate)

	birch := &models.Cabin{Name: "Birch", Capacity: 2, PricePerNight: 80, IsActive: true}
	require.NoError(t, svc.Create(ctx, birch))
	ann := e.guest(t, "Ann", "Lee", "")
	e.reserve(t, pine.ID, ann.ID, day(3), day(5))

	t.Run("Search", func(t *testing.T) {
		free, err := svc.Search(ctx, day(4), day(6), 2)
		require.NoError(t, err)
		require.Len(t, free, 1)
		assert.Equal(t, "Birch", free[0].Name)

		free, err = svc.Search(ctx, day(5), day(6), 3)
		require.NoError(t, err)
		require.Len(t, free, 1)
		assert.Equal(t, "Pine", free[0].Name)

		_, err = svc.Search(ctx, day(6), day(5), 1)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Calendar", func(t *testing.T) {
		days, err := svc.Calendar(ctx, pine.ID, models.Date{}, 0)
		require.NoError(t, err)
		require.Len(t, days, 30)
		assert.Equal(t, day(1), days[0].Date)
		assert.True(t, days[1].Available)
		assert.False(t, days[2].Available)
		assert.False(t, days[3].Available)
		assert.True(t, days[4].Available, "checkout day is free")

		_, err = svc.Calendar(ctx, pine.ID, day(1), 400)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = svc.Calendar(ctx, 999, day(1), 7)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, pine.ID), database.ErrHasReferences)
		require.NoError(t, svc.Delete(ctx, birch.ID))
		_, err := svc.Get(ctx, birch.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("Deactivate", func(t *testing.T) {
		pine.IsActive = false
		require.NoError(t, svc.Update(ctx, pine))
		active, err := svc.List(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, active)
		all, err := svc.List(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestGuestService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewGuestService(e.db, e.db, e.bus, e.logger)

	ann := &models.Guest{FirstName: " Ann ", LastName: "Lee", Email: " ANN@Example.com "}
	require.NoError(t, svc.Create(ctx, ann))
	assert.Equal(t, "ann@example.com", ann.Email)
	assert.Equal(t, events.EventGuestChanged, e.bus.Last().Type)

	assert.ErrorIs(t, svc.Create(ctx, &models.Guest{LastName: "Lee"}), ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Guest{FirstName: "Bo"}), ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Guest{FirstName: "Bo", LastName: "X", Email: "nope"}), ErrValidation)
	assert.ErrorIs(t, svc.Create(ctx, &models.Guest{FirstName: "Bo", LastName: "X", Email: "ann@example.com"}), database.ErrDuplicate)

	bo := &models.Guest{FirstName: "Bo", LastName: "Ek", Phone: "555"}
	require.NoError(t, svc.Create(ctx, bo))

	found, err := svc.List(ctx, " ANN ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ann.ID, found[0].ID)

	pine := e.cabin(t, "Pine", 4, 100)
	e.reserve(t, pine.ID, ann.ID, day(3), day(5))
	e.reserve(t, pine.ID, ann.ID, day(10), day(12))

	stays, total, err := svc.Reservations(ctx, ann.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, stays, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, day(10), stays[0].StartDate, "newest first")

	stays, total, err = svc.Reservations(ctx, ann.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, stays, 1)
	assert.Equal(t, 2, total)
	assert.Equal(t, day(3), stays[0].StartDate)

	_, _, err = svc.Reservations(ctx, 999, 1, 0)
	assert.ErrorIs(t, err, database.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, ann.ID), database.ErrHasReferences)
	require.NoError(t, svc.Delete(ctx, bo.ID))

	ann.Notes = "prefers the lake side"
	require.NoError(t, svc.Update(ctx, ann))
	got, err := svc.Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "prefers the lake side", got.Notes)
}
