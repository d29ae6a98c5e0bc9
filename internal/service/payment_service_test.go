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

func TestPaymentService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewPaymentService(e.db, e.bus, e.pricer, e.logger)
	pine := e.cabin(t, "Pine", 4, 100)
	ann := e.guest(t, "Ann", "Lee", "")
	r := e.reserve(t, pine.ID, ann.ID, day(5), day(8))

	first := &models.Payment{ReservationID: r.ID, Amount: 100, Method: " CASH "}
	require.NoError(t, svc.Create(ctx, first, staff))
	assert.Equal(t, models.MethodCash, first.Method)
	assert.Equal(t, models.PaymentSigned, first.Status)
	assert.Equal(t, day(1), first.PaidAt, "paid_at defaults to today")
	assert.Equal(t, events.EventPaymentCreated, e.bus.Last().Type)

	t.Run("Overpayment", func(t *testing.T) {
		err := svc.Create(ctx, &models.Payment{ReservationID: r.ID, Amount: 200.01, Method: models.MethodCard}, staff)
		assert.ErrorIs(t, err, database.ErrOverpayment)
	})

	t.Run("Invalid", func(t *testing.T) {
		assert.ErrorIs(t, svc.Create(ctx, &models.Payment{ReservationID: r.ID, Amount: 10, Method: "cheque"}, staff), ErrValidation)
		assert.ErrorIs(t, svc.Create(ctx, &models.Payment{ReservationID: r.ID, Amount: 0, Method: models.MethodCash}, staff), ErrValidation)
		assert.ErrorIs(t, svc.Create(ctx, &models.Payment{ReservationID: r.ID, Amount: 0.004, Method: models.MethodCash}, staff), ErrValidation)
		assert.ErrorIs(t, svc.Create(ctx, &models.Payment{Amount: 10, Method: models.MethodCash}, staff), ErrValidation)
		assert.ErrorIs(t, svc.Create(ctx, &models.Payment{ReservationID: 999, Amount: 10, Method: models.MethodCash}, staff), database.ErrNotFound)
	})

	second := &models.Payment{ReservationID: r.ID, Amount: 200, Method: models.MethodTransfer, PaidAt: day(3), Reference: " inv-7 "}
	require.NoError(t, svc.Create(ctx, second, staff))
	assert.Equal(t, models.PaymentCompleted, second.Status)
	assert.Equal(t, "inv-7", second.Reference)

	balance, err := svc.Balance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Balance{ReservationID: r.ID, Total: 300, Paid: 300, Due: 0, Status: models.PaymentCompleted}, balance)

	list, err := svc.List(ctx, models.PaymentFilter{ReservationID: r.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	_, err = svc.List(ctx, models.PaymentFilter{Method: "cheque"})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.Delete(ctx, first.ID, staff))
	assert.Equal(t, events.EventPaymentDeleted, e.bus.Last().Type)
	balance, err = svc.Balance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSigned, balance.Status)
	assert.Equal(t, 100.0, balance.Due)

	assert.ErrorIs(t, svc.Delete(ctx, first.ID, staff), database.ErrNotFound)
}

func TestPaymentOnCancelledReservation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewPaymentService(e.db, e.bus, e.pricer, e.logger)
	pine := e.cabin(t, "Pine", 4, 100)
	ann := e.guest(t, "Ann", "Lee", "")
	r := e.reserve(t, pine.ID, ann.ID, day(5), day(8))
	_, err := e.reservations().Cancel(ctx, r.ID, r.Version, staff)
	require.NoError(t, err)

	err = svc.Create(ctx, &models.Payment{ReservationID: r.ID, Amount: 10, Method: models.MethodCash}, staff)
	assert.ErrorIs(t, err, database.ErrReservationCancelled)
}
