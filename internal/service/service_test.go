package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"cabinrent/internal/config"
	"cabinrent/internal/database"
	"cabinrent/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fixedNow is 2025-07-01 10:00 UTC; every test calendar starts there.
var fixedNow = time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC)

func day(d int) models.Date {
	return models.NewDate(2025, time.July, d)
}

type published struct {
	Type    string
	Payload json.RawMessage
}

// recordingBus captures published events in order.
type recordingBus struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Type: eventType, Payload: raw})
	return nil
}

func (b *recordingBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

func (b *recordingBus) Last() published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type env struct {
	db     *database.DB
	bus    *recordingBus
	pricer *Pricer
	logger *zerolog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pricer := NewPricer(config.BookingConfig{MaxStayNights: 14, MaxAdvanceDays: 90})
	pricer.now = func() time.Time { return fixedNow }

	return &env{db: db, bus: &recordingBus{}, pricer: pricer, logger: &logger}
}

func (e *env) reservations() *ReservationService {
	return NewReservationService(e.db, e.db, e.bus, e.pricer, e.logger)
}

func (e *env) cabin(t *testing.T, name string, capacity int, price float64) *models.Cabin {
	t.Helper()
	c := &models.Cabin{Name: name, Capacity: capacity, PricePerNight: price, IsActive: true}
	require.NoError(t, e.db.CreateCabin(context.Background(), c))
	return c
}

func (e *env) guest(t *testing.T, first, last, email string) *models.Guest {
	t.Helper()
	g := &models.Guest{FirstName: first, LastName: last, Email: email}
	require.NoError(t, e.db.CreateGuest(context.Background(), g))
	return g
}

func (e *env) reserve(t *testing.T, cabinID, guestID int64, start, end models.Date) *models.Reservation {
	t.Helper()
	r := &models.Reservation{CabinID: cabinID, GuestID: guestID, StartDate: start, EndDate: end, GuestsCount: 2}
	require.NoError(t, e.reservations().Create(context.Background(), r, System))
	return r
}

var staff = Actor{ID: 1, Username: "desk"}
