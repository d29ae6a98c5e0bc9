package service

import (
	"context"
	"net/mail"
	"strings"

	"cabinrent/internal/domain"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/rs/zerolog"
)

type GuestService struct {
	repo         domain.GuestRepository
	reservations domain.ReservationRepository
	eventBus     domain.EventPublisher
	logger       *zerolog.Logger
}

func NewGuestService(repo domain.GuestRepository, reservations domain.ReservationRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *GuestService {
	return &GuestService{repo: repo, reservations: reservations, eventBus: eventBus, logger: nopLogger(logger)}
}

func (s *GuestService) List(ctx context.Context, search string) ([]*models.Guest, error) {
	return s.repo.ListGuests(ctx, strings.TrimSpace(search))
}

func (s *GuestService) Get(ctx context.Context, id int64) (*models.Guest, error) {
	return s.repo.GetGuest(ctx, id)
}

func (s *GuestService) Create(ctx context.Context, guest *models.Guest) error {
	if err := normalizeGuest(guest); err != nil {
		return err
	}
	if err := s.repo.CreateGuest(ctx, guest); err != nil {
		return err
	}
	publish(s.eventBus, s.logger, events.EventGuestChanged, events.EntityEventPayload{ID: guest.ID, Action: "created"})
	return nil
}

func (s *GuestService) Update(ctx context.Context, guest *models.Guest) error {
	if err := normalizeGuest(guest); err != nil {
		return err
	}
	if err := s.repo.UpdateGuest(ctx, guest); err != nil {
		return err
	}
	publish(s.eventBus, s.logger, events.EventGuestChanged, events.EntityEventPayload{ID: guest.ID, Action: "updated"})
	return nil
}

func (s *GuestService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteGuest(ctx, id); err != nil {
		return err
	}
	publish(s.eventBus, s.logger, events.EventGuestChanged, events.EntityEventPayload{ID: id, Action: "deleted"})
	return nil
}

// Reservations lists every stay of a guest, newest first.
// Reservations returns one page of a guest's stays, newest first, with the total count.
func (s *GuestService) Reservations(ctx context.Context, guestID int64, page, perPage int) ([]*models.Reservation, int, error) {
	if _, err := s.repo.GetGuest(ctx, guestID); err != nil {
		return nil, 0, err
	}
	f := models.ReservationFilter{GuestID: guestID, Page: page, PerPage: perPage}
	f.Normalize()
	return s.reservations.ListReservations(ctx, f)
}

func normalizeGuest(g *models.Guest) error {
	g.FirstName = strings.TrimSpace(g.FirstName)
	g.LastName = strings.TrimSpace(g.LastName)
	g.Email = strings.ToLower(strings.TrimSpace(g.Email))
	g.Phone = strings.TrimSpace(g.Phone)

	if g.FirstName == "" {
		return invalid("first_name", "is required")
	}
	if g.LastName == "" {
		return invalid("last_name", "is required")
	}
	if g.Email != "" {
		if _, err := mail.ParseAddress(g.Email); err != nil {
			return invalid("email", "is not a valid address")
		}
	}
	return nil
}
