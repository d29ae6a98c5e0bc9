package service

import (
	"context"
	"fmt"
	"strings"

	"cabinrent/internal/database"
	"cabinrent/internal/domain"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/rs/zerolog"
)

type ReservationService struct {
	repo     domain.ReservationRepository
	cabins   domain.CabinRepository
	eventBus domain.EventPublisher
	pricer   *Pricer
	logger   *zerolog.Logger
}

func NewReservationService(repo domain.ReservationRepository, cabins domain.CabinRepository, eventBus domain.EventPublisher, pricer *Pricer, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		repo:     repo,
		cabins:   cabins,
		eventBus: eventBus,
		pricer:   pricer,
		logger:   nopLogger(logger),
	}
}

// List returns one page of reservations and the total number of matches.
func (s *ReservationService) List(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, int, error) {
	if f.Status != "" && !models.IsReservationStatus(f.Status) {
		return nil, 0, invalid("status", "unknown reservation status")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, invalid("to", "must not be before from")
	}
	f.Normalize()
	return s.repo.ListReservations(ctx, f)
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

// Quote prices a prospective stay and reports whether the cabin is free.
// excludeID skips one reservation in the overlap check so an edit can be quoted.
func (s *ReservationService) Quote(ctx context.Context, cabinID int64, start, end models.Date, guests int, excludeID int64) (Quote, error) {
	cabin, err := s.cabins.GetCabin(ctx, cabinID)
	if err != nil {
		return Quote{}, err
	}
	q, err := s.pricer.QuoteStay(cabin, start, end, guests)
	if err != nil {
		return Quote{}, err
	}
	available, err := s.CheckAvailability(ctx, cabinID, start, end, excludeID)
	if err != nil {
		return Quote{}, err
	}
	q.Available = available && cabin.IsActive
	return q, nil
}

// CheckAvailability reports whether no blocking reservation of the cabin overlaps [start, end).
func (s *ReservationService) CheckAvailability(ctx context.Context, cabinID int64, start, end models.Date, excludeID int64) (bool, error) {
	if _, err := s.pricer.checkStay(start, end); err != nil {
		return false, err
	}
	n, err := s.repo.CountOverlapping(ctx, cabinID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Create books a stay. Price, overlap check and insert run in one transaction.
func (s *ReservationService) Create(ctx context.Context, r *models.Reservation, actor Actor) error {
	if err := s.validate(r); err != nil {
		return err
	}
	r.Status = models.StatusReserved
	if err := s.repo.CreateReservation(ctx, r, s.pricer.PriceFunc()); err != nil {
		return err
	}

	s.logger.Info().Int64("reservation_id", r.ID).Int64("cabin_id", r.CabinID).
		Str("start", r.StartDate.String()).Str("end", r.EndDate.String()).Msg("Reservation created")
	s.publishEvent(events.EventReservationCreated, r, "", actor)
	return nil
}

// Update changes cabin, dates, party size and notes of a reserved stay and re-quotes it.
func (s *ReservationService) Update(ctx context.Context, r *models.Reservation, actor Actor) error {
	if err := s.validate(r); err != nil {
		return err
	}
	if err := s.repo.UpdateReservation(ctx, r, s.pricer.PriceFunc()); err != nil {
		return err
	}
	s.publishEvent(events.EventReservationUpdated, r, "", actor)
	return nil
}

// Transition moves a reservation along its lifecycle if version is still current.
func (s *ReservationService) Transition(ctx context.Context, id, version int64, to string, actor Actor) (*models.Reservation, error) {
	if !models.IsReservationStatus(to) {
		return nil, invalid("status", "unknown reservation status")
	}

	current, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		return nil, database.ErrConcurrentModification
	}
	if !models.CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, to, ErrIllegalTransition)
	}

	if err := s.repo.UpdateReservationStatusWithVersion(ctx, id, version, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("reservation_id", id).Str("from", current.Status).Str("to", to).
		Str("by", actor.Username).Msg("Reservation status changed")
	s.publishEvent(events.EventReservationStatusChanged, updated, current.Status, actor)
	return updated, nil
}

// Cancel is the transition to cancelled; only reserved stays can be cancelled.
func (s *ReservationService) Cancel(ctx context.Context, id, version int64, actor Actor) (*models.Reservation, error) {
	return s.Transition(ctx, id, version, models.StatusCancelled, actor)
}

// Delete removes a reservation and its payments. It reports how many payments went with it.
func (s *ReservationService) Delete(ctx context.Context, id int64, actor Actor) (int64, error) {
	current, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return 0, err
	}
	removed, err := s.repo.DeleteReservation(ctx, id)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("reservation_id", id).Int64("payments_removed", removed).Msg("Reservation deleted")
	s.publishEvent(events.EventReservationDeleted, current, "", actor)
	return removed, nil
}

// Today collects arrivals, departures and in-house stays of day (today when zero).
func (s *ReservationService) Today(ctx context.Context, day models.Date) (*models.TodayBoard, error) {
	if day.IsZero() {
		day = s.pricer.Today()
	}
	arrivals, err := s.repo.Arrivals(ctx, day)
	if err != nil {
		return nil, err
	}
	departures, err := s.repo.Departures(ctx, day)
	if err != nil {
		return nil, err
	}
	inHouse, err := s.repo.InHouse(ctx, day)
	if err != nil {
		return nil, err
	}
	return &models.TodayBoard{Date: day, Arrivals: arrivals, Departures: departures, InHouse: inHouse}, nil
}

func (s *ReservationService) validate(r *models.Reservation) error {
	if r.CabinID <= 0 {
		return invalid("cabin_id", "is required")
	}
	if r.GuestID <= 0 {
		return invalid("guest_id", "is required")
	}
	if _, err := s.pricer.checkStay(r.StartDate, r.EndDate); err != nil {
		return err
	}
	if r.GuestsCount < 1 {
		return invalid("guests_count", "must be at least 1")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	// staff may record stays that already started
	return s.pricer.CheckWindow(r.StartDate, true)
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, previous string, actor Actor) {
	payload := events.NewReservationPayload(r)
	payload.PreviousStatus = previous
	payload.ChangedBy = actor.Username
	payload.ChangedByID = actor.ID
	publish(s.eventBus, s.logger, eventType, payload)
}
