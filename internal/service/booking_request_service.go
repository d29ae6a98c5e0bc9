package service

import (
	"context"
	"net/mail"
	"strings"

	"cabinrent/internal/database"
	"cabinrent/internal/domain"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/rs/zerolog"
)

type BookingRequestService struct {
	repo     domain.BookingRequestRepository
	cabins   domain.CabinRepository
	eventBus domain.EventPublisher
	pricer   *Pricer
	logger   *zerolog.Logger
}

func NewBookingRequestService(repo domain.BookingRequestRepository, cabins domain.CabinRepository, eventBus domain.EventPublisher, pricer *Pricer, logger *zerolog.Logger) *BookingRequestService {
	return &BookingRequestService{repo: repo, cabins: cabins, eventBus: eventBus, pricer: pricer, logger: nopLogger(logger)}
}

// Submit stores an inquiry from the public site. Availability is checked only on approval.
func (s *BookingRequestService) Submit(ctx context.Context, br *models.BookingRequest) error {
	br.FirstName = strings.TrimSpace(br.FirstName)
	br.LastName = strings.TrimSpace(br.LastName)
	br.Email = strings.ToLower(strings.TrimSpace(br.Email))
	br.Phone = strings.TrimSpace(br.Phone)
	br.Message = strings.TrimSpace(br.Message)

	if br.FirstName == "" || br.LastName == "" {
		return invalid("name", "first_name and last_name are required")
	}
	if br.Email == "" && br.Phone == "" {
		return invalid("contact", "email or phone is required")
	}
	if br.Email != "" {
		if _, err := mail.ParseAddress(br.Email); err != nil {
			return invalid("email", "is not a valid address")
		}
	}

	cabin, err := s.cabins.GetCabin(ctx, br.CabinID)
	if err != nil {
		return err
	}
	if !cabin.IsActive {
		return database.ErrCabinInactive
	}
	if _, err := s.pricer.QuoteStay(cabin, br.StartDate, br.EndDate, br.GuestsCount); err != nil {
		return err
	}
	if err := s.pricer.CheckWindow(br.StartDate, false); err != nil {
		return err
	}

	if err := s.repo.CreateBookingRequest(ctx, br); err != nil {
		return err
	}
	br.CabinName = cabin.Name

	s.logger.Info().Int64("request_id", br.ID).Int64("cabin_id", br.CabinID).Msg("Booking request received")
	s.publishEvent(events.EventBookingRequestCreated, br, 0, System)
	return nil
}

func (s *BookingRequestService) List(ctx context.Context, status string) ([]*models.BookingRequest, error) {
	switch status {
	case "", models.RequestPending, models.RequestApproved, models.RequestRejected:
	default:
		return nil, invalid("status", "must be pending, approved or rejected")
	}
	return s.repo.ListBookingRequests(ctx, status)
}

func (s *BookingRequestService) Get(ctx context.Context, id int64) (*models.BookingRequest, error) {
	return s.repo.GetBookingRequest(ctx, id)
}

// Approve books the requested stay through the regular reservation path and links it to the request.
func (s *BookingRequestService) Approve(ctx context.Context, id int64, note string, actor Actor) (*models.Reservation, error) {
	r, err := s.repo.ApproveBookingRequest(ctx, id, actor.ID, strings.TrimSpace(note), s.pricer.PriceFunc())
	if err != nil {
		return nil, err
	}
	br, err := s.repo.GetBookingRequest(ctx, id)
	if err == nil {
		s.publishEvent(events.EventBookingRequestApproved, br, r.ID, actor)
	}

	payload := events.NewReservationPayload(r)
	payload.ChangedBy = actor.Username
	payload.ChangedByID = actor.ID
	publish(s.eventBus, s.logger, events.EventReservationCreated, payload)

	s.logger.Info().Int64("request_id", id).Int64("reservation_id", r.ID).Str("by", actor.Username).Msg("Booking request approved")
	return r, nil
}

func (s *BookingRequestService) Reject(ctx context.Context, id int64, note string, actor Actor) (*models.BookingRequest, error) {
	br, err := s.repo.RejectBookingRequest(ctx, id, actor.ID, strings.TrimSpace(note))
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventBookingRequestRejected, br, 0, actor)
	return br, nil
}

func (s *BookingRequestService) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteBookingRequest(ctx, id)
}

func (s *BookingRequestService) publishEvent(eventType string, br *models.BookingRequest, reservationID int64, actor Actor) {
	publish(s.eventBus, s.logger, eventType, events.BookingRequestEventPayload{
		RequestID:     br.ID,
		CabinID:       br.CabinID,
		Status:        br.Status,
		StartDate:     br.StartDate,
		EndDate:       br.EndDate,
		ReservationID: reservationID,
		ChangedBy:     actor.Username,
	})
}
