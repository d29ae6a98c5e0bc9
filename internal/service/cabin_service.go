package service

import (
	"context"
	"strings"

	"cabinrent/internal/domain"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/rs/zerolog"
)

const (
	defaultCalendarDays = 30
	maxCalendarDays     = 366
)

type CabinService struct {
	repo     domain.CabinRepository
	eventBus domain.EventPublisher
	pricer   *Pricer
	logger   *zerolog.Logger
}

func NewCabinService(repo domain.CabinRepository, eventBus domain.EventPublisher, pricer *Pricer, logger *zerolog.Logger) *CabinService {
	return &CabinService{repo: repo, eventBus: eventBus, pricer: pricer, logger: nopLogger(logger)}
}

func (s *CabinService) List(ctx context.Context, activeOnly bool) ([]*models.Cabin, error) {
	return s.repo.ListCabins(ctx, activeOnly)
}

func (s *CabinService) Get(ctx context.Context, id int64) (*models.Cabin, error) {
	return s.repo.GetCabin(ctx, id)
}

func (s *CabinService) Create(ctx context.Context, cabin *models.Cabin) error {
	if err := validateCabin(cabin); err != nil {
		return err
	}
	if err := s.repo.CreateCabin(ctx, cabin); err != nil {
		return err
	}
	s.logger.Info().Int64("cabin_id", cabin.ID).Str("name", cabin.Name).Msg("Cabin created")
	publish(s.eventBus, s.logger, events.EventCabinChanged, events.EntityEventPayload{ID: cabin.ID, Action: "created"})
	return nil
}

func (s *CabinService) Update(ctx context.Context, cabin *models.Cabin) error {
	if err := validateCabin(cabin); err != nil {
		return err
	}
	if err := s.repo.UpdateCabin(ctx, cabin); err != nil {
		return err
	}
	publish(s.eventBus, s.logger, events.EventCabinChanged, events.EntityEventPayload{ID: cabin.ID, Action: "updated"})
	return nil
}

// Delete removes a cabin that no reservation or booking request refers to.
func (s *CabinService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCabin(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("cabin_id", id).Msg("Cabin deleted")
	publish(s.eventBus, s.logger, events.EventCabinChanged, events.EntityEventPayload{ID: id, Action: "deleted"})
	return nil
}

// Calendar returns one availability entry per day starting at from.
func (s *CabinService) Calendar(ctx context.Context, cabinID int64, from models.Date, days int) ([]*models.Availability, error) {
	if days <= 0 {
		days = defaultCalendarDays
	}
	if days > maxCalendarDays {
		return nil, invalid("days", "must not exceed 366")
	}
	if from.IsZero() {
		from = s.pricer.Today()
	}
	if _, err := s.repo.GetCabin(ctx, cabinID); err != nil {
		return nil, err
	}
	return s.repo.CabinCalendar(ctx, cabinID, from, days)
}

// Search lists active cabins that can host guests for the whole stay.
func (s *CabinService) Search(ctx context.Context, start, end models.Date, guests int) ([]*models.Cabin, error) {
	if _, err := s.pricer.checkStay(start, end); err != nil {
		return nil, err
	}
	if guests < 1 {
		guests = 1
	}
	return s.repo.AvailableCabins(ctx, start, end, guests)
}

func validateCabin(c *models.Cabin) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalid("name", "is required")
	}
	if c.Capacity < 1 {
		return invalid("capacity", "must be at least 1")
	}
	if c.PricePerNight <= 0 {
		return invalid("price_per_night", "must be positive")
	}
	c.PricePerNight = models.RoundMoney(c.PricePerNight)
	return nil
}
