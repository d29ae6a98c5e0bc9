package service

import (
	"context"
	"strings"

	"cabinrent/internal/domain"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/rs/zerolog"
)

type PaymentService struct {
	repo     domain.PaymentRepository
	eventBus domain.EventPublisher
	pricer   *Pricer
	logger   *zerolog.Logger
}

func NewPaymentService(repo domain.PaymentRepository, eventBus domain.EventPublisher, pricer *Pricer, logger *zerolog.Logger) *PaymentService {
	return &PaymentService{repo: repo, eventBus: eventBus, pricer: pricer, logger: nopLogger(logger)}
}

func (s *PaymentService) List(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error) {
	if f.Method != "" && !models.IsPaymentMethod(f.Method) {
		return nil, invalid("method", "must be cash, card or transfer")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, invalid("to", "must not be before from")
	}
	return s.repo.ListPayments(ctx, f)
}

func (s *PaymentService) Get(ctx context.Context, id int64) (*models.Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// Create records a payment. The stored status says whether it settled the reservation.
func (s *PaymentService) Create(ctx context.Context, p *models.Payment, actor Actor) error {
	if p.ReservationID <= 0 {
		return invalid("reservation_id", "is required")
	}
	p.Amount = models.RoundMoney(p.Amount)
	if p.Amount <= 0 {
		return invalid("amount", "must be at least 0.01")
	}
	p.Method = strings.ToLower(strings.TrimSpace(p.Method))
	if !models.IsPaymentMethod(p.Method) {
		return invalid("method", "must be cash, card or transfer")
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = s.pricer.Today()
	}
	p.Reference = strings.TrimSpace(p.Reference)

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return err
	}

	s.logger.Info().Int64("payment_id", p.ID).Int64("reservation_id", p.ReservationID).
		Float64("amount", p.Amount).Str("status", p.Status).Msg("Payment recorded")
	publish(s.eventBus, s.logger, events.EventPaymentCreated, paymentPayload(p, actor))
	return nil
}

func (s *PaymentService) Delete(ctx context.Context, id int64, actor Actor) error {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePayment(ctx, id); err != nil {
		return err
	}
	publish(s.eventBus, s.logger, events.EventPaymentDeleted, paymentPayload(p, actor))
	return nil
}

func (s *PaymentService) Balance(ctx context.Context, reservationID int64) (models.Balance, error) {
	return s.repo.Balance(ctx, reservationID)
}

func paymentPayload(p *models.Payment, actor Actor) events.PaymentEventPayload {
	return events.PaymentEventPayload{
		PaymentID:     p.ID,
		ReservationID: p.ReservationID,
		Amount:        p.Amount,
		Method:        p.Method,
		Status:        p.Status,
		ChangedBy:     actor.Username,
	}
}
