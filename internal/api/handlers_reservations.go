package api

import (
	"net/http"

	"cabinrent/internal/models"
)

type reservationRequest struct {
	CabinID     int64       `json:"cabin_id" validate:"required,gt=0"`
	GuestID     int64       `json:"guest_id" validate:"required,gt=0"`
	StartDate   models.Date `json:"start_date"`
	EndDate     models.Date `json:"end_date"`
	GuestsCount int         `json:"guests_count" validate:"required,min=1"`
	Notes       string      `json:"notes" validate:"max=2000"`
}

type updateReservationRequest struct {
	reservationRequest
	Version int64 `json:"version" validate:"required,min=1"`
}

func (req reservationRequest) reservation() *models.Reservation {
	return &models.Reservation{
		CabinID:     req.CabinID,
		GuestID:     req.GuestID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		GuestsCount: req.GuestsCount,
		Notes:       req.Notes,
	}
}

type transitionRequest struct {
	Status  string `json:"status" validate:"required,oneof=reserved check_in cleaning check_out cancelled"`
	Version int64  `json:"version" validate:"required,min=1"`
}

type versionRequest struct {
	Version int64 `json:"version" validate:"required,min=1"`
}

type reservationPage struct {
	Items   []*models.Reservation `json:"items"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f := models.ReservationFilter{
		Status:  q.str("status"),
		CabinID: q.id("cabin_id"),
		GuestID: q.id("guest_id"),
		From:    q.date("from"),
		To:      q.date("to"),
		Page:    q.number("page"),
		PerPage: q.number("per_page"),
	}
	if !q.ok(w) {
		return
	}
	f.Normalize()
	items, total, err := s.svc.Reservations.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationPage{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage})
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := req.reservation()
	if err := s.svc.Reservations.Create(r.Context(), res, actorFrom(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	cabinID := q.id("cabin_id")
	start := q.date("start_date")
	end := q.date("end_date")
	guests := q.number("guests")
	excludeID := q.id("exclude_id")
	if !q.ok(w) {
		return
	}
	if guests == 0 {
		guests = 1
	}
	quote, err := s.svc.Reservations.Quote(r.Context(), cabinID, start, end, guests, excludeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Reservations.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req updateReservationRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := req.reservation()
	res.ID = id
	res.Version = req.Version
	if err := s.svc.Reservations.Update(r.Context(), res, actorFrom(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	removed, err := s.svc.Reservations.Delete(r.Context(), id, actorFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "payments_removed": removed})
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.Transition(r.Context(), id, req.Version, req.Status, actorFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.Cancel(r.Context(), id, req.Version, actorFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	balance, err := s.svc.Payments.Balance(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type paymentRequest struct {
	ReservationID int64       `json:"reservation_id" validate:"omitempty,gt=0"`
	Amount        float64     `json:"amount" validate:"required,gt=0"`
	Method        string      `json:"method" validate:"required,oneof=cash card transfer"`
	Reference     string      `json:"reference" validate:"max=200"`
	PaidAt        models.Date `json:"paid_at"`
}

func (req paymentRequest) payment() *models.Payment {
	return &models.Payment{
		ReservationID: req.ReservationID,
		Amount:        req.Amount,
		Method:        req.Method,
		Reference:     req.Reference,
		PaidAt:        req.PaidAt,
	}
}

type paymentResponse struct {
	Payment *models.Payment `json:"payment"`
	Balance models.Balance  `json:"balance"`
}

func (s *HTTPServer) handleReservationPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if _, err := s.svc.Reservations.Get(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	payments, err := s.svc.Payments.List(r.Context(), models.PaymentFilter{ReservationID: id})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payments})
}

func (s *HTTPServer) handleCreateReservationPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.ReservationID = id
	s.createPayment(w, r, req.payment())
}

func (s *HTTPServer) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.createPayment(w, r, req.payment())
}

func (s *HTTPServer) createPayment(w http.ResponseWriter, r *http.Request, p *models.Payment) {
	if err := s.svc.Payments.Create(r.Context(), p, actorFrom(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	balance, err := s.svc.Payments.Balance(r.Context(), p.ReservationID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse{Payment: p, Balance: balance})
}

func (s *HTTPServer) handleListPayments(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f := models.PaymentFilter{
		ReservationID: q.id("reservation_id"),
		Method:        q.str("method"),
		From:          q.date("from"),
		To:            q.date("to"),
	}
	if !q.ok(w) {
		return
	}
	payments, err := s.svc.Payments.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payments})
}

func (s *HTTPServer) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Payments.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.svc.Payments.Delete(r.Context(), id, actorFrom(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
