package api

import (
	"net/http"

	"cabinrent/internal/models"
)

type bookingRequestBody struct {
	CabinID     int64       `json:"cabin_id" validate:"required,gt=0"`
	FirstName   string      `json:"first_name" validate:"required,max=100"`
	LastName    string      `json:"last_name" validate:"required,max=100"`
	Email       string      `json:"email" validate:"omitempty,email,max=254"`
	Phone       string      `json:"phone" validate:"max=50"`
	StartDate   models.Date `json:"start_date"`
	EndDate     models.Date `json:"end_date"`
	GuestsCount int         `json:"guests_count" validate:"required,min=1"`
	Message     string      `json:"message" validate:"max=2000"`
}

type decisionRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// publicRequestResponse is what an anonymous visitor gets back after submitting.
type publicRequestResponse struct {
	ID        int64       `json:"id"`
	Status    string      `json:"status"`
	CabinName string      `json:"cabin_name"`
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
}

func (s *HTTPServer) handleSubmitBookingRequest(w http.ResponseWriter, r *http.Request) {
	var req bookingRequestBody
	if !s.decode(w, r, &req) {
		return
	}
	br := &models.BookingRequest{
		CabinID:     req.CabinID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		GuestsCount: req.GuestsCount,
		Message:     req.Message,
	}
	if err := s.svc.BookingRequests.Submit(r.Context(), br); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, publicRequestResponse{
		ID:        br.ID,
		Status:    br.Status,
		CabinName: br.CabinName,
		StartDate: br.StartDate,
		EndDate:   br.EndDate,
	})
}

func (s *HTTPServer) handleListBookingRequests(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.BookingRequests.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleGetBookingRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	br, err := s.svc.BookingRequests.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, br)
}

func (s *HTTPServer) handleApproveBookingRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	res, err := s.svc.BookingRequests.Approve(r.Context(), id, req.Note, actorFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleRejectBookingRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	br, err := s.svc.BookingRequests.Reject(r.Context(), id, req.Note, actorFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, br)
}

func (s *HTTPServer) handleDeleteBookingRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.svc.BookingRequests.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
