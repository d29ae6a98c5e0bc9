package api

import (
	"net/http"

	"cabinrent/internal/models"
)

type cabinRequest struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Description   string  `json:"description" validate:"max=2000"`
	Capacity      int     `json:"capacity" validate:"required,min=1,max=100"`
	PricePerNight float64 `json:"price_per_night" validate:"required,gt=0"`
	IsActive      *bool   `json:"is_active"`
}

func (req cabinRequest) apply(c *models.Cabin) {
	c.Name = req.Name
	c.Description = req.Description
	c.Capacity = req.Capacity
	c.PricePerNight = req.PricePerNight
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
}

func (s *HTTPServer) handleListCabins(w http.ResponseWriter, r *http.Request) {
	cabins, err := s.svc.Cabins.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cabins})
}

func (s *HTTPServer) handlePublicCabins(w http.ResponseWriter, r *http.Request) {
	cabins, err := s.svc.Cabins.List(r.Context(), true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cabins})
}

func (s *HTTPServer) handleCreateCabin(w http.ResponseWriter, r *http.Request) {
	var req cabinRequest
	if !s.decode(w, r, &req) {
		return
	}
	cabin := &models.Cabin{IsActive: true}
	req.apply(cabin)
	if err := s.svc.Cabins.Create(r.Context(), cabin); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cabin)
}

func (s *HTTPServer) handleGetCabin(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	cabin, err := s.svc.Cabins.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cabin)
}

func (s *HTTPServer) handleUpdateCabin(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req cabinRequest
	if !s.decode(w, r, &req) {
		return
	}
	cabin, err := s.svc.Cabins.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req.apply(cabin)
	if err := s.svc.Cabins.Update(r.Context(), cabin); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cabin)
}

func (s *HTTPServer) handleDeleteCabin(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.svc.Cabins.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCabinCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	from := q.date("from")
	days := q.number("days")
	if !q.ok(w) {
		return
	}
	calendar, err := s.svc.Cabins.Calendar(r.Context(), id, from, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cabin_id": id, "days": calendar})
}

func (s *HTTPServer) handleSearchAvailability(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	start := q.date("start_date")
	end := q.date("end_date")
	guests := q.number("guests")
	if !q.ok(w) {
		return
	}
	cabins, err := s.svc.Cabins.Search(r.Context(), start, end, guests)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cabins})
}

type guestRequest struct {
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Email      string `json:"email" validate:"omitempty,email,max=254"`
	Phone      string `json:"phone" validate:"max=50"`
	DocumentID string `json:"document_id" validate:"max=100"`
	Notes      string `json:"notes" validate:"max=2000"`
}

func (req guestRequest) apply(g *models.Guest) {
	g.FirstName = req.FirstName
	g.LastName = req.LastName
	g.Email = req.Email
	g.Phone = req.Phone
	g.DocumentID = req.DocumentID
	g.Notes = req.Notes
}

func (s *HTTPServer) handleListGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := s.svc.Guests.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": guests})
}

func (s *HTTPServer) handleCreateGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if !s.decode(w, r, &req) {
		return
	}
	guest := &models.Guest{}
	req.apply(guest)
	if err := s.svc.Guests.Create(r.Context(), guest); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, guest)
}

func (s *HTTPServer) handleGetGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	guest, err := s.svc.Guests.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guest)
}

func (s *HTTPServer) handleUpdateGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req guestRequest
	if !s.decode(w, r, &req) {
		return
	}
	guest, err := s.svc.Guests.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req.apply(guest)
	if err := s.svc.Guests.Update(r.Context(), guest); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guest)
}

func (s *HTTPServer) handleDeleteGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.svc.Guests.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleGuestReservations(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	f := models.ReservationFilter{Page: q.number("page"), PerPage: q.number("per_page")}
	if !q.ok(w) {
		return
	}
	f.Normalize()
	items, total, err := s.svc.Guests.Reservations(r.Context(), id, f.Page, f.PerPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationPage{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage})
}
