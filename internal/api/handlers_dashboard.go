package api

import (
	"fmt"
	"net/http"
	"strconv"

	"cabinrent/internal/report"
)

func (s *HTTPServer) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleToday(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	day := q.date("date")
	if !q.ok(w) {
		return
	}
	board, err := s.svc.Reservations.Today(r.Context(), day)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *HTTPServer) handleReservationsReport(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	from, to := q.date("from"), q.date("to")
	if !q.ok(w) {
		return
	}
	data, err := s.svc.Reports.Reservations(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeWorkbook(w, report.ReservationsFileName(from, to), data)
}

func (s *HTTPServer) handlePaymentsReport(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	from, to := q.date("from"), q.date("to")
	if !q.ok(w) {
		return
	}
	data, err := s.svc.Reports.Payments(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeWorkbook(w, report.PaymentsFileName(from, to), data)
}

func (s *HTTPServer) handleStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	data, err := s.svc.Reports.Statement(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeWorkbook(w, report.StatementFileName(id), data)
}

func writeWorkbook(w http.ResponseWriter, name string, data []byte) {
	h := w.Header()
	h.Set("Content-Type", report.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
