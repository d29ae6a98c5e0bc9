package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cabinrent/internal/config"
	"cabinrent/internal/events"
	"cabinrent/internal/logging"
	"cabinrent/internal/report"
	"cabinrent/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const prefix = "/api/v1"

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth            *service.AuthService
	Users           *service.UserService
	Cabins          *service.CabinService
	Guests          *service.GuestService
	Reservations    *service.ReservationService
	Payments        *service.PaymentService
	BookingRequests *service.BookingRequestService
	Stats           *service.StatsService
	Reports         *report.Generator
	Bus             *events.EventBus
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the JSON API, report downloads and the dashboard event stream.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	validate *validator.Validate
	limiter  *rateLimiter
	hub      *Hub
	logger   *zerolog.Logger
	handler  http.Handler
	server   *http.Server
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	log := logging.Component(logger, "http")
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		validate: newValidator(),
		limiter:  newRateLimiter(cfg.RateLimit),
		hub:      NewHub(cfg.HTTP.AllowedOrigins, log),
		logger:   log,
	}
	if svc.Bus != nil {
		srv.hub.Subscribe(svc.Bus)
	}

	mux := http.NewServeMux()
	srv.routes(mux)
	srv.handler = chain(mux, srv.requestLogger, srv.recoverer, srv.cors, srv.rateLimit)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Hub() *Hub {
	return s.hub
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST "+prefix+"/auth/login", s.handleLogin)
	mux.Handle("GET "+prefix+"/auth/me", s.staff(s.handleMe))

	mux.HandleFunc("GET "+prefix+"/public/cabins", s.handlePublicCabins)
	mux.HandleFunc("POST "+prefix+"/public/booking-requests", s.handleSubmitBookingRequest)

	mux.Handle("GET "+prefix+"/cabins", s.staff(s.handleListCabins))
	mux.Handle("POST "+prefix+"/cabins", s.admin(s.handleCreateCabin))
	mux.Handle("GET "+prefix+"/cabins/{id}", s.staff(s.handleGetCabin))
	mux.Handle("PUT "+prefix+"/cabins/{id}", s.admin(s.handleUpdateCabin))
	mux.Handle("DELETE "+prefix+"/cabins/{id}", s.admin(s.handleDeleteCabin))
	mux.Handle("GET "+prefix+"/cabins/{id}/availability", s.staff(s.handleCabinCalendar))
	mux.Handle("GET "+prefix+"/availability", s.staff(s.handleSearchAvailability))

	mux.Handle("GET "+prefix+"/guests", s.staff(s.handleListGuests))
	mux.Handle("POST "+prefix+"/guests", s.staff(s.handleCreateGuest))
	mux.Handle("GET "+prefix+"/guests/{id}", s.staff(s.handleGetGuest))
	mux.Handle("PUT "+prefix+"/guests/{id}", s.staff(s.handleUpdateGuest))
	mux.Handle("DELETE "+prefix+"/guests/{id}", s.admin(s.handleDeleteGuest))
	mux.Handle("GET "+prefix+"/guests/{id}/reservations", s.staff(s.handleGuestReservations))

	mux.Handle("GET "+prefix+"/reservations", s.staff(s.handleListReservations))
	mux.Handle("POST "+prefix+"/reservations", s.staff(s.handleCreateReservation))
	mux.Handle("GET "+prefix+"/reservations/quote", s.staff(s.handleQuote))
	mux.Handle("GET "+prefix+"/reservations/{id}", s.staff(s.handleGetReservation))
	mux.Handle("PUT "+prefix+"/reservations/{id}", s.staff(s.handleUpdateReservation))
	mux.Handle("DELETE "+prefix+"/reservations/{id}", s.admin(s.handleDeleteReservation))
	mux.Handle("POST "+prefix+"/reservations/{id}/status", s.staff(s.handleTransition))
	mux.Handle("POST "+prefix+"/reservations/{id}/cancel", s.staff(s.handleCancel))
	mux.Handle("GET "+prefix+"/reservations/{id}/balance", s.staff(s.handleBalance))
	mux.Handle("GET "+prefix+"/reservations/{id}/payments", s.staff(s.handleReservationPayments))
	mux.Handle("POST "+prefix+"/reservations/{id}/payments", s.staff(s.handleCreateReservationPayment))

	mux.Handle("GET "+prefix+"/payments", s.staff(s.handleListPayments))
	mux.Handle("POST "+prefix+"/payments", s.staff(s.handleCreatePayment))
	mux.Handle("GET "+prefix+"/payments/{id}", s.staff(s.handleGetPayment))
	mux.Handle("DELETE "+prefix+"/payments/{id}", s.admin(s.handleDeletePayment))

	mux.Handle("GET "+prefix+"/users", s.admin(s.handleListUsers))
	mux.Handle("POST "+prefix+"/users", s.admin(s.handleCreateUser))
	mux.Handle("GET "+prefix+"/users/{id}", s.admin(s.handleGetUser))
	mux.Handle("PUT "+prefix+"/users/{id}", s.admin(s.handleUpdateUser))
	mux.Handle("DELETE "+prefix+"/users/{id}", s.admin(s.handleDeleteUser))

	mux.Handle("GET "+prefix+"/booking-requests", s.staff(s.handleListBookingRequests))
	mux.Handle("GET "+prefix+"/booking-requests/{id}", s.staff(s.handleGetBookingRequest))
	mux.Handle("POST "+prefix+"/booking-requests/{id}/approve", s.staff(s.handleApproveBookingRequest))
	mux.Handle("POST "+prefix+"/booking-requests/{id}/reject", s.staff(s.handleRejectBookingRequest))
	mux.Handle("DELETE "+prefix+"/booking-requests/{id}", s.admin(s.handleDeleteBookingRequest))

	mux.Handle("GET "+prefix+"/dashboard/stats", s.staff(s.handleDashboardStats))
	mux.Handle("GET "+prefix+"/dashboard/today", s.staff(s.handleToday))

	mux.Handle("GET "+prefix+"/reports/reservations.xlsx", s.staff(s.handleReservationsReport))
	mux.Handle("GET "+prefix+"/reports/payments.xlsx", s.staff(s.handlePaymentsReport))
	mux.Handle("GET "+prefix+"/reports/reservations/{id}/statement.xlsx", s.staff(s.handleStatement))

	mux.Handle("GET "+prefix+"/events/ws", s.staff(s.hub.ServeWS))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
