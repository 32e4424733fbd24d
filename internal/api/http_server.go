package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
)

// ServiceCatalogue lists the bookable services.
type ServiceCatalogue interface {
	Services() []models.ServiceOffering
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Booking      domain.BookingService
	Appointments domain.AppointmentService
	Catalogue    ServiceCatalogue
	Location     *time.Location
	Checks       map[string]ReadinessCheck
}

// HTTPServer exposes the public booking endpoint and the owner's admin endpoints.
type HTTPServer struct {
	cfg     config.HTTPConfig
	deps    Deps
	server  *http.Server
	auth    *HTTPAuth
	limiter *rateLimiter
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.HTTPConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	auth := NewHTTPAuth(cfg.Auth)
	srv := &HTTPServer{
		cfg:     cfg,
		deps:    deps,
		auth:    auth,
		limiter: newRateLimiter(cfg.RateLimit, auth.header),
		logger:  logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler builds the full middleware chain around the routes.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/book", s.handleBook)
	mux.HandleFunc("GET /api/services", s.handleServices)

	mux.Handle("GET /api/appointments", s.auth.Require(permReadAppointments, http.HandlerFunc(s.handleListAppointments)))
	mux.Handle("GET /api/appointments/export", s.auth.Require(permReadAppointments, http.HandlerFunc(s.handleExport)))
	mux.Handle("DELETE /api/appointments/{id}", s.auth.Require(permWriteAppointments, http.HandlerFunc(s.handleCancelAppointment)))
	mux.Handle("DELETE /api/appointments/{$}", s.auth.Require(permWriteAppointments, http.HandlerFunc(s.handleCancelAppointment)))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", s.auth.header, requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)

	return requestIDMiddleware(loggingMiddleware(s.logger, cors(s.limiter.Wrap(mux))))
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
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends {"message": message}, the body shape the booking form expects.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"message": message})
}

// writeFailure adds the underlying error text as "error".
func writeFailure(w http.ResponseWriter, statusCode int, message string, err error) {
	writeJSON(w, statusCode, map[string]string{"message": message, "error": err.Error()})
}
