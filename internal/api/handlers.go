package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/export"
	"salonbook/internal/models"
)

const (
	msgBookingSuccess   = "Booking successful!"
	msgBookingRequired  = "Name, service, date, and time are required."
	msgBookingInvalid   = "Invalid booking request."
	msgSlotUnavailable  = "Sorry, this time slot is already booked."
	msgSlotBusy         = "This time slot is being booked right now. Please try again."
	msgBookingFailed    = "Booking failed"
	msgInvalidBody      = "Invalid request body."
	msgDateRequired     = "Date query parameter is required (YYYY-MM-DD)."
	msgFetchFailed      = "Failed to fetch appointments."
	msgEventIDRequired  = "Event ID is required."
	msgDeleteSuccess    = "Appointment deleted successfully."
	msgDeleteFailed     = "Failed to delete appointment."
	msgExportFailed     = "Failed to export appointments."
	maxBookingBodyBytes = 1 << 20
)

type bookResponse struct {
	Message  string `json:"message"`
	ID       string `json:"id"`
	Notified bool   `json:"notified"`
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookingBodyBytes))
	// An empty body is an empty form: Book reports the missing fields.
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	conf, err := s.deps.Booking.Book(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, bookResponse{Message: msgBookingSuccess, ID: conf.EventID, Notified: conf.Notified})
	case errors.Is(err, domain.ErrMissingFields):
		writeError(w, http.StatusBadRequest, msgBookingRequired)
	case errors.Is(err, domain.ErrSlotUnavailable):
		writeError(w, http.StatusBadRequest, msgSlotUnavailable)
	case errors.Is(err, domain.ErrInvalidRequest):
		writeFailure(w, http.StatusBadRequest, msgBookingInvalid, err)
	case errors.Is(err, domain.ErrSlotBusy):
		writeError(w, http.StatusConflict, msgSlotBusy)
	default:
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Booking failed")
		writeFailure(w, http.StatusInternalServerError, msgBookingFailed, err)
	}
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, _ *http.Request) {
	var services []models.ServiceOffering
	if s.deps.Catalogue != nil {
		services = s.deps.Catalogue.Services()
	}
	if services == nil {
		services = []models.ServiceOffering{}
	}
	sort.SliceStable(services, func(i, j int) bool {
		return services[i].SortOrder < services[j].SortOrder
	})
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, ok := s.listDay(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	appts, ok := s.listDay(w, r)
	if !ok {
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	var buf bytes.Buffer
	if err := export.WriteDay(&buf, date, appts, s.deps.Location); err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("Export failed")
		writeError(w, http.StatusInternalServerError, msgExportFailed)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(date)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) listDay(w http.ResponseWriter, r *http.Request) ([]models.Appointment, bool) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, msgDateRequired)
		return nil, false
	}

	appts, err := s.deps.Appointments.List(r.Context(), date)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, msgDateRequired)
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, msgFetchFailed)
		return nil, false
	}
	return appts, true
}

func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, msgEventIDRequired)
		return
	}

	err := s.deps.Appointments.Cancel(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": msgDeleteSuccess})
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, msgEventIDRequired)
	default:
		writeError(w, http.StatusInternalServerError, msgDeleteFailed)
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": results})
}
