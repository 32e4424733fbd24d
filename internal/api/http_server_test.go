package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBooking struct {
	conf *models.Confirmation
	err  error
	got  models.BookingRequest
}

func (f *fakeBooking) Book(_ context.Context, req models.BookingRequest) (*models.Confirmation, error) {
	f.got = req
	return f.conf, f.err
}

type fakeAppointments struct {
	appts     []models.Appointment
	listErr   error
	cancelErr error
	listed    string
	canceled  string
}

func (f *fakeAppointments) List(_ context.Context, date string) ([]models.Appointment, error) {
	f.listed = date
	return f.appts, f.listErr
}

func (f *fakeAppointments) Cancel(_ context.Context, eventID string) error {
	f.canceled = eventID
	return f.cancelErr
}

type fakeCatalogue []models.ServiceOffering

func (c fakeCatalogue) Services() []models.ServiceOffering { return c }

func newTestServer(cfg config.HTTPConfig, deps Deps) http.Handler {
	if deps.Booking == nil {
		deps.Booking = &fakeBooking{}
	}
	if deps.Appointments == nil {
		deps.Appointments = &fakeAppointments{}
	}
	return NewHTTPServer(cfg, deps, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const validBooking = `{"name":"Asha","phone":"+919876543210","service":"Haircut","date":"2025-07-01","time":"10:00 AM"}`

func TestBookSuccess(t *testing.T) {
	booking := &fakeBooking{conf: &models.Confirmation{EventID: "ev1", Notified: true}}
	h := newTestServer(config.HTTPConfig{}, Deps{Booking: booking})

	rec := do(t, h, http.MethodPost, "/api/book", validBooking, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Booking successful!", body["message"])
	assert.Equal(t, "ev1", body["id"])
	assert.Equal(t, true, body["notified"])
	assert.Equal(t, "Asha", booking.got.Name)
	assert.Equal(t, "10:00 AM", booking.got.Time)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestBookErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"invalid json", `{"name":`, nil, http.StatusBadRequest, "Invalid request body."},
		{"missing fields", validBooking, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrMissingFields), http.StatusBadRequest, "Name, service, date, and time are required."},
		{"bad input", validBooking, fmt.Errorf("%w: bad time", domain.ErrInvalidRequest), http.StatusBadRequest, "Invalid booking request."},
		{"overlap", validBooking, domain.ErrSlotUnavailable, http.StatusBadRequest, "Sorry, this time slot is already booked."},
		{"busy", validBooking, domain.ErrSlotBusy, http.StatusConflict, msgSlotBusy},
		{"provider", validBooking, fmt.Errorf("%w: timeout", domain.ErrProvider), http.StatusInternalServerError, "Booking failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(config.HTTPConfig{}, Deps{Booking: &fakeBooking{err: tt.err}})

			rec := do(t, h, http.MethodPost, "/api/book", tt.body, nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeBody(t, rec)["message"])
		})
	}
}

func TestBookEmptyBodyReportsRequiredFields(t *testing.T) {
	booking := service.NewBookingService(nil, nil, nil, nil, nil, service.BookingOptions{}, nil)
	h := newTestServer(config.HTTPConfig{}, Deps{Booking: booking})

	for _, body := range []string{"", "   "} {
		rec := do(t, h, http.MethodPost, "/api/book", body, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Name, service, date, and time are required.", decodeBody(t, rec)["message"])
	}

	rec := do(t, h, http.MethodPost, "/api/book", `{"name":"Asha"`, nil)
	assert.Equal(t, "Invalid request body.", decodeBody(t, rec)["message"])
}

func TestBookFailureIncludesError(t *testing.T) {
	h := newTestServer(config.HTTPConfig{}, Deps{Booking: &fakeBooking{err: errors.New("calendar down")}})

	rec := do(t, h, http.MethodPost, "/api/book", validBooking, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "calendar down", decodeBody(t, rec)["error"])
}

func TestBookWrongMethod(t *testing.T) {
	h := newTestServer(config.HTTPConfig{}, Deps{})

	rec := do(t, h, http.MethodGet, "/api/book", "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListAppointments(t *testing.T) {
	start := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	appts := &fakeAppointments{appts: []models.Appointment{{
		ID:        "ev1",
		Summary:   "Haircut for Asha",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}}}
	h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})

	rec := do(t, h, http.MethodGet, "/api/appointments?date=2025-07-01", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "ev1", got[0].ID)
	assert.True(t, got[0].StartTime.Equal(start))
	assert.Equal(t, "2025-07-01", appts.listed)
}

func TestListAppointmentsEmptyDay(t *testing.T) {
	h := newTestServer(config.HTTPConfig{}, Deps{Appointments: &fakeAppointments{appts: []models.Appointment{}}})

	rec := do(t, h, http.MethodGet, "/api/appointments?date=2025-07-01", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListAppointmentsErrors(t *testing.T) {
	t.Run("missing date", func(t *testing.T) {
		h := newTestServer(config.HTTPConfig{}, Deps{})
		rec := do(t, h, http.MethodGet, "/api/appointments", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Date query parameter is required (YYYY-MM-DD).", decodeBody(t, rec)["message"])
	})

	t.Run("malformed date", func(t *testing.T) {
		appts := &fakeAppointments{listErr: fmt.Errorf("%w: bad date", domain.ErrInvalidRequest)}
		h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})
		rec := do(t, h, http.MethodGet, "/api/appointments?date=07/01/2025", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		appts := &fakeAppointments{listErr: fmt.Errorf("%w: boom", domain.ErrProvider)}
		h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})
		rec := do(t, h, http.MethodGet, "/api/appointments?date=2025-07-01", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to fetch appointments.", decodeBody(t, rec)["message"])
	})
}

func TestCancelAppointment(t *testing.T) {
	appts := &fakeAppointments{}
	h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})

	rec := do(t, h, http.MethodDelete, "/api/appointments/ev42", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Appointment deleted successfully.", decodeBody(t, rec)["message"])
	assert.Equal(t, "ev42", appts.canceled)
}

func TestCancelAppointmentErrors(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		appts := &fakeAppointments{}
		h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})
		rec := do(t, h, http.MethodDelete, "/api/appointments/", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Event ID is required.", decodeBody(t, rec)["message"])
		assert.Empty(t, appts.canceled)
	})

	t.Run("nested path", func(t *testing.T) {
		appts := &fakeAppointments{}
		h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})
		rec := do(t, h, http.MethodDelete, "/api/appointments/a/b", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, appts.canceled)
	})

	t.Run("provider failure", func(t *testing.T) {
		appts := &fakeAppointments{cancelErr: fmt.Errorf("%w: not found", domain.ErrCancelFailed)}
		h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})
		rec := do(t, h, http.MethodDelete, "/api/appointments/missing", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to delete appointment.", decodeBody(t, rec)["message"])
	})
}

func TestExportAppointments(t *testing.T) {
	start := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	appts := &fakeAppointments{appts: []models.Appointment{{
		ID:        "ev1",
		Summary:   "Haircut for Asha",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Customer:  "Asha",
		Service:   "Haircut",
		Phone:     "+919876543210",
	}}}
	h := newTestServer(config.HTTPConfig{}, Deps{Appointments: appts})

	rec := do(t, h, http.MethodGet, "/api/appointments/export?date=2025-07-01", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "appointments_2025-07-01.xlsx")
	// xlsx files are zip archives.
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
}

func TestServicesSorted(t *testing.T) {
	catalogue := fakeCatalogue{{Name: "Facial", SortOrder: 2}, {Name: "Haircut", SortOrder: 1}}
	h := newTestServer(config.HTTPConfig{}, Deps{Catalogue: catalogue})

	rec := do(t, h, http.MethodGet, "/api/services", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"services":[{"name":"Haircut","sort_order":1},{"name":"Facial","sort_order":2}]}`, rec.Body.String())
}

func TestServicesWithoutCatalogue(t *testing.T) {
	h := newTestServer(config.HTTPConfig{}, Deps{})

	rec := do(t, h, http.MethodGet, "/api/services", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"services":[]}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	checks := map[string]ReadinessCheck{
		"calendar": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}
	h := newTestServer(config.HTTPConfig{}, Deps{Checks: checks})

	rec := do(t, h, http.MethodGet, "/readyz", "", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, map[string]any{"calendar": "ok", "redis": "connection refused"}, body["checks"])

	rec = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestServer(config.HTTPConfig{}, Deps{})

	rec := do(t, h, http.MethodGet, "/healthz", "", map[string]string{requestIDHeader: "req-123"})

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestCORSAllowedOrigin(t *testing.T) {
	cfg := config.HTTPConfig{CORSOrigins: []string{"https://salon.example"}}
	h := newTestServer(cfg, Deps{Booking: &fakeBooking{conf: &models.Confirmation{EventID: "ev1"}}})

	rec := do(t, h, http.MethodPost, "/api/book", validBooking, map[string]string{"Origin": "https://salon.example"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://salon.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := config.HTTPConfig{RateLimit: config.HTTPRateLimitConfig{RPS: 0.001, Burst: 1}}
	h := newTestServer(cfg, Deps{})

	first := do(t, h, http.MethodGet, "/healthz", "", nil)
	second := do(t, h, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
