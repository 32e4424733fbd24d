package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
)

// ErrMissingDate is wrapped with ErrInvalidRequest when List gets no date.
var ErrMissingDate = errors.New("date is required")

// ErrMissingEventID is wrapped with ErrInvalidRequest when Cancel gets no id.
var ErrMissingEventID = errors.New("event id is required")

type AppointmentService struct {
	calendar domain.CalendarProvider
	eventBus domain.EventPublisher
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewAppointmentService(calendar domain.CalendarProvider, eventBus domain.EventPublisher, loc *time.Location, logger *zerolog.Logger) *AppointmentService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AppointmentService{calendar: calendar, eventBus: eventBus, loc: loc, logger: logger}
}

// List returns the appointments of one day, ordered by start time.
func (s *AppointmentService) List(ctx context.Context, date string) ([]models.Appointment, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, ErrMissingDate)
	}

	from, to, err := schedule.DayWindow(date, s.loc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	appts, err := s.calendar.ListEvents(ctx, from, to)
	observeCalendar("list", start)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("Failed to list appointments")
		return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	return appts, nil
}

// Cancel deletes the event. The provider decides whether it exists; a
// missing event is a failure like any other.
func (s *AppointmentService) Cancel(ctx context.Context, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, ErrMissingEventID)
	}

	start := time.Now()
	err := s.calendar.DeleteEvent(ctx, eventID)
	observeCalendar("delete", start)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("Failed to cancel appointment")
		return fmt.Errorf("%w: %w", domain.ErrCancelFailed, err)
	}

	metrics.IncBooking(metrics.OutcomeCanceled)
	s.logger.Info().Str("event_id", eventID).Msg("Appointment canceled")

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventBookingCanceled, events.AppointmentEventPayload{EventID: eventID}); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish event")
		}
	}
	return nil
}
