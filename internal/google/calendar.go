package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"salonbook/internal/bookingfmt"
	"salonbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarService reads and writes booking events in one Google calendar.
type CalendarService struct {
	service    *calendar.Service
	calendarID string
	loc        *time.Location
}

// NewCalendarService authenticates with a service account key file. The
// calendar must be shared with the service account's client_email.
func NewCalendarService(ctx context.Context, credentialsFile, calendarID string, loc *time.Location) (*CalendarService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	return NewCalendarServiceFrom(srv, calendarID, loc), nil
}

// NewCalendarServiceFrom wraps an already configured API client.
func NewCalendarServiceFrom(srv *calendar.Service, calendarID string, loc *time.Location) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &CalendarService{service: srv, calendarID: calendarID, loc: loc}
}

// TestConnection checks that the calendar is reachable with our credentials.
func (s *CalendarService) TestConnection(ctx context.Context) error {
	if _, err := s.service.Calendars.Get(s.calendarID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email the calendar must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// ListEvents returns single (expanded) events in [timeMin, timeMax) ordered by start.
func (s *CalendarService) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]models.Appointment, error) {
	call := s.service.Events.List(s.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	var out []models.Appointment
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			appt, err := s.toAppointment(item)
			if err != nil {
				return err
			}
			out = append(out, appt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// InsertEvent creates the event and returns it as stored by the provider.
func (s *CalendarService) InsertEvent(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	event := &calendar.Event{
		Summary:     appt.Summary,
		Description: appt.Description,
		Start: &calendar.EventDateTime{
			DateTime: appt.StartTime.In(s.loc).Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: appt.EndTime.In(s.loc).Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
	}

	created, err := s.service.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	stored, err := s.toAppointment(created)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteEvent removes an event. A missing event is reported as an error.
func (s *CalendarService) DeleteEvent(ctx context.Context, eventID string) error {
	if err := s.service.Events.Delete(s.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}

func (s *CalendarService) toAppointment(ev *calendar.Event) (models.Appointment, error) {
	start, err := s.parseEventTime(ev.Start)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("event %s start: %w", ev.Id, err)
	}
	end, err := s.parseEventTime(ev.End)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("event %s end: %w", ev.Id, err)
	}

	appt := models.Appointment{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		StartTime:   start,
		EndTime:     end,
	}
	bookingfmt.Fill(&appt)
	return appt, nil
}

// parseEventTime reads DateTime, or Date for all-day events.
func (s *CalendarService) parseEventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("missing time")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(s.loc), nil
	}
	if edt.Date != "" {
		return time.ParseInLocation(models.DateLayout, edt.Date, s.loc)
	}
	return time.Time{}, fmt.Errorf("missing time")
}
