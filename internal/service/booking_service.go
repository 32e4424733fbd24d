package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"salonbook/internal/bookingfmt"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/notify"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
)

// BookingOptions carries the booking rules taken from config.
type BookingOptions struct {
	Location     *time.Location
	SlotDuration time.Duration
	PhoneDefault string
	OwnerEmail   string
	LockTTL      time.Duration
	LockWait     time.Duration
	// Services restricts bookable services when non-empty.
	Services []models.ServiceOffering
}

type BookingService struct {
	calendar  domain.CalendarProvider
	notifier  domain.Notifier
	queue     domain.NotificationQueue
	locker    domain.SlotLocker
	eventBus  domain.EventPublisher
	opts      BookingOptions
	catalogue map[string]string
	logger    *zerolog.Logger
}

// NewBookingService wires the orchestrator. notifier, queue, locker and
// eventBus may be nil: a nil notifier counts as delivered, a nil locker
// leaves concurrent bookings of one date unserialized.
func NewBookingService(
	calendar domain.CalendarProvider,
	notifier domain.Notifier,
	queue domain.NotificationQueue,
	locker domain.SlotLocker,
	eventBus domain.EventPublisher,
	opts BookingOptions,
	logger *zerolog.Logger,
) *BookingService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SlotDuration <= 0 {
		opts.SlotDuration = models.DefaultSlotMinutes * time.Minute
	}
	if opts.PhoneDefault == "" {
		opts.PhoneDefault = models.DefaultPhone
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = models.DefaultLockTTL * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = models.DefaultLockWait * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	catalogue := make(map[string]string, len(opts.Services))
	for _, svc := range opts.Services {
		catalogue[strings.ToLower(strings.TrimSpace(svc.Name))] = svc.Name
	}

	return &BookingService{
		calendar:  calendar,
		notifier:  notifier,
		queue:     queue,
		locker:    locker,
		eventBus:  eventBus,
		opts:      opts,
		catalogue: catalogue,
		logger:    logger,
	}
}

// Services returns the configured catalogue; empty means any service is accepted.
func (s *BookingService) Services() []models.ServiceOffering {
	return append([]models.ServiceOffering(nil), s.opts.Services...)
}

// Book validates the request, checks the day for overlaps and writes the
// event. The calendar write is never rolled back: a failed notification
// yields Notified=false and a queued retry instead of an error.
func (s *BookingService) Book(ctx context.Context, req models.BookingRequest) (*models.Confirmation, error) {
	req, err := s.validate(req)
	if err != nil {
		metrics.IncBooking(metrics.OutcomeInvalid)
		return nil, err
	}

	slot, err := schedule.Normalize(req.Date, req.Time, s.opts.Location, s.opts.SlotDuration)
	if err != nil {
		metrics.IncBooking(metrics.OutcomeInvalid)
		return nil, err
	}

	release, err := s.acquire(ctx, lockKeys(slot))
	if err != nil {
		metrics.IncBooking(metrics.OutcomeError)
		return nil, err
	}
	defer release()

	dayStart, dayEnd, err := schedule.DayWindow(req.Date, s.opts.Location)
	if err != nil {
		metrics.IncBooking(metrics.OutcomeInvalid)
		return nil, err
	}
	// A late slot can run past midnight.
	if slot.End.After(dayEnd) {
		dayEnd = slot.End
	}

	existing, err := s.listEvents(ctx, dayStart, dayEnd)
	if err != nil {
		metrics.IncBooking(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}

	intervals := make([]models.Interval, 0, len(existing))
	for _, appt := range existing {
		intervals = append(intervals, appt.Slot())
	}
	if schedule.HasOverlap(slot, intervals) {
		metrics.IncBooking(metrics.OutcomeUnavailable)
		s.logger.Info().Str("date", req.Date).Str("time", req.Time).Msg("Slot already booked")
		return nil, domain.ErrSlotUnavailable
	}

	created, err := s.insertEvent(ctx, &models.Appointment{
		Summary:     bookingfmt.EncodeSummary(req.Name, req.Service),
		Description: bookingfmt.EncodeDescription(req.Phone),
		StartTime:   slot.Start,
		EndTime:     slot.End,
	})
	if err != nil {
		metrics.IncBooking(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}

	// The event is visible to later listings; the dates can be unlocked.
	release()
	metrics.IncBooking(metrics.OutcomeBooked)

	notified := s.notifyOwner(ctx, created.ID, req)

	s.publish(events.EventBookingCreated, events.AppointmentEventPayload{
		EventID:  created.ID,
		Customer: req.Name,
		Service:  req.Service,
		Phone:    req.Phone,
		Start:    slot.Start,
		End:      slot.End,
		Notified: notified,
	})

	s.logger.Info().
		Str("event_id", created.ID).
		Str("date", req.Date).
		Str("time", req.Time).
		Str("service", req.Service).
		Bool("notified", notified).
		Msg("Booking created")

	return &models.Confirmation{EventID: created.ID, Slot: slot, Notified: notified}, nil
}

func (s *BookingService) validate(req models.BookingRequest) (models.BookingRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Service = strings.TrimSpace(req.Service)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	if req.Name == "" || req.Service == "" || req.Date == "" || req.Time == "" {
		return req, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrMissingFields)
	}
	if req.Phone == "" {
		req.Phone = s.opts.PhoneDefault
	}

	if err := bookingfmt.CheckName(req.Name); err != nil {
		return req, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if err := bookingfmt.CheckPhone(req.Phone); err != nil {
		return req, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if err := bookingfmt.CheckService(req.Service); err != nil {
		return req, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	if len(s.catalogue) > 0 {
		name, ok := s.catalogue[strings.ToLower(req.Service)]
		if !ok {
			return req, fmt.Errorf("%w: unknown service %q", domain.ErrInvalidRequest, req.Service)
		}
		req.Service = name
	}

	return req, nil
}

// lockKeys lists every date the slot touches, sorted, so concurrent
// bookings take shared keys in the same order.
func lockKeys(slot models.Interval) []string {
	keys := []string{slot.Start.Format(models.DateLayout)}
	last := slot.End.Add(-time.Nanosecond)
	if slot.End.After(slot.Start) {
		if end := last.Format(models.DateLayout); end != keys[0] {
			keys = append(keys, end)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *BookingService) acquire(ctx context.Context, dates []string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	defer cancel()

	releases := make([]func(), 0, len(dates))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, date := range dates {
		release, err := s.locker.Acquire(waitCtx, date, s.opts.LockTTL)
		if err != nil {
			releaseAll()
			s.logger.Warn().Err(err).Str("date", date).Msg("Date lock not acquired")
			return nil, err
		}
		releases = append(releases, release)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

// notifyOwner reports whether the owner was notified now. On failure the
// message goes to the outbox for the worker to retry.
func (s *BookingService) notifyOwner(ctx context.Context, eventID string, req models.BookingRequest) bool {
	if s.notifier == nil {
		return true
	}

	msg := notify.BookingMessage(s.opts.OwnerEmail, req)
	err := s.notifier.Send(ctx, msg)
	if err == nil {
		metrics.IncNotification(metrics.OutcomeSent)
		return true
	}

	s.logger.Warn().Err(err).Str("event_id", eventID).Msg("Booking notification failed, queueing retry")

	reason := err.Error()
	if s.queue != nil {
		queueCtx := context.WithoutCancel(ctx)
		for _, retry := range retryMessages(msg, err) {
			if qerr := s.queue.EnqueueNotification(queueCtx, eventID, retry); qerr != nil {
				s.logger.Error().Err(qerr).Str("event_id", eventID).Str("channel", retry.Channel).Msg("Failed to queue booking notification")
				reason = fmt.Sprintf("%s; queue: %s", reason, qerr)
				continue
			}
			metrics.IncNotification(metrics.OutcomeQueued)
		}
	}

	s.publish(events.EventBookingUnnotified, events.AppointmentEventPayload{
		EventID:  eventID,
		Customer: req.Name,
		Service:  req.Service,
		Reason:   reason,
	})
	return false
}

// retryMessages returns one message per failed channel so channels that
// already delivered are not sent the booking again.
func retryMessages(msg domain.Notification, err error) []domain.Notification {
	var derr *domain.DeliveryError
	if !errors.As(err, &derr) || len(derr.Failed) == 0 {
		return []domain.Notification{msg}
	}
	out := make([]domain.Notification, 0, len(derr.Failed))
	for _, channel := range derr.Failed {
		retry := msg
		retry.Channel = channel
		out = append(out, retry)
	}
	return out
}

func (s *BookingService) listEvents(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	defer observeCalendar("list", time.Now())
	return s.calendar.ListEvents(ctx, from, to)
}

func (s *BookingService) insertEvent(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	defer observeCalendar("insert", time.Now())
	return s.calendar.InsertEvent(ctx, appt)
}

func (s *BookingService) publish(eventType string, payload events.AppointmentEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func observeCalendar(op string, start time.Time) {
	metrics.ObserveCalendar(op, time.Since(start).Seconds())
}
