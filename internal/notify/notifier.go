// Package notify delivers owner notifications over email, Telegram and SMS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// Multi fans a notification out to every channel, or to the one named by
// Notification.Channel. Failures come back as *domain.DeliveryError so a
// retry can target only the channels that failed.
type Multi struct {
	channels map[string]domain.Notifier
	order    []string
	logger   *zerolog.Logger
}

func NewMulti(logger *zerolog.Logger) *Multi {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Multi{channels: make(map[string]domain.Notifier), logger: logger}
}

// Add registers a named channel. Nil notifiers are ignored.
func (m *Multi) Add(name string, n domain.Notifier) *Multi {
	if n == nil {
		return m
	}
	if _, exists := m.channels[name]; !exists {
		m.order = append(m.order, name)
	}
	m.channels[name] = n
	return m
}

// Channels returns the registered channel names in insertion order.
func (m *Multi) Channels() []string {
	return append([]string(nil), m.order...)
}

func (m *Multi) Send(ctx context.Context, n domain.Notification) error {
	names := m.order
	if n.Channel != "" {
		if _, ok := m.channels[n.Channel]; !ok {
			return &domain.DeliveryError{
				Failed: []string{n.Channel},
				Err:    fmt.Errorf("%w: unknown channel %q", domain.ErrNotification, n.Channel),
			}
		}
		names = []string{n.Channel}
	}

	var errs []error
	var failed []string
	for _, name := range names {
		if err := m.channels[name].Send(ctx, n); err != nil {
			m.logger.Warn().Err(err).Str("channel", name).Str("subject", n.Subject).Msg("Notification channel failed")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			failed = append(failed, name)
			continue
		}
		m.logger.Debug().Str("channel", name).Str("subject", n.Subject).Msg("Notification sent")
	}
	if len(errs) > 0 {
		return &domain.DeliveryError{
			Failed: failed,
			Err:    fmt.Errorf("%w: %w", domain.ErrNotification, errors.Join(errs...)),
		}
	}
	return nil
}

// Noop accepts every notification.
type Noop struct{}

func (Noop) Send(context.Context, domain.Notification) error { return nil }

// BookingMessage builds the owner notification for a new booking. req.Phone
// should already carry the default placeholder when the customer left it empty.
func BookingMessage(to string, req models.BookingRequest) domain.Notification {
	return domain.Notification{
		To:      to,
		Subject: "New Booking: " + req.Name,
		Body: fmt.Sprintf("New appointment booked!\n\nName: %s\nPhone: %s\nService: %s\nDate: %s\nTime: %s",
			req.Name, req.Phone, req.Service, req.Date, req.Time),
	}
}

// DigestMessage lists a day's appointments for the owner.
func DigestMessage(to, date string, appts []models.Appointment) domain.Notification {
	var b strings.Builder
	if len(appts) == 0 {
		fmt.Fprintf(&b, "No appointments on %s.", date)
	} else {
		fmt.Fprintf(&b, "Appointments on %s:\n", date)
		for _, a := range appts {
			who := a.Customer
			if who == "" {
				who = a.Summary
			}
			fmt.Fprintf(&b, "\n%s-%s  %s", a.StartTime.Format("15:04"), a.EndTime.Format("15:04"), who)
			if a.Service != "" {
				fmt.Fprintf(&b, " (%s)", a.Service)
			}
			if a.Phone != "" {
				fmt.Fprintf(&b, ", %s", a.Phone)
			}
		}
	}

	return domain.Notification{
		To:      to,
		Subject: fmt.Sprintf("Agenda for %s (%d)", date, len(appts)),
		Body:    b.String(),
	}
}
