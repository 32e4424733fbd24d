package domain

import (
	"context"
	"time"

	"salonbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CalendarProvider is the external system of record for bookings.
type CalendarProvider interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]models.Appointment, error)
	InsertEvent(ctx context.Context, appt *models.Appointment) (*models.Appointment, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Notification is a single outbound message. A non-empty Channel restricts
// delivery to that named channel.
type Notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Channel string `json:"channel,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// SlotLocker serializes check-and-create per key. Acquire waits until the
// key is free or ctx is done (ErrSlotBusy). Calling release more than once
// is harmless.
type SlotLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type NotificationQueue interface {
	EnqueueNotification(ctx context.Context, eventID string, n Notification) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type BookingService interface {
	Book(ctx context.Context, req models.BookingRequest) (*models.Confirmation, error)
}

type AppointmentService interface {
	List(ctx context.Context, date string) ([]models.Appointment, error)
	Cancel(ctx context.Context, eventID string) error
}
