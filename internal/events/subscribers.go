package events

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// AppointmentEventTypes lists every event the booking flow publishes.
var AppointmentEventTypes = []string{EventBookingCreated, EventBookingCanceled, EventBookingUnnotified}

// DecodeAppointment reads the payload of an appointment event.
func DecodeAppointment(event *Event) (AppointmentEventPayload, error) {
	var payload AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return payload, nil
}

// LogAppointments subscribes an audit logger to all appointment events.
// Unnotified bookings are logged at warn level so they stand out.
func LogAppointments(bus *EventBus, logger *zerolog.Logger) {
	for _, eventType := range AppointmentEventTypes {
		bus.Subscribe(eventType, func(event *Event) error {
			payload, err := DecodeAppointment(event)
			if err != nil {
				logger.Error().Err(err).Msg("bad appointment event")
				return err
			}

			entry := logger.Info()
			if event.Type == EventBookingUnnotified {
				entry = logger.Warn()
			}
			entry.
				Str("type", event.Type).
				Str("event_id", payload.EventID).
				Str("customer", payload.Customer).
				Str("service", payload.Service).
				Time("start", payload.Start).
				Str("reason", payload.Reason).
				Msg("appointment event")
			return nil
		})
	}
}
