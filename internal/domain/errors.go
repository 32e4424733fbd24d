package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidRequest marks user-correctable input problems (400).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSlotUnavailable is returned when the requested slot overlaps an existing event (400).
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrProvider wraps calendar failures (500).
	ErrProvider = errors.New("calendar provider failure")
	// ErrNotification wraps notifier failures.
	ErrNotification = errors.New("notification failure")
	// ErrCancelFailed is returned when the provider refuses a delete, not-found included (500).
	ErrCancelFailed = errors.New("cancel failed")
	// ErrSlotBusy is returned when a date lock could not be taken in time.
	ErrSlotBusy = errors.New("slot is being booked by another request")
	// ErrMissingFields is wrapped with ErrInvalidRequest when a required booking field is empty.
	ErrMissingFields = errors.New("name, service, date, and time are required")
)

// DeliveryError lists the channels that did not accept a notification.
// Channels not listed delivered it.
type DeliveryError struct {
	Failed []string
	Err    error
}

func (e *DeliveryError) Error() string {
	return "delivery failed on " + strings.Join(e.Failed, ", ") + ": " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }
