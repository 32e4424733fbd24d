package models

import "time"

// BookingRequest is the inbound form payload of POST /api/book.
type BookingRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Date    string `json:"date"` // YYYY-MM-DD
	Time    string `json:"time"` // 11:00 AM
}

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Confirmation is returned when a booking has been written to the calendar.
type Confirmation struct {
	EventID  string   `json:"id"`
	Slot     Interval `json:"slot"`
	Notified bool     `json:"notified"`
}
