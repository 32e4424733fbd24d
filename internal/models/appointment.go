package models

import "time"

// Appointment is a calendar event as seen by this service. The provider owns it;
// nothing here is persisted locally.
type Appointment struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`

	// Decoded from Summary/Description when they follow the booking format.
	Customer string `json:"customer,omitempty"`
	Service  string `json:"service,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Slot returns the appointment's time span.
func (a Appointment) Slot() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

// ServiceOffering is an entry of the optional service catalogue.
type ServiceOffering struct {
	Name      string `yaml:"name" json:"name"`
	SortOrder int64  `yaml:"sort_order" json:"sort_order"`
}
