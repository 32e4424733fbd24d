// Package bookingfmt encodes booking fields into calendar event text and back.
//
// The calendar only stores free text, so the summary and description are the
// booking's serialization format:
//
//	summary     = "Booking: " + name + " - " + service
//	description = "Phone: " + phone
package bookingfmt

import (
	"fmt"
	"strings"
	"unicode"

	"salonbook/internal/models"
)

const (
	SummaryPrefix     = "Booking: "
	Separator         = " - "
	DescriptionPrefix = "Phone: "
)

func EncodeSummary(name, service string) string {
	return SummaryPrefix + name + Separator + service
}

// DecodeSummary splits a booking summary on the first separator. ok is false
// for events that were not created by this service.
func DecodeSummary(summary string) (name, service string, ok bool) {
	rest, found := strings.CutPrefix(summary, SummaryPrefix)
	if !found {
		return "", "", false
	}
	name, service, found = strings.Cut(rest, Separator)
	if !found {
		return rest, "", false
	}
	return name, service, true
}

func EncodeDescription(phone string) string {
	return DescriptionPrefix + phone
}

// DecodeDescription returns the phone from the first "Phone: " line.
func DecodeDescription(description string) (phone string, ok bool) {
	for _, line := range strings.Split(description, "\n") {
		if v, found := strings.CutPrefix(strings.TrimRight(line, "\r"), DescriptionPrefix); found {
			return v, true
		}
	}
	return "", false
}

// CheckName rejects names that would not survive DecodeSummary.
func CheckName(name string) error {
	if strings.Contains(name, Separator) {
		return fmt.Errorf("name must not contain %q", Separator)
	}
	if hasControl(name) {
		return fmt.Errorf("name must be a single line of text")
	}
	return nil
}

// CheckService rejects services that would break the summary line.
func CheckService(service string) error {
	if hasControl(service) {
		return fmt.Errorf("service must be a single line of text")
	}
	return nil
}

// CheckPhone rejects phones that would not survive DecodeDescription.
func CheckPhone(phone string) error {
	if hasControl(phone) {
		return fmt.Errorf("phone must be a single line of text")
	}
	return nil
}

// hasControl reports CR, LF, tabs and other control characters. They end
// up in calendar text and in notification headers.
func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// Fill decodes Summary/Description into the display fields of appt.
func Fill(appt *models.Appointment) {
	if name, service, ok := DecodeSummary(appt.Summary); ok {
		appt.Customer = name
		appt.Service = service
	}
	if phone, ok := DecodeDescription(appt.Description); ok {
		appt.Phone = phone
	}
}
