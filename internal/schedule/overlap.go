package schedule

import "salonbook/internal/models"

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap.
func Overlaps(a, b models.Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// HasOverlap reports whether candidate overlaps any of existing.
func HasOverlap(candidate models.Interval, existing []models.Interval) bool {
	for _, iv := range existing {
		if Overlaps(candidate, iv) {
			return true
		}
	}
	return false
}
