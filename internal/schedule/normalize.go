package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// Normalize turns a calendar date (YYYY-MM-DD) and a 12-hour clock string
// ("9:30 AM", "11:00 PM") into a slot of length d in loc.
func Normalize(date, clock string, loc *time.Location, d time.Duration) (models.Interval, error) {
	if loc == nil {
		loc = time.UTC
	}
	if d <= 0 {
		d = models.DefaultSlotMinutes * time.Minute
	}

	day, err := ParseDate(date, loc)
	if err != nil {
		return models.Interval{}, err
	}

	hour, minute, err := parseClock(clock)
	if err != nil {
		return models.Interval{}, err
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return models.Interval{Start: start, End: start.Add(d)}, nil
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", domain.ErrInvalidRequest, date)
	}
	return day, nil
}

// DayWindow returns [date 00:00:00, date 23:59:59) in loc.
func DayWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := day.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return day, end, nil
}

// parseClock returns the 24-hour hour and minute of "H:MM AM|PM".
// 12 is folded to 0 before PM adds 12, so 12 AM is midnight and 12 PM is noon.
func parseClock(clock string) (int, int, error) {
	invalid := fmt.Errorf("%w: invalid time %q, expected H:MM AM|PM", domain.ErrInvalidRequest, clock)

	parts := strings.Fields(clock)
	if len(parts) != 2 {
		return 0, 0, invalid
	}
	hm := strings.Split(parts[0], ":")
	if len(hm) != 2 || len(hm[0]) < 1 || len(hm[0]) > 2 || len(hm[1]) != 2 {
		return 0, 0, invalid
	}

	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, invalid
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, invalid
	}

	if hour == 12 {
		hour = 0
	}
	switch strings.ToUpper(parts[1]) {
	case "AM":
	case "PM":
		hour += 12
	default:
		return 0, 0, invalid
	}

	return hour, minute, nil
}
