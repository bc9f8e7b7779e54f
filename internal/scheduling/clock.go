package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock converts "HH:MM" or "HH:MM:SS" into minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("scheduling: invalid time %q", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("scheduling: invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("scheduling: invalid minute in %q", value)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("scheduling: invalid time %q", value)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduling: invalid date %q: %w", value, err)
	}
	return d, nil
}

// EndTimeFor derives an appointment's end time from its start and the service duration.
func EndTimeFor(start string, durationMinutes int) (string, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return "", err
	}
	if durationMinutes <= 0 {
		return "", fmt.Errorf("scheduling: invalid duration %d", durationMinutes)
	}
	end := startMin + durationMinutes
	if end > 24*60 {
		return "", fmt.Errorf("scheduling: %s plus %d minutes crosses midnight", start, durationMinutes)
	}
	return FormatClock(end), nil
}

// Location loads an IANA timezone, falling back to UTC.
func Location(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
