package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxSurfacedSlots is how many free slots are offered to a customer at once.
const MaxSurfacedSlots = 5

type interval struct {
	start, end int
}

// overlaps uses half-open semantics: [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1.
func (a interval) overlaps(b interval) bool {
	return a.start < b.end && b.start < a.end
}

// FreeSlots walks the open hours in settings.SlotIntervalMinutes steps and returns
// the start time of every slot not blocked by an unscoped time block and not
// already at capacity.
func FreeSlots(hours BusinessHours, settings SchedulingSettings, appointments []Appointment, blocks []TimeBlock) ([]string, error) {
	if !hours.IsOpen {
		return nil, nil
	}
	open, err := ParseClock(hours.OpenTime)
	if err != nil {
		return nil, err
	}
	closing, err := ParseClock(hours.CloseTime)
	if err != nil {
		return nil, err
	}
	step := settings.SlotIntervalMinutes
	if step <= 0 {
		step = DefaultSettings.SlotIntervalMinutes
	}
	capacity := settings.MaxCapacityPerSlot
	if capacity <= 0 {
		capacity = DefaultSettings.MaxCapacityPerSlot
	}

	var blocked []interval
	for _, b := range blocks {
		if b.StaffID != nil {
			continue
		}
		if b.FullDay || b.StartTime == nil || b.EndTime == nil {
			return nil, nil
		}
		s, err := ParseClock(*b.StartTime)
		if err != nil {
			return nil, err
		}
		e, err := ParseClock(*b.EndTime)
		if err != nil {
			return nil, err
		}
		blocked = append(blocked, interval{s, e})
	}

	var booked []interval
	for _, a := range appointments {
		if a.Status == StatusCanceled {
			continue
		}
		s, err := ParseClock(a.StartTime)
		if err != nil {
			return nil, err
		}
		e, err := ParseClock(a.EndTime)
		if err != nil {
			return nil, err
		}
		booked = append(booked, interval{s, e})
	}

	var free []string
	for start := open; start+step <= closing; start += step {
		slot := interval{start, start + step}
		if slotBlocked(slot, blocked) {
			continue
		}
		occupied := 0
		for _, b := range booked {
			if slot.overlaps(b) {
				occupied++
			}
		}
		if occupied >= capacity {
			continue
		}
		free = append(free, FormatClock(start))
	}
	return free, nil
}

func slotBlocked(slot interval, blocks []interval) bool {
	for _, b := range blocks {
		if slot.overlaps(b) {
			return true
		}
	}
	return false
}

type availabilitySource interface {
	DayHours(ctx context.Context, tenantID string, weekday time.Weekday) (BusinessHours, error)
	Settings(ctx context.Context, tenantID string) (SchedulingSettings, error)
	AppointmentsOn(ctx context.Context, tenantID, date string) ([]Appointment, error)
	TimeBlocksOn(ctx context.Context, tenantID, date string) ([]TimeBlock, error)
}

// Calendar answers availability questions for one tenant's calendar.
type Calendar struct {
	source availabilitySource
	loc    *time.Location
}

// NewCalendar builds a Calendar. A nil loc means UTC.
func NewCalendar(source availabilitySource, loc *time.Location) *Calendar {
	if source == nil {
		panic("scheduling: availability source required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{source: source, loc: loc}
}

// Available returns every free slot start for date (YYYY-MM-DD). A closed day
// yields an empty result.
func (c *Calendar) Available(ctx context.Context, tenantID, date string) ([]string, error) {
	day, err := ParseDate(date, c.loc)
	if err != nil {
		return nil, err
	}
	hours, err := c.source.DayHours(ctx, tenantID, day.Weekday())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduling: load hours: %w", err)
	}
	if !hours.IsOpen {
		return nil, nil
	}
	settings, err := c.source.Settings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load settings: %w", err)
	}
	appointments, err := c.source.AppointmentsOn(ctx, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load appointments: %w", err)
	}
	blocks, err := c.source.TimeBlocksOn(ctx, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load time blocks: %w", err)
	}
	return FreeSlots(hours, settings, appointments, blocks)
}
