package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFreeSlots_ExcludesBookedSlot(t *testing.T) {
	hours := BusinessHours{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "12:00", IsOpen: true}
	settings := SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1}
	appts := []Appointment{{StartTime: "10:00", EndTime: "10:30", Status: StatusConfirmed}}

	slots, err := FreeSlots(hours, settings, appts, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, slots)
}

func TestFreeSlots(t *testing.T) {
	open := BusinessHours{OpenTime: "09:00", CloseTime: "11:00", IsOpen: true}
	staff := uuid.New()

	tests := []struct {
		name     string
		hours    BusinessHours
		settings SchedulingSettings
		appts    []Appointment
		blocks   []TimeBlock
		want     []string
	}{
		{
			name:     "closed day",
			hours:    BusinessHours{OpenTime: "09:00", CloseTime: "11:00", IsOpen: false},
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1},
			want:     nil,
		},
		{
			name:     "capacity two keeps single booking open",
			hours:    open,
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 2},
			appts:    []Appointment{{StartTime: "09:00", EndTime: "09:30", Status: StatusPending}},
			want:     []string{"09:00", "09:30", "10:00", "10:30"},
		},
		{
			name:     "capacity two filled",
			hours:    open,
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 2},
			appts: []Appointment{
				{StartTime: "09:00", EndTime: "09:30", Status: StatusPending},
				{StartTime: "09:00", EndTime: "10:00", Status: StatusConfirmed},
			},
			want: []string{"10:00", "10:30"},
		},
		{
			name:     "canceled appointments free the slot",
			hours:    open,
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1},
			appts:    []Appointment{{StartTime: "09:00", EndTime: "09:30", Status: StatusCanceled}},
			want:     []string{"09:00", "09:30", "10:00", "10:30"},
		},
		{
			name:     "adjacent appointment does not overlap",
			hours:    open,
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1},
			appts:    []Appointment{{StartTime: "08:30", EndTime: "09:00", Status: StatusConfirmed}},
			want:     []string{"09:00", "09:30", "10:00", "10:30"},
		},
		{
			name:     "partial block",
			hours:    open,
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 3},
			blocks:   []TimeBlock{{StartTime: strPtr("09:15"), EndTime: strPtr("10:00")}},
			want:     []string{"10:00", "10:30"},
		},
		{
			name:     "full day block",
			hours:    open,
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1},
			blocks:   []TimeBlock{{FullDay: true}},
			want:     nil,
		},
		{
			name:     "staff scoped block ignored",
			hours:    open,
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1},
			blocks:   []TimeBlock{{FullDay: true, StaffID: &staff}},
			want:     []string{"09:00", "09:30", "10:00", "10:30"},
		},
		{
			name:     "last slot must fit before close",
			hours:    BusinessHours{OpenTime: "09:00", CloseTime: "10:15", IsOpen: true},
			settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1},
			want:     []string{"09:00", "09:30"},
		},
		{
			name:     "zero settings fall back to defaults",
			hours:    BusinessHours{OpenTime: "09:00", CloseTime: "10:00", IsOpen: true},
			settings: SchedulingSettings{},
			want:     []string{"09:00", "09:30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FreeSlots(tt.hours, tt.settings, tt.appts, tt.blocks)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFreeSlots_InvalidClock(t *testing.T) {
	_, err := FreeSlots(BusinessHours{OpenTime: "nine", CloseTime: "12:00", IsOpen: true}, DefaultSettings, nil, nil)
	assert.Error(t, err)
}

type fakeAvailabilitySource struct {
	hours    map[time.Weekday]BusinessHours
	settings SchedulingSettings
	appts    map[string][]Appointment
	blocks   map[string][]TimeBlock
	hoursErr error
}

func (f *fakeAvailabilitySource) DayHours(_ context.Context, _ string, weekday time.Weekday) (BusinessHours, error) {
	if f.hoursErr != nil {
		return BusinessHours{}, f.hoursErr
	}
	h, ok := f.hours[weekday]
	if !ok {
		return BusinessHours{}, ErrNotFound
	}
	return h, nil
}

func (f *fakeAvailabilitySource) Settings(context.Context, string) (SchedulingSettings, error) {
	return f.settings, nil
}

func (f *fakeAvailabilitySource) AppointmentsOn(_ context.Context, _, date string) ([]Appointment, error) {
	return f.appts[date], nil
}

func (f *fakeAvailabilitySource) TimeBlocksOn(_ context.Context, _, date string) ([]TimeBlock, error) {
	return f.blocks[date], nil
}

func TestCalendarAvailable_ResolvesWeekday(t *testing.T) {
	// 2026-10-19 is a Monday.
	src := &fakeAvailabilitySource{
		hours: map[time.Weekday]BusinessHours{
			time.Monday: {DayOfWeek: 1, OpenTime: "09:00", CloseTime: "12:00", IsOpen: true},
		},
		settings: SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1},
		appts: map[string][]Appointment{
			"2026-10-19": {{StartTime: "10:00", EndTime: "10:30", Status: StatusConfirmed}},
		},
	}
	cal := NewCalendar(src, nil)

	slots, err := cal.Available(context.Background(), "tenant-a", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, slots)

	sunday, err := cal.Available(context.Background(), "tenant-a", "2026-10-18")
	require.NoError(t, err)
	assert.Empty(t, sunday)
}

func TestCalendarAvailable_Errors(t *testing.T) {
	cal := NewCalendar(&fakeAvailabilitySource{hoursErr: errors.New("db down")}, nil)
	_, err := cal.Available(context.Background(), "tenant-a", "2026-10-19")
	assert.Error(t, err)

	_, err = cal.Available(context.Background(), "tenant-a", "19/10/2026")
	assert.Error(t, err)
}
