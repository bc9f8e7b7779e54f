package scheduling

import (
	"errors"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

var ErrNotFound = errors.New("scheduling: not found")

// Appointment is a booked slot. Date is YYYY-MM-DD, times are HH:MM in the
// business's local time.
type Appointment struct {
	ID          uuid.UUID
	TenantID    string
	ClientName  string
	ClientPhone string
	Date        string
	StartTime   string
	EndTime     string
	Status      string
	ServiceID   *uuid.UUID
	ServiceName string
	StaffID     *uuid.UUID
	StaffName   string
}

type Service struct {
	ID              uuid.UUID
	Name            string
	Description     string
	DurationMinutes int
	Price           float64
}

// BusinessHours describes one weekday. DayOfWeek follows time.Weekday (0 = Sunday).
type BusinessHours struct {
	DayOfWeek int
	OpenTime  string
	CloseTime string
	IsOpen    bool
}

// TimeBlock removes time from the bookable calendar. A nil StartTime/EndTime
// (or FullDay) blocks the whole date. A non-nil StaffID scopes the block to
// one staff member.
type TimeBlock struct {
	ID        uuid.UUID
	Date      string
	StartTime *string
	EndTime   *string
	FullDay   bool
	StaffID   *uuid.UUID
	Reason    string
}

type SchedulingSettings struct {
	SlotIntervalMinutes int
	MaxCapacityPerSlot  int
}

// DefaultSettings is used when a tenant never configured scheduling.
var DefaultSettings = SchedulingSettings{SlotIntervalMinutes: 30, MaxCapacityPerSlot: 1}

type Company struct {
	Name    string
	Address string
	Phone   string
}

type KnowledgeEntry struct {
	Title    string
	Content  string
	Category string
}

// AgentSettings gates the conversational agent for a tenant and carries the
// transport credentials for its WhatsApp instance.
type AgentSettings struct {
	TenantID          string
	Enabled           bool
	InstanceName      string
	InstanceToken     string
	NotificationEmail string
	Timezone          string
}
