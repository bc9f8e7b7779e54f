package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool used by the repository.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and mutates the scheduling data owned by the back-office.
// Every statement is scoped by tenant_id.
type Repository struct {
	pool PgxPool
}

func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &Repository{pool: pool}
}

// UpcomingAppointments lists pending/confirmed appointments for phone from
// fromDate onwards, soonest first.
func (r *Repository) UpcomingAppointments(ctx context.Context, tenantID, phone, fromDate string, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT a.id, a.tenant_id, COALESCE(a.client_name, ''), a.client_phone,
			to_char(a.date, 'YYYY-MM-DD'), to_char(a.start_time, 'HH24:MI'), to_char(a.end_time, 'HH24:MI'),
			a.status, a.service_id, COALESCE(s.name, ''), a.staff_id, COALESCE(st.name, '')
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id AND s.tenant_id = a.tenant_id
		LEFT JOIN staff st ON st.id = a.staff_id AND st.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1 AND a.client_phone = $2
			AND a.status IN ('pending', 'confirmed')
			AND a.date >= $3::date
		ORDER BY a.date ASC, a.start_time ASC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, tenantID, phone, fromDate, limit)
	if err != nil {
		return nil, fmt.Errorf("scheduling: upcoming appointments: %w", err)
	}
	return collectAppointments(rows)
}

// AppointmentsOn lists the non-canceled appointments occupying date.
func (r *Repository) AppointmentsOn(ctx context.Context, tenantID, date string) ([]Appointment, error) {
	query := `
		SELECT a.id, a.tenant_id, COALESCE(a.client_name, ''), a.client_phone,
			to_char(a.date, 'YYYY-MM-DD'), to_char(a.start_time, 'HH24:MI'), to_char(a.end_time, 'HH24:MI'),
			a.status, a.service_id, '', a.staff_id, ''
		FROM appointments a
		WHERE a.tenant_id = $1 AND a.date = $2::date AND a.status <> 'canceled'
		ORDER BY a.start_time ASC
	`
	rows, err := r.pool.Query(ctx, query, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: appointments on %s: %w", date, err)
	}
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ClientName, &a.ClientPhone,
			&a.Date, &a.StartTime, &a.EndTime, &a.Status,
			&a.ServiceID, &a.ServiceName, &a.StaffID, &a.StaffName); err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate appointments: %w", err)
	}
	return out, nil
}

// TimeBlocksOn lists full-day and partial blocks for date.
func (r *Repository) TimeBlocksOn(ctx context.Context, tenantID, date string) ([]TimeBlock, error) {
	query := `
		SELECT id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
			full_day, staff_id, COALESCE(reason, '')
		FROM time_blocks
		WHERE tenant_id = $1 AND date = $2::date
	`
	rows, err := r.pool.Query(ctx, query, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: time blocks on %s: %w", date, err)
	}
	defer rows.Close()
	var out []TimeBlock
	for rows.Next() {
		var b TimeBlock
		if err := rows.Scan(&b.ID, &b.Date, &b.StartTime, &b.EndTime, &b.FullDay, &b.StaffID, &b.Reason); err != nil {
			return nil, fmt.Errorf("scheduling: scan time block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate time blocks: %w", err)
	}
	return out, nil
}

func (r *Repository) ActiveServices(ctx context.Context, tenantID string) ([]Service, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), duration_minutes, COALESCE(price, 0)::float8
		FROM services
		WHERE tenant_id = $1 AND active = true
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: active services: %w", err)
	}
	defer rows.Close()
	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.DurationMinutes, &s.Price); err != nil {
			return nil, fmt.Errorf("scheduling: scan service: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate services: %w", err)
	}
	return out, nil
}

// BusinessHours returns the configured rows for all seven weekdays, Sunday first.
func (r *Repository) BusinessHours(ctx context.Context, tenantID string) ([]BusinessHours, error) {
	query := `
		SELECT day_of_week, to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'), is_open
		FROM business_hours
		WHERE tenant_id = $1
		ORDER BY day_of_week ASC
	`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: business hours: %w", err)
	}
	defer rows.Close()
	var out []BusinessHours
	for rows.Next() {
		var h BusinessHours
		if err := rows.Scan(&h.DayOfWeek, &h.OpenTime, &h.CloseTime, &h.IsOpen); err != nil {
			return nil, fmt.Errorf("scheduling: scan business hours: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate business hours: %w", err)
	}
	return out, nil
}

// DayHours returns one weekday's hours or ErrNotFound when the day is not configured.
func (r *Repository) DayHours(ctx context.Context, tenantID string, weekday time.Weekday) (BusinessHours, error) {
	query := `
		SELECT day_of_week, to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'), is_open
		FROM business_hours
		WHERE tenant_id = $1 AND day_of_week = $2
	`
	var h BusinessHours
	err := r.pool.QueryRow(ctx, query, tenantID, int(weekday)).Scan(&h.DayOfWeek, &h.OpenTime, &h.CloseTime, &h.IsOpen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BusinessHours{}, ErrNotFound
		}
		return BusinessHours{}, fmt.Errorf("scheduling: day hours: %w", err)
	}
	return h, nil
}

// Settings returns the tenant's slot configuration, or DefaultSettings when unset.
func (r *Repository) Settings(ctx context.Context, tenantID string) (SchedulingSettings, error) {
	query := `
		SELECT slot_interval_minutes, max_capacity_per_slot
		FROM scheduling_settings
		WHERE tenant_id = $1
	`
	var s SchedulingSettings
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(&s.SlotIntervalMinutes, &s.MaxCapacityPerSlot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultSettings, nil
		}
		return SchedulingSettings{}, fmt.Errorf("scheduling: settings: %w", err)
	}
	if s.SlotIntervalMinutes <= 0 {
		s.SlotIntervalMinutes = DefaultSettings.SlotIntervalMinutes
	}
	if s.MaxCapacityPerSlot <= 0 {
		s.MaxCapacityPerSlot = DefaultSettings.MaxCapacityPerSlot
	}
	return s, nil
}

func (r *Repository) Company(ctx context.Context, tenantID string) (Company, error) {
	query := `
		SELECT name, COALESCE(address, ''), COALESCE(phone, '')
		FROM companies
		WHERE id = $1
	`
	var c Company
	if err := r.pool.QueryRow(ctx, query, tenantID).Scan(&c.Name, &c.Address, &c.Phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, fmt.Errorf("scheduling: company: %w", err)
	}
	return c, nil
}

func (r *Repository) KnowledgeBase(ctx context.Context, tenantID string) ([]KnowledgeEntry, error) {
	query := `
		SELECT title, content, COALESCE(category, '')
		FROM knowledge_base
		WHERE tenant_id = $1 AND active = true
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: knowledge base: %w", err)
	}
	defer rows.Close()
	var out []KnowledgeEntry
	for rows.Next() {
		var k KnowledgeEntry
		if err := rows.Scan(&k.Title, &k.Content, &k.Category); err != nil {
			return nil, fmt.Errorf("scheduling: scan knowledge entry: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate knowledge base: %w", err)
	}
	return out, nil
}

// AgentSettings loads the agent gate and WhatsApp instance credentials for a tenant.
// A tenant without a settings row is treated as disabled.
func (r *Repository) AgentSettings(ctx context.Context, tenantID string) (AgentSettings, error) {
	query := `
		SELECT s.enabled, COALESCE(s.notification_email, ''), COALESCE(s.timezone, ''),
			COALESCE(w.instance_name, ''), COALESCE(w.token, '')
		FROM agent_settings s
		LEFT JOIN whatsapp_instances w ON w.tenant_id = s.tenant_id AND w.active = true
		WHERE s.tenant_id = $1
		LIMIT 1
	`
	settings := AgentSettings{TenantID: tenantID}
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(&settings.Enabled, &settings.NotificationEmail,
		&settings.Timezone, &settings.InstanceName, &settings.InstanceToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AgentSettings{TenantID: tenantID}, nil
		}
		return AgentSettings{}, fmt.Errorf("scheduling: agent settings: %w", err)
	}
	return settings, nil
}

// SetAppointmentStatus updates status for an appointment owned by tenantID.
// It returns the number of affected rows; 0 means the id is unknown to this tenant.
func (r *Repository) SetAppointmentStatus(ctx context.Context, tenantID string, id uuid.UUID, status string) (int64, error) {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`
	ct, err := r.pool.Exec(ctx, query, id, tenantID, status)
	if err != nil {
		return 0, fmt.Errorf("scheduling: set appointment status: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ServiceDuration returns the duration of the service linked to an appointment.
func (r *Repository) ServiceDuration(ctx context.Context, tenantID string, appointmentID uuid.UUID) (int, error) {
	query := `
		SELECT s.duration_minutes
		FROM appointments a
		JOIN services s ON s.id = a.service_id AND s.tenant_id = a.tenant_id
		WHERE a.id = $1 AND a.tenant_id = $2
	`
	var minutes int
	if err := r.pool.QueryRow(ctx, query, appointmentID, tenantID).Scan(&minutes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("scheduling: service duration: %w", err)
	}
	return minutes, nil
}

// Reschedule moves an appointment and resets it to pending.
func (r *Repository) Reschedule(ctx context.Context, tenantID string, id uuid.UUID, date, start, end string) (int64, error) {
	query := `
		UPDATE appointments
		SET date = $3::date, start_time = $4::time, end_time = $5::time, status = 'pending', updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`
	ct, err := r.pool.Exec(ctx, query, id, tenantID, date, start, end)
	if err != nil {
		return 0, fmt.Errorf("scheduling: reschedule appointment: %w", err)
	}
	return ct.RowsAffected(), nil
}
