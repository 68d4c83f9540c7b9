package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanSchedule(row pgx.Row) (*ProviderSchedule, error) {
	var s ProviderSchedule
	var days []int32
	var templates []byte
	var allowed []string

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.DepartmentID,
		&s.FacilityID,
		&s.EffectiveFrom,
		&s.EffectiveUntil,
		&days,
		&templates,
		&s.MaxAppointments,
		&s.BufferMinutes,
		&allowed,
		&s.Priority,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	s.DaysOfWeek = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		s.DaysOfWeek = append(s.DaysOfWeek, time.Weekday(d))
	}
	if err := json.Unmarshal(templates, &s.DayTemplates); err != nil {
		return nil, fmt.Errorf("decode day templates: %w", err)
	}
	s.AllowedTypes = allowed

	return &s, nil
}

const scheduleColumns = `
	id, provider_id, department_id, facility_id,
	effective_from, effective_until, days_of_week, day_templates,
	max_appointments, buffer_minutes, allowed_types, priority, active,
	created_at, updated_at
`

func (r *PgRepository) Create(ctx context.Context, s *ProviderSchedule) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	days := make([]int32, 0, len(s.DaysOfWeek))
	for _, d := range s.DaysOfWeek {
		days = append(days, int32(d))
	}
	templates, err := json.Marshal(s.DayTemplates)
	if err != nil {
		return fmt.Errorf("encode day templates: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO provider_schedules (
			id, provider_id, department_id, facility_id,
			effective_from, effective_until, days_of_week, day_templates,
			max_appointments, buffer_minutes, allowed_types, priority, active,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING created_at, updated_at
	`, s.ID, s.ProviderID, s.DepartmentID, s.FacilityID,
		s.EffectiveFrom, s.EffectiveUntil, days, templates,
		s.MaxAppointments, s.BufferMinutes, s.AllowedTypes, s.Priority, s.Active)

	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("insert provider schedule: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*ProviderSchedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM provider_schedules
		WHERE id = $1
	`, id)
	return scanSchedule(row)
}

func (r *PgRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]ProviderSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM provider_schedules
		WHERE provider_id = $1
		ORDER BY priority DESC, created_at DESC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ProviderSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ActiveForDate(ctx context.Context, providerID uuid.UUID, date time.Time) (*ProviderSchedule, error) {
	// Highest priority wins, ties broken by most recent creation.
	row := r.pool.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM provider_schedules
		WHERE provider_id = $1
		  AND active = true
		  AND effective_from <= $2
		  AND effective_until >= $2
		  AND $3 = ANY(days_of_week)
		ORDER BY priority DESC, created_at DESC
		LIMIT 1
	`, providerID, date, int32(date.Weekday()))
	return scanSchedule(row)
}

func (r *PgRepository) CreateOverride(ctx context.Context, o *DateOverride) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_date_overrides (id, provider_id, date, closed, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at
	`, o.ID, o.ProviderID, o.Date, o.Closed, o.Reason)

	if err := row.Scan(&o.CreatedAt); err != nil {
		return fmt.Errorf("insert date override: %w", err)
	}
	return nil
}

func (r *PgRepository) OverridesInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]DateOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, date, closed, reason, created_at
		FROM schedule_date_overrides
		WHERE provider_id = $1
		  AND date >= $2
		  AND date <= $3
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DateOverride
	for rows.Next() {
		var o DateOverride
		if err := rows.Scan(&o.ID, &o.ProviderID, &o.Date, &o.Closed, &o.Reason, &o.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}
