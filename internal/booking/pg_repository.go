package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/scheduling-engine/internal/availability"
	"github.com/clinicore/scheduling-engine/internal/directory"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, number, patient_id, provider_id, department_id, facility_id, slot_id,
	type, mode, status, scheduled_time, duration_minutes, fee, payment_status,
	reschedule_count, reschedule_history,
	cancellation_reason, cancellation_category, refund_amount,
	checked_in_at, completed_at, waitlist_entry_id,
	patient_snapshot, provider_snapshot, created_at, updated_at
`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var history, patientSnap, providerSnap []byte

	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.PatientID,
		&a.ProviderID,
		&a.DepartmentID,
		&a.FacilityID,
		&a.SlotID,
		&a.Type,
		&a.Mode,
		&a.Status,
		&a.ScheduledTime,
		&a.DurationMinutes,
		&a.Fee,
		&a.PaymentStatus,
		&a.RescheduleCount,
		&history,
		&a.CancellationReason,
		&a.CancellationCategory,
		&a.RefundAmount,
		&a.CheckedInAt,
		&a.CompletedAt,
		&a.WaitlistEntryID,
		&patientSnap,
		&providerSnap,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.RescheduleHistory); err != nil {
			return nil, fmt.Errorf("decode reschedule history: %w", err)
		}
	}
	if len(patientSnap) > 0 {
		a.PatientSnapshot = &directory.PatientInfo{}
		if err := json.Unmarshal(patientSnap, a.PatientSnapshot); err != nil {
			return nil, fmt.Errorf("decode patient snapshot: %w", err)
		}
	}
	if len(providerSnap) > 0 {
		a.ProviderSnapshot = &directory.ProviderInfo{}
		if err := json.Unmarshal(providerSnap, a.ProviderSnapshot); err != nil {
			return nil, fmt.Errorf("decode provider snapshot: %w", err)
		}
	}

	return &a, nil
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	history, err := json.Marshal(a.RescheduleHistory)
	if err != nil {
		return fmt.Errorf("encode reschedule history: %w", err)
	}
	var patientSnap, providerSnap []byte
	if a.PatientSnapshot != nil {
		if patientSnap, err = marshalNullable(a.PatientSnapshot); err != nil {
			return fmt.Errorf("encode patient snapshot: %w", err)
		}
	}
	if a.ProviderSnapshot != nil {
		if providerSnap, err = marshalNullable(a.ProviderSnapshot); err != nil {
			return fmt.Errorf("encode provider snapshot: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, number, patient_id, provider_id, department_id, facility_id, slot_id,
			type, mode, status, scheduled_time, duration_minutes, fee, payment_status,
			reschedule_count, reschedule_history,
			cancellation_reason, cancellation_category, refund_amount,
			checked_in_at, completed_at, waitlist_entry_id,
			patient_snapshot, provider_snapshot, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16,
			NULL, NULL, NULL,
			NULL, NULL, $17,
			$18, $19, now(), now()
		)
		RETURNING created_at, updated_at
	`, a.ID, a.Number, a.PatientID, a.ProviderID, a.DepartmentID, a.FacilityID, a.SlotID,
		a.Type, a.Mode, a.Status, a.ScheduledTime, a.DurationMinutes, a.Fee, a.PaymentStatus,
		a.RescheduleCount, history, a.WaitlistEntryID, patientSnap, providerSnap)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Search(ctx context.Context, f SearchFilter) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []any

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}

	if f.PatientID != nil {
		add(" AND patient_id = $%d", *f.PatientID)
	}
	if f.ProviderID != nil {
		add(" AND provider_id = $%d", *f.ProviderID)
	}
	if f.DepartmentID != nil {
		add(" AND department_id = $%d", *f.DepartmentID)
	}
	if f.FacilityID != nil {
		add(" AND facility_id = $%d", *f.FacilityID)
	}
	if f.Type != "" {
		add(" AND type = $%d", f.Type)
	}
	if f.Status != nil {
		add(" AND status = $%d", *f.Status)
	}
	if f.From != nil {
		add(" AND scheduled_time >= $%d", *f.From)
	}
	if f.To != nil {
		add(" AND scheduled_time < $%d", *f.To)
	}

	order := "ASC"
	if f.SortDesc {
		order = "DESC"
	}
	query += " ORDER BY scheduled_time " + order

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	add(" LIMIT $%d", limit)
	if f.Offset > 0 {
		add(" OFFSET $%d", f.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) ActiveWindows(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.AppointmentWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_time, scheduled_time + make_interval(mins => duration_minutes)
		FROM appointments
		WHERE provider_id = $1
		  AND status = ANY($2)
		  AND scheduled_time < $3
		  AND scheduled_time + make_interval(mins => duration_minutes) > $4
	`, providerID, NonTerminalStatuses(), to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.AppointmentWindow
	for rows.Next() {
		var w availability.AppointmentWindow
		if err := rows.Scan(&w.Start, &w.End); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (r *PgRepository) Transition(ctx context.Context, id uuid.UUID, from []Status, to Status, set TransitionFields) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    checked_in_at = COALESCE($3, checked_in_at),
		    completed_at = COALESCE($4, completed_at),
		    cancellation_reason = COALESCE($5, cancellation_reason),
		    cancellation_category = COALESCE($6, cancellation_category),
		    refund_amount = COALESCE($7, refund_amount),
		    payment_status = COALESCE($8, payment_status),
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($9)
		RETURNING `+appointmentColumns+`
	`, id, to, set.CheckedInAt, set.CompletedAt,
		set.CancellationReason, set.CancellationCategory, set.RefundAmount, set.PaymentStatus,
		statusStrings(from))
	return scanAppointment(row)
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, from []Status, newTime time.Time, durationMinutes int, newSlotID uuid.UUID, entry RescheduleEntry) (*Appointment, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode reschedule entry: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_time = $2,
		    duration_minutes = $3,
		    slot_id = $4,
		    status = $5,
		    reschedule_count = reschedule_count + 1,
		    reschedule_history = reschedule_history || $6::jsonb,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($7)
		RETURNING `+appointmentColumns+`
	`, id, newTime, durationMinutes, newSlotID, StatusRescheduled, entryJSON, statusStrings(from))
	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, ev.AppointmentID, payload, nullableTime(ev.OccurredAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func statusStrings(in []Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
