package reminder

import (
	"context"
	"encoding/json"
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

func (r *PgRepository) InsertBatch(ctx context.Context, reminders []Reminder) error {
	if len(reminders) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rem := range reminders {
		batch.Queue(`
			INSERT INTO reminders (id, appointment_id, channel, lead_minutes, fire_at, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`, rem.ID, rem.AppointmentID, rem.Channel, int(rem.LeadTime.Minutes()), rem.FireAt, rem.Status)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range reminders {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
	}
	return nil
}

func (r *PgRepository) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET status = $2
		WHERE appointment_id = $1
		  AND status = $3
	`, appointmentID, StatusCancelled, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	// The conditional update claims each row exactly once even with
	// several workers running.
	rows, err := r.pool.Query(ctx, `
		UPDATE reminders
		SET status = $1
		WHERE id IN (
			SELECT id FROM reminders
			WHERE status = $2
			  AND fire_at <= $3
			ORDER BY fire_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, appointment_id, channel, lead_minutes, fire_at, status, created_at
	`, StatusDispatched, StatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reminder
	for rows.Next() {
		var rem Reminder
		var leadMinutes int
		if err := rows.Scan(&rem.ID, &rem.AppointmentID, &rem.Channel, &leadMinutes, &rem.FireAt, &rem.Status, &rem.CreatedAt); err != nil {
			return nil, err
		}
		rem.LeadTime = time.Duration(leadMinutes) * time.Minute
		result = append(result, rem)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, channel, lead_minutes, fire_at, status, created_at
		FROM reminders
		WHERE appointment_id = $1
		ORDER BY fire_at ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reminder
	for rows.Next() {
		var rem Reminder
		var leadMinutes int
		if err := rows.Scan(&rem.ID, &rem.AppointmentID, &rem.Channel, &leadMinutes, &rem.FireAt, &rem.Status, &rem.CreatedAt); err != nil {
			return nil, err
		}
		rem.LeadTime = time.Duration(leadMinutes) * time.Minute
		result = append(result, rem)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, eventType string, appointmentID uuid.UUID, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, eventType, appointmentID, data)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
