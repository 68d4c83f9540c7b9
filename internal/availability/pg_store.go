package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgSlotStore struct {
	pool *pgxpool.Pool
}

func NewPgSlotStore(pool *pgxpool.Pool) *PgSlotStore {
	return &PgSlotStore{pool: pool}
}

func (st *PgSlotStore) Materialize(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	// Upsert keyed by (provider, start); a concurrent materialization of the
	// same slot resolves to the existing row.
	row := st.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (
			id, provider_id, department_id, facility_id,
			start_time, end_time, max_appointments, current_appointments,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, now(), now())
		ON CONFLICT (provider_id, start_time)
		DO UPDATE SET updated_at = now()
		RETURNING id, current_appointments
	`, s.ID, s.ProviderID, s.DepartmentID, s.FacilityID,
		s.StartTime, s.EndTime, s.MaxAppointments)

	if err := row.Scan(&s.ID, &s.CurrentAppointments); err != nil {
		return fmt.Errorf("materialize slot: %w", err)
	}
	return nil
}

func (st *PgSlotStore) Reserve(ctx context.Context, slotID uuid.UUID) (bool, error) {
	// The single concurrency control point: one conditional increment,
	// never a read followed by a write.
	tag, err := st.pool.Exec(ctx, `
		UPDATE availability_slots
		SET current_appointments = current_appointments + 1,
		    updated_at = now()
		WHERE id = $1
		  AND current_appointments < max_appointments
	`, slotID)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (st *PgSlotStore) Release(ctx context.Context, slotID uuid.UUID) error {
	_, err := st.pool.Exec(ctx, `
		UPDATE availability_slots
		SET current_appointments = GREATEST(current_appointments - 1, 0),
		    updated_at = now()
		WHERE id = $1
	`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (st *PgSlotStore) UsageIn(ctx context.Context, providerID uuid.UUID, from, to time.Time) (map[time.Time]int, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT start_time, current_appointments
		FROM availability_slots
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := make(map[time.Time]int)
	for rows.Next() {
		var start time.Time
		var count int
		if err := rows.Scan(&start, &count); err != nil {
			return nil, err
		}
		// Keys normalized to UTC so lookups are location-independent.
		usage[start.UTC()] = count
	}
	return usage, rows.Err()
}
