package waitlist

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

const entryColumns = `
	id, patient_id, provider_id, appointment_type, urgency,
	preferred_from, preferred_until, windows, position, status,
	offered_slot_start, offer_expires_at, created_at, updated_at
`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var windows []byte

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.ProviderID,
		&e.AppointmentType,
		&e.Urgency,
		&e.PreferredFrom,
		&e.PreferredUntil,
		&windows,
		&e.Position,
		&e.Status,
		&e.OfferedSlotStart,
		&e.OfferExpiresAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	if len(windows) > 0 {
		if err := json.Unmarshal(windows, &e.Windows); err != nil {
			return nil, fmt.Errorf("decode time windows: %w", err)
		}
	}
	return &e, nil
}

func (r *PgRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	windows, err := json.Marshal(e.Windows)
	if err != nil {
		return fmt.Errorf("encode time windows: %w", err)
	}

	// Position is computed inside the insert so two concurrent additions
	// for the same provider cannot claim the same position.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries (
			id, patient_id, provider_id, appointment_type, urgency,
			preferred_from, preferred_until, windows, position, status,
			created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8,
		       COALESCE(MAX(position), 0) + 1, $9, now(), now()
		FROM waitlist_entries
		WHERE provider_id = $3
		RETURNING position, created_at, updated_at
	`, e.ID, e.PatientID, e.ProviderID, e.AppointmentType, e.Urgency,
		e.PreferredFrom, e.PreferredUntil, windows, StatusActive)

	if err := row.Scan(&e.Position, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	e.Status = StatusActive
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE provider_id = $1
		ORDER BY position ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *PgRepository) ActiveByPosition(ctx context.Context, providerID uuid.UUID, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE provider_id = $1
		  AND status = $2
		ORDER BY position ASC
		LIMIT $3
	`, providerID, StatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *PgRepository) MarkOffered(ctx context.Context, id uuid.UUID, slotStart, deadline time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = $2,
		    offered_slot_start = $3,
		    offer_expires_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $5
		RETURNING `+entryColumns+`
	`, id, StatusOffered, slotStart, deadline, StatusActive)
	return scanEntry(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to EntryStatus) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+entryColumns+`
	`, id, to, from)
	return scanEntry(row)
}

func (r *PgRepository) ReleaseExpiredOffers(ctx context.Context, providerID uuid.UUID, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = $2,
		    offered_slot_start = NULL,
		    offer_expires_at = NULL,
		    updated_at = now()
		WHERE provider_id = $1
		  AND status = $3
		  AND offer_expires_at < $4
	`, providerID, StatusActive, StatusOffered, now)
	if err != nil {
		return 0, fmt.Errorf("release expired offers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, payload, created_at)
		VALUES ($1, $2, now())
	`, eventType, data)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}
