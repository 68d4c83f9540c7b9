package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgClient reads directory data from the local patients/providers tables.
// It stands in for the external identity service behind the same interface.
type PgClient struct {
	pool *pgxpool.Pool
}

func NewPgClient(pool *pgxpool.Pool) *PgClient {
	return &PgClient{pool: pool}
}

func (c *PgClient) GetPatientDisplayInfo(ctx context.Context, patientID uuid.UUID) (*PatientInfo, error) {
	var p PatientInfo

	err := c.pool.QueryRow(ctx, `
		SELECT name, email, phone
		FROM patients
		WHERE id = $1
	`, patientID).Scan(&p.Name, &p.Email, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (c *PgClient) GetProviderDisplayInfo(ctx context.Context, providerID uuid.UUID) (*ProviderInfo, error) {
	var p ProviderInfo

	err := c.pool.QueryRow(ctx, `
		SELECT name, specialization, base_fee
		FROM providers
		WHERE id = $1
	`, providerID).Scan(&p.Name, &p.Specialization, &p.BaseFee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	return &p, nil
}
