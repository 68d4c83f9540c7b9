package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrProviderNotFound = errors.New("provider not found")
)

// PatientInfo is the display snapshot the booking core denormalizes onto
// an appointment at creation time.
type PatientInfo struct {
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// ProviderInfo carries display data plus the provider's base consultation
// fee used when a booking request does not supply one.
type ProviderInfo struct {
	Name           string  `json:"name"`
	Specialization string  `json:"specialization"`
	BaseFee        float64 `json:"base_fee"`
}

// Client is the narrow read interface to the identity/directory service.
// The engine never writes through it.
type Client interface {
	GetPatientDisplayInfo(ctx context.Context, patientID uuid.UUID) (*PatientInfo, error)
	GetProviderDisplayInfo(ctx context.Context, providerID uuid.UUID) (*ProviderInfo, error)
}
