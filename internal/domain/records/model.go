package records

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var ErrRecordNotFound = apperr.NotFound("record not found")

// MedicalRecord maps to the medical_records table. Records belong to an
// appointment and are removed with it.
type MedicalRecord struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type RecordInput struct {
	Notes string `json:"notes"`
}
