package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/pkg/civil"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment not found")
	ErrSlotTaken           = apperr.Conflict("professional already booked at this time")
	ErrUnknownPatient      = &apperr.ValidationError{Msg: "patient not found"}
	ErrUnknownProfessional = &apperr.ValidationError{Msg: "professional not found"}
)

// Appointment maps to the appointments table. Time is wall-clock "HH:MM";
// a professional holds at most one appointment per date and time.
type Appointment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProfessionalID uuid.UUID  `db:"professional_id" json:"professional_id"`
	Date           civil.Date `db:"date" json:"date"`
	Time           string     `db:"time" json:"time"`
	Reason         *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type AppointmentInput struct {
	PatientID      uuid.UUID `json:"patient_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Reason         *string   `json:"reason"`
}

// AppointmentPatch is a partial update; nil fields are kept.
type AppointmentPatch struct {
	PatientID      *uuid.UUID `json:"patient_id"`
	ProfessionalID *uuid.UUID `json:"professional_id"`
	Date           *string    `json:"date"`
	Time           *string    `json:"time"`
	Reason         *string    `json:"reason"`
}

type AppointmentFilter struct {
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
	Date           *civil.Date
}
