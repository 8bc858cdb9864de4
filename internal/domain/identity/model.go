package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/pkg/civil"
)

var (
	ErrPatientNotFound             = apperr.NotFound("patient not found")
	ErrPatientHasAppointments      = apperr.Conflict("patient has appointments")
	ErrDuplicateCPF                = &apperr.ValidationError{Msg: "patient with this CPF is already registered"}
	ErrProfessionalNotFound        = apperr.NotFound("professional not found")
	ErrProfessionalHasAppointments = apperr.Conflict("professional has appointments")
	ErrDuplicateCRM                = &apperr.ValidationError{Msg: "professional with this CRM is already registered"}
)

// Patient maps to the patients table. CPF is stored as 11 bare digits.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	CPF       string     `db:"cpf" json:"cpf"`
	BirthDate civil.Date `db:"birth_date" json:"birth_date"`
	Sex       string     `db:"sex" json:"sex"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// PatientInput is the body of a create request.
type PatientInput struct {
	Name      string  `json:"name"`
	CPF       string  `json:"cpf"`
	BirthDate string  `json:"birth_date"`
	Sex       string  `json:"sex"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

// PatientPatch is the body of an update request. Nil fields are left as
// they are.
type PatientPatch struct {
	Name      *string `json:"name"`
	CPF       *string `json:"cpf"`
	BirthDate *string `json:"birth_date"`
	Sex       *string `json:"sex"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

type PatientFilter struct {
	Name string
}

// Professional maps to the professionals table.
type Professional struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CRM       string    `db:"crm" json:"crm"`
	Specialty *string   `db:"specialty" json:"specialty,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type ProfessionalInput struct {
	Name      string  `json:"name"`
	CRM       string  `json:"crm"`
	Specialty *string `json:"specialty"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
}

type ProfessionalPatch struct {
	Name      *string `json:"name"`
	CRM       *string `json:"crm"`
	Specialty *string `json:"specialty"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
}

type ProfessionalFilter struct {
	Specialty string
}
