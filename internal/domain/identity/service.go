package identity

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/pkg/civil"
)

type Service struct {
	patients      PatientRepository
	professionals ProfessionalRepository
	now           func() time.Time
}

func NewService(patients PatientRepository, professionals ProfessionalRepository) *Service {
	return &Service{patients: patients, professionals: professionals, now: time.Now}
}

// Column widths in characters, matching the patients and professionals
// tables.
const (
	maxNameLen      = 255
	maxSexLen       = 32
	maxPhoneLen     = 32
	maxCRMLen       = 32
	maxSpecialtyLen = 128
	maxEmailLen     = 255
)

func checkLen(field, v string, max int) error {
	if max > 0 && utf8.RuneCountInString(v) > max {
		return apperr.Invalid("%s must be at most %d characters", field, max)
	}
	return nil
}

// optional trims s and maps blank values to nil. max <= 0 means unbounded.
func optional(field string, s *string, max int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if err := checkLen(field, v, max); err != nil {
		return nil, err
	}
	return &v, nil
}

func required(field string, s *string, max int) (string, error) {
	v := strings.TrimSpace(*s)
	if v == "" {
		return "", apperr.Invalid("%s is required", field)
	}
	if err := checkLen(field, v, max); err != nil {
		return "", err
	}
	return v, nil
}

// -- Patient --

func (in PatientInput) asPatch() PatientPatch {
	return PatientPatch{
		Name:      &in.Name,
		CPF:       &in.CPF,
		BirthDate: &in.BirthDate,
		Sex:       &in.Sex,
		Phone:     in.Phone,
		Address:   in.Address,
	}
}

// applyPatient copies the non-nil fields of patch onto p, validating each.
func (s *Service) applyPatient(p *Patient, patch PatientPatch) error {
	var err error
	if patch.Name != nil {
		if p.Name, err = required("name", patch.Name, maxNameLen); err != nil {
			return err
		}
	}
	if patch.CPF != nil {
		raw, err := required("cpf", patch.CPF, 0)
		if err != nil {
			return err
		}
		cpf, ok := NormalizeCPF(raw)
		if !ok {
			return apperr.Invalid("invalid CPF")
		}
		p.CPF = cpf
	}
	if patch.BirthDate != nil {
		raw, err := required("birth_date", patch.BirthDate, 0)
		if err != nil {
			return err
		}
		d, err := civil.ParseDate(raw)
		if err != nil {
			return apperr.Invalid("invalid birth_date: expected YYYY-MM-DD")
		}
		if d.After(civil.DateOf(s.now())) {
			return apperr.Invalid("birth_date cannot be in the future")
		}
		p.BirthDate = d
	}
	if patch.Sex != nil {
		if p.Sex, err = required("sex", patch.Sex, maxSexLen); err != nil {
			return err
		}
	}
	if patch.Phone != nil {
		if p.Phone, err = optional("phone", patch.Phone, maxPhoneLen); err != nil {
			return err
		}
	}
	if patch.Address != nil {
		if p.Address, err = optional("address", patch.Address, 0); err != nil {
			return err
		}
	}
	return nil
}

// ensureCPFFree fails when cpf belongs to a patient other than self.
func (s *Service) ensureCPFFree(ctx context.Context, cpf string, self uuid.UUID) error {
	existing, err := s.patients.GetByCPF(ctx, cpf)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return ErrDuplicateCPF
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, in PatientInput) (*Patient, error) {
	p := &Patient{}
	if err := s.applyPatient(p, in.asPatch()); err != nil {
		return nil, err
	}
	if err := s.ensureCPFFree(ctx, p.CPF, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient applies a partial update. Only fields present in patch
// change.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, patch PatientPatch) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCPF := p.CPF
	if err := s.applyPatient(p, patch); err != nil {
		return nil, err
	}
	if p.CPF != oldCPF {
		if err := s.ensureCPFFree(ctx, p.CPF, p.ID); err != nil {
			return nil, err
		}
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, filter PatientFilter, limit, offset int) ([]*Patient, int, error) {
	filter.Name = strings.TrimSpace(filter.Name)
	return s.patients.List(ctx, filter, limit, offset)
}

// -- Professional --

func (in ProfessionalInput) asPatch() ProfessionalPatch {
	return ProfessionalPatch{
		Name:      &in.Name,
		CRM:       &in.CRM,
		Specialty: in.Specialty,
		Phone:     in.Phone,
		Email:     in.Email,
	}
}

// NormalizeCRM trims and upper-cases a CRM registration such as "12345/sp".
func NormalizeCRM(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (s *Service) applyProfessional(p *Professional, patch ProfessionalPatch) error {
	var err error
	if patch.Name != nil {
		if p.Name, err = required("name", patch.Name, maxNameLen); err != nil {
			return err
		}
	}
	if patch.CRM != nil {
		crm, err := required("crm", patch.CRM, maxCRMLen)
		if err != nil {
			return err
		}
		p.CRM = NormalizeCRM(crm)
	}
	if patch.Specialty != nil {
		if p.Specialty, err = optional("specialty", patch.Specialty, maxSpecialtyLen); err != nil {
			return err
		}
	}
	if patch.Phone != nil {
		if p.Phone, err = optional("phone", patch.Phone, maxPhoneLen); err != nil {
			return err
		}
	}
	if patch.Email != nil {
		if p.Email, err = optional("email", patch.Email, maxEmailLen); err != nil {
			return err
		}
		if p.Email != nil && !strings.Contains(*p.Email, "@") {
			return apperr.Invalid("invalid email")
		}
	}
	return nil
}

func (s *Service) ensureCRMFree(ctx context.Context, crm string, self uuid.UUID) error {
	existing, err := s.professionals.GetByCRM(ctx, crm)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return ErrDuplicateCRM
	}
	return nil
}

func (s *Service) CreateProfessional(ctx context.Context, in ProfessionalInput) (*Professional, error) {
	p := &Professional{}
	if err := s.applyProfessional(p, in.asPatch()); err != nil {
		return nil, err
	}
	if err := s.ensureCRMFree(ctx, p.CRM, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.professionals.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return s.professionals.GetByID(ctx, id)
}

func (s *Service) UpdateProfessional(ctx context.Context, id uuid.UUID, patch ProfessionalPatch) (*Professional, error) {
	p, err := s.professionals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCRM := p.CRM
	if err := s.applyProfessional(p, patch); err != nil {
		return nil, err
	}
	if p.CRM != oldCRM {
		if err := s.ensureCRMFree(ctx, p.CRM, p.ID); err != nil {
			return nil, err
		}
	}
	if err := s.professionals.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteProfessional(ctx context.Context, id uuid.UUID) error {
	return s.professionals.Delete(ctx, id)
}

func (s *Service) ListProfessionals(ctx context.Context, filter ProfessionalFilter, limit, offset int) ([]*Professional, int, error) {
	filter.Specialty = strings.TrimSpace(filter.Specialty)
	return s.professionals.List(ctx, filter, limit, offset)
}
