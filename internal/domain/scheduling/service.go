package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/pkg/civil"
)

// Directory resolves the patient and professional an appointment refers to.
// *identity.Service satisfies it.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*identity.Professional, error)
}

type Service struct {
	appts     AppointmentRepository
	directory Directory
}

func NewService(appts AppointmentRepository, directory Directory) *Service {
	return &Service{appts: appts, directory: directory}
}

// ParseTime accepts "HH:MM" (or "H:MM") and returns it zero-padded.
func ParseTime(s string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return "", apperr.Invalid("invalid time: expected HH:MM")
	}
	return t.Format("15:04"), nil
}

func (in AppointmentInput) asPatch() AppointmentPatch {
	return AppointmentPatch{
		PatientID:      &in.PatientID,
		ProfessionalID: &in.ProfessionalID,
		Date:           &in.Date,
		Time:           &in.Time,
		Reason:         in.Reason,
	}
}

func apply(a *Appointment, patch AppointmentPatch) error {
	if patch.PatientID != nil {
		if *patch.PatientID == uuid.Nil {
			return apperr.Invalid("patient_id is required")
		}
		a.PatientID = *patch.PatientID
	}
	if patch.ProfessionalID != nil {
		if *patch.ProfessionalID == uuid.Nil {
			return apperr.Invalid("professional_id is required")
		}
		a.ProfessionalID = *patch.ProfessionalID
	}
	if patch.Date != nil {
		raw := strings.TrimSpace(*patch.Date)
		if raw == "" {
			return apperr.Invalid("date is required")
		}
		d, err := civil.ParseDate(raw)
		if err != nil {
			return apperr.Invalid("invalid date: expected YYYY-MM-DD")
		}
		a.Date = d
	}
	if patch.Time != nil {
		if strings.TrimSpace(*patch.Time) == "" {
			return apperr.Invalid("time is required")
		}
		t, err := ParseTime(*patch.Time)
		if err != nil {
			return err
		}
		a.Time = t
	}
	if patch.Reason != nil {
		a.Reason = nil
		if r := strings.TrimSpace(*patch.Reason); r != "" {
			a.Reason = &r
		}
	}
	return nil
}

// checkParties verifies the referenced patient and professional exist.
func (s *Service) checkParties(ctx context.Context, a *Appointment) error {
	if _, err := s.directory.GetPatient(ctx, a.PatientID); err != nil {
		if apperr.IsNotFound(err) {
			return ErrUnknownPatient
		}
		return err
	}
	if _, err := s.directory.GetProfessional(ctx, a.ProfessionalID); err != nil {
		if apperr.IsNotFound(err) {
			return ErrUnknownProfessional
		}
		return err
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, in AppointmentInput) (*Appointment, error) {
	a := &Appointment{}
	if err := apply(a, in.asPatch()); err != nil {
		return nil, err
	}
	if err := s.checkParties(ctx, a); err != nil {
		return nil, err
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(a, patch); err != nil {
		return nil, err
	}
	if patch.PatientID != nil || patch.ProfessionalID != nil {
		if err := s.checkParties(ctx, a); err != nil {
			return nil, err
		}
	}
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.appts.Delete(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.List(ctx, filter, limit, offset)
}
