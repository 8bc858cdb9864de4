package records

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// AppointmentLookup is the part of the scheduling service records need.
type AppointmentLookup interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

type Service struct {
	records      RecordRepository
	appointments AppointmentLookup
}

func NewService(records RecordRepository, appointments AppointmentLookup) *Service {
	return &Service{records: records, appointments: appointments}
}

func notes(s string) (string, error) {
	n := strings.TrimSpace(s)
	if n == "" {
		return "", apperr.Invalid("notes is required")
	}
	return n, nil
}

// CreateRecord attaches a note to an existing appointment. An unknown
// appointment yields a not-found error.
func (s *Service) CreateRecord(ctx context.Context, appointmentID uuid.UUID, in RecordInput) (*MedicalRecord, error) {
	if _, err := s.appointments.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	n, err := notes(in.Notes)
	if err != nil {
		return nil, err
	}
	rec := &MedicalRecord{AppointmentID: appointmentID, Notes: n}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ListRecordsByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*MedicalRecord, error) {
	if _, err := s.appointments.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.records.ListByAppointment(ctx, appointmentID)
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) UpdateRecord(ctx context.Context, id uuid.UUID, in RecordInput) (*MedicalRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Notes, err = notes(in.Notes); err != nil {
		return nil, err
	}
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	return s.records.Delete(ctx, id)
}
