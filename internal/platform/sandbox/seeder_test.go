package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/records"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/pkg/civil"
)

type fakeClinic struct {
	patients      []identity.PatientInput
	professionals []identity.ProfessionalInput
	appointments  []scheduling.AppointmentInput
	records       map[uuid.UUID]string
	slots         map[string]bool
	failRecord    bool
}

func newFakeClinic() *fakeClinic {
	return &fakeClinic{records: map[uuid.UUID]string{}, slots: map[string]bool{}}
}

func (f *fakeClinic) CreatePatient(_ context.Context, in identity.PatientInput) (*identity.Patient, error) {
	if _, ok := identity.NormalizeCPF(in.CPF); !ok {
		return nil, errors.New("invalid CPF")
	}
	f.patients = append(f.patients, in)
	return &identity.Patient{ID: uuid.New(), Name: in.Name}, nil
}

func (f *fakeClinic) CreateProfessional(_ context.Context, in identity.ProfessionalInput) (*identity.Professional, error) {
	f.professionals = append(f.professionals, in)
	return &identity.Professional{ID: uuid.New(), Name: in.Name}, nil
}

func (f *fakeClinic) CreateAppointment(_ context.Context, in scheduling.AppointmentInput) (*scheduling.Appointment, error) {
	key := in.ProfessionalID.String() + in.Date + in.Time
	if f.slots[key] {
		return nil, scheduling.ErrSlotTaken
	}
	f.slots[key] = true
	f.appointments = append(f.appointments, in)
	return &scheduling.Appointment{ID: uuid.New(), PatientID: in.PatientID, ProfessionalID: in.ProfessionalID}, nil
}

func (f *fakeClinic) CreateRecord(_ context.Context, appointmentID uuid.UUID, in records.RecordInput) (*records.MedicalRecord, error) {
	if f.failRecord {
		return nil, errors.New("disk full")
	}
	f.records[appointmentID] = in.Notes
	return &records.MedicalRecord{ID: uuid.New(), AppointmentID: appointmentID, Notes: in.Notes}, nil
}

func newTestSeeder(cfg Config, clinic *fakeClinic) *Seeder {
	s := NewSeeder(cfg, clinic, clinic, clinic, zerolog.Nop())
	s.inTx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestSeeder_Run(t *testing.T) {
	clinic := newFakeClinic()
	cfg := Config{Professionals: 3, Patients: 10, AppointmentsPerPatient: 4, Seed: 7}

	res, err := newTestSeeder(cfg, clinic).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Professionals)
	assert.Equal(t, 10, res.Patients)
	assert.Equal(t, 40, res.Appointments)
	assert.Equal(t, 40, res.Records)
	assert.Len(t, clinic.records, 40)

	cpfs := map[string]bool{}
	for _, p := range clinic.patients {
		cpf, ok := identity.NormalizeCPF(p.CPF)
		require.True(t, ok, "generated CPF %q must validate", p.CPF)
		assert.False(t, cpfs[cpf], "duplicate CPF %s", cpf)
		cpfs[cpf] = true
		_, err := civil.ParseDate(p.BirthDate)
		assert.NoError(t, err)
	}

	crms := map[string]bool{}
	for _, p := range clinic.professionals {
		assert.False(t, crms[p.CRM], "duplicate CRM %s", p.CRM)
		crms[p.CRM] = true
	}

	for _, a := range clinic.appointments {
		d, err := civil.ParseDate(a.Date)
		require.NoError(t, err)
		assert.False(t, d.Before(civil.Date{Year: 2026, Month: 3, Day: 2}), "appointments start tomorrow")
		_, err = scheduling.ParseTime(a.Time)
		assert.NoError(t, err)
	}
}

func TestSeeder_Reproducible(t *testing.T) {
	cfg := Config{Professionals: 2, Patients: 5, AppointmentsPerPatient: 1, Seed: 99}

	a, b := newFakeClinic(), newFakeClinic()
	_, err := newTestSeeder(cfg, a).Run(context.Background())
	require.NoError(t, err)
	_, err = newTestSeeder(cfg, b).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, b.patients, len(a.patients))
	for i := range a.patients {
		assert.Equal(t, a.patients[i].Name, b.patients[i].Name)
		assert.Equal(t, a.patients[i].CPF, b.patients[i].CPF)
	}
	assert.Equal(t, a.professionals[0].CRM, b.professionals[0].CRM)
}

func TestSeeder_RecordFailureAborts(t *testing.T) {
	clinic := newFakeClinic()
	clinic.failRecord = true
	cfg := Config{Professionals: 1, Patients: 1, AppointmentsPerPatient: 1, Seed: 1}

	_, err := newTestSeeder(cfg, clinic).Run(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestSeeder_NeedsProfessionals(t *testing.T) {
	cfg := Config{Patients: 1, AppointmentsPerPatient: 1}
	_, err := newTestSeeder(cfg, newFakeClinic()).Run(context.Background())
	assert.Error(t, err)
}

func TestSlotLayout(t *testing.T) {
	assert.Equal(t, "08:00", slotTime(0))
	assert.Equal(t, "08:30", slotTime(1))
	assert.Equal(t, "17:30", slotTime(slotsPerDay-1))
	assert.Equal(t, "08:00", slotTime(slotsPerDay))

	first := civil.Date{Year: 2026, Month: 2, Day: 28}
	assert.Equal(t, "2026-02-28", slotDate(first, slotsPerDay-1).String())
	assert.Equal(t, "2026-03-01", slotDate(first, slotsPerDay).String())
}
