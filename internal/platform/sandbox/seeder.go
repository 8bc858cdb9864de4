// Package sandbox generates reproducible demo data for development and
// sandbox environments. Everything is created through the domain services,
// so the same validation applies as for API clients.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/records"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/civil"
)

// Config controls the volume of generated data.
type Config struct {
	Professionals          int
	Patients               int
	AppointmentsPerPatient int
	Seed                   uint64
	// FirstDay is the earliest appointment date. Zero means tomorrow.
	FirstDay civil.Date
}

func DefaultConfig() Config {
	return Config{
		Professionals:          5,
		Patients:               25,
		AppointmentsPerPatient: 2,
		Seed:                   42,
	}
}

type Result struct {
	Professionals int           `json:"professionals"`
	Patients      int           `json:"patients"`
	Appointments  int           `json:"appointments"`
	Records       int           `json:"records"`
	Duration      time.Duration `json:"duration"`
}

type Directory interface {
	CreatePatient(ctx context.Context, in identity.PatientInput) (*identity.Patient, error)
	CreateProfessional(ctx context.Context, in identity.ProfessionalInput) (*identity.Professional, error)
}

type Scheduler interface {
	CreateAppointment(ctx context.Context, in scheduling.AppointmentInput) (*scheduling.Appointment, error)
}

type Recorder interface {
	CreateRecord(ctx context.Context, appointmentID uuid.UUID, in records.RecordInput) (*records.MedicalRecord, error)
}

// slotsPerDay half-hour slots from 08:00.
const slotsPerDay = 20

var (
	specialties = []string{
		"Cardiology", "Dermatology", "Pediatrics", "Orthopedics",
		"Neurology", "Gynecology", "Psychiatry", "General Practice",
	}
	states  = []string{"SP", "RJ", "MG", "RS", "PR", "BA", "PE", "SC"}
	reasons = []string{
		"routine checkup", "follow-up", "chest pain", "headache",
		"skin rash", "back pain", "vaccination", "lab results review",
	}
)

type Seeder struct {
	cfg       Config
	directory Directory
	scheduler Scheduler
	recorder  Recorder
	logger    zerolog.Logger
	inTx      func(ctx context.Context, fn func(ctx context.Context) error) error
	now       func() time.Time
}

func NewSeeder(cfg Config, directory Directory, scheduler Scheduler, recorder Recorder, logger zerolog.Logger) *Seeder {
	return &Seeder{
		cfg:       cfg,
		directory: directory,
		scheduler: scheduler,
		recorder:  recorder,
		logger:    logger,
		inTx:      db.RunInTx,
		now:       time.Now,
	}
}

// Run creates professionals, then patients, then each patient's
// appointments with one medical record apiece. An appointment and its
// record are written in one transaction.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	start := s.now()
	faker := gofakeit.New(s.cfg.Seed)
	res := &Result{}

	if s.cfg.Professionals <= 0 && s.cfg.Patients > 0 && s.cfg.AppointmentsPerPatient > 0 {
		return nil, fmt.Errorf("seed: appointments need at least one professional")
	}

	crms := map[string]bool{}
	var professionals []uuid.UUID
	for i := 0; i < s.cfg.Professionals; i++ {
		in := fakeProfessional(faker, crms)
		p, err := s.directory.CreateProfessional(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("seed professional %d: %w", i, err)
		}
		professionals = append(professionals, p.ID)
		res.Professionals++
	}

	firstDay := s.cfg.FirstDay
	if firstDay.IsZero() {
		firstDay = civil.DateOf(s.now().AddDate(0, 0, 1))
	}
	nextSlot := make(map[uuid.UUID]int, len(professionals))
	cpfs := map[string]bool{}

	for i := 0; i < s.cfg.Patients; i++ {
		patient, err := s.directory.CreatePatient(ctx, fakePatient(faker, cpfs))
		if err != nil {
			return nil, fmt.Errorf("seed patient %d: %w", i, err)
		}
		res.Patients++

		for j := 0; j < s.cfg.AppointmentsPerPatient; j++ {
			prof := professionals[faker.Number(0, len(professionals)-1)]
			slot := nextSlot[prof]
			nextSlot[prof]++

			reason := faker.RandomString(reasons)
			in := scheduling.AppointmentInput{
				PatientID:      patient.ID,
				ProfessionalID: prof,
				Date:           slotDate(firstDay, slot).String(),
				Time:           slotTime(slot),
				Reason:         &reason,
			}
			notes := faker.Sentence(12)

			err := s.inTx(ctx, func(ctx context.Context) error {
				appt, err := s.scheduler.CreateAppointment(ctx, in)
				if err != nil {
					return err
				}
				_, err = s.recorder.CreateRecord(ctx, appt.ID, records.RecordInput{Notes: notes})
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("seed appointment for patient %s: %w", patient.ID, err)
			}
			res.Appointments++
			res.Records++
		}
	}

	res.Duration = s.now().Sub(start)
	s.logger.Info().
		Int("professionals", res.Professionals).
		Int("patients", res.Patients).
		Int("appointments", res.Appointments).
		Int("records", res.Records).
		Dur("duration", res.Duration).
		Msg("sandbox data seeded")
	return res, nil
}

func slotDate(first civil.Date, slot int) civil.Date {
	return civil.DateOf(first.In(time.UTC).AddDate(0, 0, slot/slotsPerDay))
}

func slotTime(slot int) string {
	minutes := 8*60 + (slot%slotsPerDay)*30
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func fakeCPF(f *gofakeit.Faker, seen map[string]bool) string {
	for {
		var base [9]int
		for i := range base {
			base[i] = f.Number(0, 9)
		}
		cpf := identity.GenerateCPF(base)
		if _, ok := identity.NormalizeCPF(cpf); ok && !seen[cpf] {
			seen[cpf] = true
			return identity.FormatCPF(cpf)
		}
	}
}

func fakePatient(f *gofakeit.Faker, cpfs map[string]bool) identity.PatientInput {
	birth := f.DateRange(
		time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
	)
	phone := f.Phone()
	address := fmt.Sprintf("%s, %s", f.Street(), f.City())
	return identity.PatientInput{
		Name:      f.FirstName() + " " + f.LastName(),
		CPF:       fakeCPF(f, cpfs),
		BirthDate: civil.DateOf(birth).String(),
		Sex:       f.RandomString([]string{"F", "M"}),
		Phone:     &phone,
		Address:   &address,
	}
}

func fakeProfessional(f *gofakeit.Faker, crms map[string]bool) identity.ProfessionalInput {
	var crm string
	for crm == "" || crms[crm] {
		crm = fmt.Sprintf("%d/%s", f.Number(10000, 999999), f.RandomString(states))
	}
	crms[crm] = true

	first, last := f.FirstName(), f.LastName()
	specialty := f.RandomString(specialties)
	email := fmt.Sprintf("%s.%s@clinic.example", first, last)
	phone := f.Phone()
	return identity.ProfessionalInput{
		Name:      "Dr. " + first + " " + last,
		CRM:       crm,
		Specialty: &specialty,
		Phone:     &phone,
		Email:     &email,
	}
}
