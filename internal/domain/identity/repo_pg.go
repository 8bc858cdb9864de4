package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

// likeEscaper makes user input literal inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, name, cpf, birth_date, sex, phone, address, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, cpf, birth_date, sex, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.CPF, p.BirthDate, p.Sex, p.Phone, p.Address,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "patients_cpf_key") {
			return ErrDuplicateCPF
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByCPF(ctx context.Context, cpf string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE cpf = $1`, cpf))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			name=$2, cpf=$3, birth_date=$4, sex=$5, phone=$6, address=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.CPF, p.BirthDate, p.Sex, p.Phone, p.Address,
	).Scan(&p.UpdatedAt)
	if err != nil {
		switch {
		case db.IsNotFound(err):
			return ErrPatientNotFound
		case db.IsUniqueViolation(err, "patients_cpf_key"):
			return ErrDuplicateCPF
		}
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err, "appointments_patient_id_fkey") {
			return ErrPatientHasAppointments
		}
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, filter PatientFilter, limit, offset int) ([]*Patient, int, error) {
	where := ""
	args := []interface{}{}
	if filter.Name != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, containsPattern(filter.Name))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+patientCols+` FROM patients%s ORDER BY name, id LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.CPF, &p.BirthDate, &p.Sex, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}

// -- Professional Repository --

type professionalRepoPG struct {
	pool *pgxpool.Pool
}

func NewProfessionalRepo(pool *pgxpool.Pool) ProfessionalRepository {
	return &professionalRepoPG{pool: pool}
}

func (r *professionalRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const professionalCols = `id, name, crm, specialty, phone, email, created_at, updated_at`

func (r *professionalRepoPG) Create(ctx context.Context, p *Professional) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO professionals (id, name, crm, specialty, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.CRM, p.Specialty, p.Phone, p.Email,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "professionals_crm_key") {
			return ErrDuplicateCRM
		}
		return fmt.Errorf("insert professional: %w", err)
	}
	return nil
}

func (r *professionalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return scanProfessional(r.conn(ctx).QueryRow(ctx, `SELECT `+professionalCols+` FROM professionals WHERE id = $1`, id))
}

func (r *professionalRepoPG) GetByCRM(ctx context.Context, crm string) (*Professional, error) {
	return scanProfessional(r.conn(ctx).QueryRow(ctx, `SELECT `+professionalCols+` FROM professionals WHERE crm = $1`, crm))
}

func (r *professionalRepoPG) Update(ctx context.Context, p *Professional) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE professionals SET
			name=$2, crm=$3, specialty=$4, phone=$5, email=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.CRM, p.Specialty, p.Phone, p.Email,
	).Scan(&p.UpdatedAt)
	if err != nil {
		switch {
		case db.IsNotFound(err):
			return ErrProfessionalNotFound
		case db.IsUniqueViolation(err, "professionals_crm_key"):
			return ErrDuplicateCRM
		}
		return fmt.Errorf("update professional: %w", err)
	}
	return nil
}

func (r *professionalRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM professionals WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err, "appointments_professional_id_fkey") {
			return ErrProfessionalHasAppointments
		}
		return fmt.Errorf("delete professional: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfessionalNotFound
	}
	return nil
}

func (r *professionalRepoPG) List(ctx context.Context, filter ProfessionalFilter, limit, offset int) ([]*Professional, int, error) {
	where := ""
	args := []interface{}{}
	if filter.Specialty != "" {
		where = ` WHERE lower(specialty) = lower($1)`
		args = append(args, filter.Specialty)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM professionals`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count professionals: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+professionalCols+` FROM professionals%s ORDER BY name, id LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()

	professionals := []*Professional{}
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, 0, err
		}
		professionals = append(professionals, p)
	}
	return professionals, total, rows.Err()
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.Name, &p.CRM, &p.Specialty, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrProfessionalNotFound
		}
		return nil, fmt.Errorf("scan professional: %w", err)
	}
	return &p, nil
}
