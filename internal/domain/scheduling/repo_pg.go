package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, professional_id, date, time, reason, created_at, updated_at`

// classify maps constraint violations raised by insert and update.
func classify(err error) error {
	switch {
	case db.IsUniqueViolation(err, "appointments_professional_slot_key"):
		return ErrSlotTaken
	case db.IsForeignKeyViolation(err, "appointments_patient_id_fkey"):
		return ErrUnknownPatient
	case db.IsForeignKeyViolation(err, "appointments_professional_id_fkey"):
		return ErrUnknownProfessional
	}
	return nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, professional_id, date, time, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.ProfessionalID, a.Date, a.Time, a.Reason,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if mapped := classify(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			patient_id=$2, professional_id=$3, date=$4, time=$5, reason=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientID, a.ProfessionalID, a.Date, a.Time, a.Reason,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return ErrAppointmentNotFound
		}
		if mapped := classify(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

// Delete removes the appointment; its medical records go with it through
// ON DELETE CASCADE.
func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, filter AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.PatientID != nil {
		add("patient_id = $%d", *filter.PatientID)
	}
	if filter.ProfessionalID != nil {
		add("professional_id = $%d", *filter.ProfessionalID)
	}
	if filter.Date != nil {
		add("date = $%d", *filter.Date)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+apptCols+` FROM appointments%s ORDER BY date, time, id LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	appts := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.Date, &a.Time, &a.Reason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}
