package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, db: pool}
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PgRepository{pool: r.pool, db: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Helpers

const appointmentColumns = `
	a.id, a.uuid, a.patient_id, a.doctor_specialist_id, a.doctor_id,
	a.appointment_date, a.appointment_time, a.duration_minutes, a.status, a.notes,
	a.created_at, a.updated_at`

const appointmentDetailSelect = `
	SELECT ` + appointmentColumns + `,
		p.first_names || ' ' || p.last_names, p.email, p.phone_number,
		d.first_names || ' ' || d.last_names, sp.name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctor_specialty ds ON ds.id = a.doctor_specialist_id
	JOIN specialties sp ON sp.id = ds.specialty_id
	JOIN doctors d ON d.id = a.doctor_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.UUID,
		&p.FirstNames,
		&p.LastNames,
		&p.DocumentID,
		&p.Email,
		&p.Phone,
		&p.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.UUID,
		&d.UserID,
		&d.FirstNames,
		&d.LastNames,
		&d.Email,
		&d.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanDoctorSpecialty(row pgx.Row) (*DoctorSpecialty, error) {
	var ds DoctorSpecialty

	err := row.Scan(
		&ds.ID,
		&ds.DoctorID,
		&ds.SpecialtyID,
		&ds.SpecialtyName,
		&ds.IsPrimary,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorSpecialtyNotFound
		}
		return nil, err
	}

	return &ds, nil
}

func scanSchedule(row pgx.Row) (*ScheduleEntry, error) {
	var e ScheduleEntry
	var start, end pgtype.Time

	err := row.Scan(
		&e.ID,
		&e.DoctorID,
		&e.DayOfWeek,
		&start,
		&end,
		&e.SlotMinutes,
		&e.Active,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	e.StartTime = timeOfDayFromPg(start)
	e.EndTime = timeOfDayFromPg(end)
	return &e, nil
}

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	var t pgtype.Time

	err := row.Scan(
		&b.ID,
		&b.DoctorID,
		&b.Date,
		&t,
		&b.Reason,
		&b.CreatedBy,
		&b.Active,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	b.Time = timeOfDayFromPg(t)
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var t pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.UUID,
		&a.PatientID,
		&a.DoctorSpecialtyID,
		&a.DoctorID,
		&a.Date,
		&t,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Time = timeOfDayFromPg(t)
	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var t pgtype.Time

	err := row.Scan(
		&d.ID,
		&d.UUID,
		&d.PatientID,
		&d.DoctorSpecialtyID,
		&d.DoctorID,
		&d.Date,
		&t,
		&d.DurationMinutes,
		&d.Status,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.PatientEmail,
		&d.PatientPhone,
		&d.DoctorName,
		&d.SpecialtyName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Time = timeOfDayFromPg(t)
	return &d, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func collectTimes(rows pgx.Rows) ([]TimeOfDay, error) {
	defer rows.Close()

	var result []TimeOfDay
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, timeOfDayFromPg(t))
	}

	return result, rows.Err()
}

// Collaborators

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, uuid, first_names, last_names, document_id, email, phone_number, is_active
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, uuid, user_id, first_names, last_names, email, is_active
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, uuid, user_id, first_names, last_names, email, is_active
		FROM doctors
		WHERE user_id = $1
	`, userID)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorSpecialty(ctx context.Context, id int64) (*DoctorSpecialty, error) {
	row := r.db.QueryRow(ctx, `
		SELECT ds.id, ds.doctor_id, ds.specialty_id, sp.name, ds.is_primary
		FROM doctor_specialty ds
		JOIN specialties sp ON sp.id = ds.specialty_id
		WHERE ds.id = $1
	`, id)
	return scanDoctorSpecialty(row)
}

func (r *PgRepository) ListDoctorSpecialties(ctx context.Context, doctorID int64) ([]DoctorSpecialty, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ds.id, ds.doctor_id, ds.specialty_id, sp.name, ds.is_primary
		FROM doctor_specialty ds
		JOIN specialties sp ON sp.id = ds.specialty_id
		WHERE ds.doctor_id = $1
		ORDER BY ds.id
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDoctorSpecialty)
}

// Schedule catalog

const scheduleColumns = `id, doctor_id, day_of_week, start_time, end_time, slot_duration_minutes, is_active, created_at, updated_at`

func (r *PgRepository) GetActiveSchedule(ctx context.Context, doctorID int64, dayOfWeek int) (*ScheduleEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedule
		WHERE doctor_id = $1 AND day_of_week = $2 AND is_active
	`, doctorID, dayOfWeek)
	return scanSchedule(row)
}

func (r *PgRepository) GetScheduleByID(ctx context.Context, id int64) (*ScheduleEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedule
		WHERE id = $1
	`, id)
	return scanSchedule(row)
}

func (r *PgRepository) ListSchedules(ctx context.Context, f ScheduleFilter) ([]ScheduleEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedule
		WHERE ($1::bigint IS NULL OR doctor_id = $1)
		  AND (NOT $2 OR is_active)
		ORDER BY doctor_id, day_of_week, start_time
	`, f.DoctorID, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSchedule)
}

func (r *PgRepository) CreateSchedule(ctx context.Context, e ScheduleEntry) (*ScheduleEntry, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO doctor_schedule (doctor_id, day_of_week, start_time, end_time, slot_duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+scheduleColumns,
		e.DoctorID, e.DayOfWeek, e.StartTime.pgTime(), e.EndTime.pgTime(), e.SlotMinutes, e.Active)

	created, err := scanSchedule(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateSchedule
	}
	return created, err
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, e ScheduleEntry) (*ScheduleEntry, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE doctor_schedule
		SET day_of_week = $2,
		    start_time = $3,
		    end_time = $4,
		    slot_duration_minutes = $5,
		    is_active = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+scheduleColumns,
		e.ID, e.DayOfWeek, e.StartTime.pgTime(), e.EndTime.pgTime(), e.SlotMinutes, e.Active)

	updated, err := scanSchedule(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateSchedule
	}
	return updated, err
}

// Block registry

const blockColumns = `id, doctor_id, date, blocked_time, reason, blocked_by_user_id, is_active, created_at, updated_at`

func (r *PgRepository) ListBlockedTimes(ctx context.Context, doctorID int64, date time.Time) ([]TimeOfDay, error) {
	rows, err := r.db.Query(ctx, `
		SELECT blocked_time
		FROM block_time_slots
		WHERE doctor_id = $1 AND date = $2 AND is_active
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectTimes(rows)
}

func (r *PgRepository) GetBlockByID(ctx context.Context, id int64) (*Block, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+blockColumns+`
		FROM block_time_slots
		WHERE id = $1
	`, id)
	return scanBlock(row)
}

func (r *PgRepository) GetActiveBlock(ctx context.Context, doctorID int64, date time.Time, t TimeOfDay) (*Block, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+blockColumns+`
		FROM block_time_slots
		WHERE doctor_id = $1 AND date = $2 AND blocked_time = $3 AND is_active
	`, doctorID, date, t.pgTime())
	return scanBlock(row)
}

func (r *PgRepository) ListBlocks(ctx context.Context, f BlockFilter) ([]Block, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+blockColumns+`
		FROM block_time_slots
		WHERE ($1::bigint IS NULL OR doctor_id = $1)
		  AND ($2::date IS NULL OR date = $2)
		  AND (NOT $3 OR is_active)
		ORDER BY date DESC, blocked_time
	`, f.DoctorID, f.Date, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBlock)
}

func (r *PgRepository) CreateBlock(ctx context.Context, b Block) (*Block, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO block_time_slots (doctor_id, date, blocked_time, reason, blocked_by_user_id, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING `+blockColumns,
		b.DoctorID, b.Date, b.Time.pgTime(), b.Reason, b.CreatedBy)

	created, err := scanBlock(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateBlock
	}
	return created, err
}

func (r *PgRepository) DeactivateBlock(ctx context.Context, id int64) (*Block, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE block_time_slots
		SET is_active = FALSE,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+blockColumns, id)
	return scanBlock(row)
}

// Appointment ledger

func (r *PgRepository) ListOccupiedTimes(ctx context.Context, doctorID int64, date time.Time) ([]TimeOfDay, error) {
	rows, err := r.db.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status IN ('scheduled', 'confirmed')
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectTimes(rows)
}

func (r *PgRepository) HasLiveAppointment(ctx context.Context, doctorID int64, date time.Time, t TimeOfDay, excludeID *int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status IN ('scheduled', 'confirmed')
			  AND ($4::bigint IS NULL OR id <> $4)
		)
	`, doctorID, date, t.pgTime(), excludeID).Scan(&exists)
	return exists, err
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments AS a (
			uuid, patient_id, doctor_specialist_id, doctor_id,
			appointment_date, appointment_time, duration_minutes, status, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+appointmentColumns,
		a.UUID, a.PatientID, a.DoctorSpecialtyID, a.DoctorID,
		a.Date, a.Time.pgTime(), a.DurationMinutes, a.Status, a.Notes)

	created, err := scanAppointment(row)
	if isUniqueViolation(err) {
		return nil, ErrLiveSlotTaken
	}
	return created, err
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByUUID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.uuid = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	row := r.db.QueryRow(ctx, appointmentDetailSelect+`
		WHERE a.id = $1
	`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.Date != nil {
		add("a.appointment_date = $%d", *f.Date)
	}
	if f.Status != nil {
		add("a.status = $%d", string(*f.Status))
	}
	if f.From != nil {
		add("a.appointment_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.appointment_date <= $%d", *f.To)
	}

	query := appointmentDetailSelect
	if len(conds) > 0 {
		query += "\n\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\tORDER BY a.appointment_date, a.appointment_time, a.id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf("\n\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointmentDetail)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments AS a
		SET status = $2,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = $3
		RETURNING `+appointmentColumns, id, to, from)

	updated, err := scanAppointment(row)
	if isUniqueViolation(err) {
		return nil, ErrLiveSlotTaken
	}
	return updated, err
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments AS a
		SET doctor_specialist_id = $2,
		    doctor_id = $3,
		    appointment_date = $4,
		    appointment_time = $5,
		    duration_minutes = $6,
		    notes = $7,
		    updated_at = now()
		WHERE a.id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.DoctorSpecialtyID, a.DoctorID, a.Date, a.Time.pgTime(), a.DurationMinutes, a.Notes)

	updated, err := scanAppointment(row)
	if isUniqueViolation(err) {
		return nil, ErrLiveSlotTaken
	}
	return updated, err
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ Repository = (*PgRepository)(nil)
