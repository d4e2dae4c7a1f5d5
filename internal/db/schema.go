package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one ordered schema step. Applied versions are tracked in
// schema_migrations so Migrate is safe to run on every deploy.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{1, "core_catalog", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			role VARCHAR(32) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS specialties (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			description VARCHAR(500) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS doctors (
			id BIGSERIAL PRIMARY KEY,
			uuid UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
			user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			first_names VARCHAR(255) NOT NULL,
			last_names VARCHAR(255) NOT NULL,
			document_id VARCHAR(10) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL,
			phone_number VARCHAR(10) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			hire_date DATE NOT NULL DEFAULT CURRENT_DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS doctor_specialty (
			id BIGSERIAL PRIMARY KEY,
			doctor_id BIGINT NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
			specialty_id BIGINT NOT NULL REFERENCES specialties(id) ON DELETE CASCADE,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (doctor_id, specialty_id)
		);

		CREATE TABLE IF NOT EXISTS patients (
			id BIGSERIAL PRIMARY KEY,
			uuid UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
			first_names VARCHAR(255) NOT NULL,
			last_names VARCHAR(255) NOT NULL,
			document_id VARCHAR(10) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL,
			phone_number VARCHAR(10) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`},
	{2, "scheduling", `
		CREATE TABLE IF NOT EXISTS doctor_schedule (
			id BIGSERIAL PRIMARY KEY,
			doctor_id BIGINT NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
			day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			start_time TIME NOT NULL,
			end_time TIME NOT NULL,
			slot_duration_minutes INTEGER NOT NULL DEFAULT 60 CHECK (slot_duration_minutes > 0),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (start_time < end_time),
			UNIQUE (doctor_id, day_of_week, start_time)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_schedule_active_day
			ON doctor_schedule (doctor_id, day_of_week) WHERE is_active;

		CREATE TABLE IF NOT EXISTS block_time_slots (
			id BIGSERIAL PRIMARY KEY,
			doctor_id BIGINT NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			blocked_time TIME NOT NULL,
			reason VARCHAR(500) NOT NULL DEFAULT '',
			blocked_by_user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_block_active_slot
			ON block_time_slots (doctor_id, date, blocked_time) WHERE is_active;

		CREATE TABLE IF NOT EXISTS appointments (
			id BIGSERIAL PRIMARY KEY,
			uuid UUID NOT NULL UNIQUE,
			patient_id BIGINT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
			doctor_specialist_id BIGINT NOT NULL REFERENCES doctor_specialty(id) ON DELETE CASCADE,
			doctor_id BIGINT NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
			appointment_date DATE NOT NULL,
			appointment_time TIME NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60 CHECK (duration_minutes > 0),
			status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_appointment_live_slot
			ON appointments (doctor_id, appointment_date, appointment_time)
			WHERE status IN ('scheduled', 'confirmed');
		CREATE INDEX IF NOT EXISTS idx_appt_patient_date ON appointments (patient_id, appointment_date);
		CREATE INDEX IF NOT EXISTS idx_appt_status ON appointments (status);
	`},
	{3, "events_and_notifications", `
		CREATE TABLE IF NOT EXISTS event_logs (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			appointment_id BIGINT REFERENCES appointments(id) ON DELETE SET NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			notification_type VARCHAR(30) NOT NULL DEFAULT 'system',
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			appointment_id BIGINT REFERENCES appointments(id) ON DELETE CASCADE,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			read_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_notification_user_read ON notifications (user_id, is_read);
	`},
}

// Migrate applies every migration newer than the recorded version, each in
// its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %03d_%s: %w", m.Version, m.Name, err)
		}
		applied++
	}

	return applied, nil
}
