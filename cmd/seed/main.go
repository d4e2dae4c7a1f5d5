package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

var specialties = []string{
	"Psicología Clínica",
	"Psiquiatría",
	"Medicina General",
	"Pediatría",
	"Cardiología",
	"Dermatología",
	"Nutrición",
	"Terapia de Pareja",
}

type tokenHolder struct {
	userID int64
	role   string
}

type seedOptions struct {
	doctors    int
	patients   int
	workdays   int
	startHour  int
	endHour    int
	slotMins   int
	runMigrate bool
}

func main() {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with fake doctors, schedules and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().IntVar(&opts.doctors, "doctors", 20, "number of doctors")
	cmd.Flags().IntVar(&opts.patients, "patients", 2000, "number of patients")
	cmd.Flags().IntVar(&opts.workdays, "workdays", 5, "weekdays each doctor works, starting Monday")
	cmd.Flags().IntVar(&opts.startHour, "start-hour", 8, "first hour of the working window")
	cmd.Flags().IntVar(&opts.endHour, "end-hour", 17, "hour the working window ends")
	cmd.Flags().IntVar(&opts.slotMins, "slot-minutes", 60, "slot width in minutes")
	cmd.Flags().BoolVar(&opts.runMigrate, "migrate", true, "apply migrations before seeding")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts seedOptions) error {
	cfg, err := config.Load(config.WithStorage(config.StoragePostgres))
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Env, "seed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if opts.runMigrate {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info().Int("applied", applied).Msg("migrations applied")
	}

	staff, err := seedStaff(ctx, pool)
	if err != nil {
		return fmt.Errorf("seed staff: %w", err)
	}

	doctorUsers, err := seedDoctors(ctx, pool, logger, opts)
	if err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}

	if err := seedPatients(ctx, pool, logger, opts.patients); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	// Print a few ready-made bearer tokens for manual testing.
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	holders := []tokenHolder{
		{staff[auth.RoleAdmin], auth.RoleAdmin},
		{staff[auth.RoleAssistant], auth.RoleAssistant},
	}
	if len(doctorUsers) > 0 {
		holders = append(holders, tokenHolder{doctorUsers[0], auth.RoleDoctor})
	}
	for _, h := range holders {
		tok, err := verifier.Sign(h.userID, []string{h.role}, 24*time.Hour)
		if err != nil {
			return err
		}
		logger.Info().Str("role", h.role).Int64("user_id", h.userID).Str("token", tok).Msg("bearer token")
	}

	logger.Info().Msg("seed complete")
	return nil
}

func upsertUser(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, email, role string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO users (email, role) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role, updated_at = now()
		RETURNING id
	`, email, role).Scan(&id)
	return id, err
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, role := range []string{auth.RoleAdmin, auth.RoleAssistant} {
		id, err := upsertUser(ctx, pool, role+"@clinica.local", role)
		if err != nil {
			return nil, err
		}
		out[role] = id
	}
	return out, nil
}

// seedDoctors creates doctors with a linked user, one or two specialty
// bindings and a weekly schedule. It returns the doctors' user ids.
func seedDoctors(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, opts seedOptions) ([]int64, error) {
	logger.Info().Int("count", opts.doctors).Msg("seeding doctors")

	var userIDs []int64
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		specialtyIDs := make([]int64, 0, len(specialties))
		for _, name := range specialties {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO specialties (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET updated_at = now()
				RETURNING id
			`, name).Scan(&id)
			if err != nil {
				return err
			}
			specialtyIDs = append(specialtyIDs, id)
		}

		stamp := time.Now().Unix()
		for i := 0; i < opts.doctors; i++ {
			userID, err := upsertUser(ctx, tx, fmt.Sprintf("doctor%d.%d@clinica.local", stamp, i), auth.RoleDoctor)
			if err != nil {
				return err
			}
			userIDs = append(userIDs, userID)

			var doctorID int64
			err = tx.QueryRow(ctx, `
				INSERT INTO doctors (user_id, first_names, last_names, document_id, email, phone_number)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, userID, gofakeit.FirstName(), gofakeit.LastName(),
				gofakeit.Numerify("##########"), gofakeit.Email(), gofakeit.Numerify("09########"),
			).Scan(&doctorID)
			if err != nil {
				return err
			}

			primary := gofakeit.Number(0, len(specialtyIDs)-1)
			bindings := []int{primary}
			if gofakeit.Bool() {
				bindings = append(bindings, (primary+1)%len(specialtyIDs))
			}
			for j, idx := range bindings {
				if _, err := tx.Exec(ctx, `
					INSERT INTO doctor_specialty (doctor_id, specialty_id, is_primary)
					VALUES ($1, $2, $3)
				`, doctorID, specialtyIDs[idx], j == 0); err != nil {
					return err
				}
			}

			for day := 0; day < opts.workdays && day < 7; day++ {
				if _, err := tx.Exec(ctx, `
					INSERT INTO doctor_schedule (doctor_id, day_of_week, start_time, end_time, slot_duration_minutes)
					VALUES ($1, $2, make_time($3, 0, 0), make_time($4, 0, 0), $5)
				`, doctorID, day, opts.startHour, opts.endHour, opts.slotMins); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Msg("doctors seeded")
	return userIDs, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			batch.Queue(`
				INSERT INTO patients (first_names, last_names, document_id, email, phone_number)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (document_id) DO NOTHING
			`, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Numerify("##########"),
				gofakeit.Email(), gofakeit.Numerify("09########"))
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}
