package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
)

const (
	demoAdminUserID     = int64(1)
	demoAssistantUserID = int64(2)
	demoDoctorUserBase  = int64(1000)
)

var demoSpecialties = []string{
	"Psicología Clínica",
	"Medicina General",
	"Pediatría",
	"Nutrición",
}

// seedDemoClinic fills an in-memory store with doctors working weekdays
// 08:00-17:00 in hour slots, plus a set of patients, and logs bearer tokens
// for the staff and the first doctor.
func seedDemoClinic(ctx context.Context, repo *appointment.MemoryRepository, verifier *auth.Verifier, logger zerolog.Logger, doctors, patients int) error {
	var firstDoctorUser int64

	for i := 0; i < doctors; i++ {
		userID := demoDoctorUserBase + int64(i)
		doctor := repo.PutDoctor(appointment.Doctor{
			UserID:     &userID,
			FirstNames: gofakeit.FirstName(),
			LastNames:  gofakeit.LastName(),
			Email:      gofakeit.Email(),
			Active:     true,
		})
		if i == 0 {
			firstDoctorUser = userID
		}

		specialty := i % len(demoSpecialties)
		repo.PutDoctorSpecialty(appointment.DoctorSpecialty{
			DoctorID:      doctor.ID,
			SpecialtyID:   int64(specialty + 1),
			SpecialtyName: demoSpecialties[specialty],
			IsPrimary:     true,
		})

		for day := 0; day < 5; day++ {
			_, err := repo.CreateSchedule(ctx, appointment.ScheduleEntry{
				DoctorID:    doctor.ID,
				DayOfWeek:   day,
				StartTime:   appointment.NewTimeOfDay(8, 0, 0),
				EndTime:     appointment.NewTimeOfDay(17, 0, 0),
				SlotMinutes: appointment.DefaultSlotMinutes,
				Active:      true,
			})
			if err != nil {
				return fmt.Errorf("schedule doctor %d day %d: %w", doctor.ID, day, err)
			}
		}
	}

	for i := 0; i < patients; i++ {
		repo.PutPatient(appointment.Patient{
			FirstNames: gofakeit.FirstName(),
			LastNames:  gofakeit.LastName(),
			DocumentID: gofakeit.Numerify("##########"),
			Email:      gofakeit.Email(),
			Phone:      gofakeit.Numerify("09########"),
			Active:     true,
		})
	}

	logger.Info().Int("doctors", doctors).Int("patients", patients).Msg("demo clinic seeded")

	holders := []tokenHolder{
		{demoAdminUserID, auth.RoleAdmin},
		{demoAssistantUserID, auth.RoleAssistant},
	}
	if doctors > 0 {
		holders = append(holders, tokenHolder{firstDoctorUser, auth.RoleDoctor})
	}
	for _, h := range holders {
		tok, err := verifier.Sign(h.userID, []string{h.role}, 24*time.Hour)
		if err != nil {
			return err
		}
		logger.Info().Str("role", h.role).Int64("user_id", h.userID).Str("token", tok).Msg("bearer token")
	}
	return nil
}

type tokenHolder struct {
	userID int64
	role   string
}
