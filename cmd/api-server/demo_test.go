package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
)

func TestSeedDemoClinic(t *testing.T) {
	ctx := context.Background()
	repo := appointment.NewMemoryRepository()
	verifier := auth.NewVerifier("test-secret", "")

	if err := seedDemoClinic(ctx, repo, verifier, zerolog.Nop(), 2, 5); err != nil {
		t.Fatalf("seed: %v", err)
	}

	doctor, err := repo.GetDoctorByUserID(ctx, demoDoctorUserBase)
	if err != nil {
		t.Fatalf("first doctor: %v", err)
	}

	svc := appointment.NewService(repo, nil, nil, zerolog.Nop())
	monday := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	avail, err := svc.Availability(ctx, doctor.ID, monday)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.TotalSlots != 9 || len(avail.AvailableSlots) != 9 {
		t.Errorf("expected 9 free hour slots, got total %d free %d", avail.TotalSlots, len(avail.AvailableSlots))
	}

	saturday, err := svc.Availability(ctx, doctor.ID, monday.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("saturday availability: %v", err)
	}
	if saturday.TotalSlots != 0 || saturday.Message == "" {
		t.Errorf("expected no schedule on Saturday, got %+v", saturday)
	}
}
