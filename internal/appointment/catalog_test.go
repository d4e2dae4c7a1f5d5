package appointment

import (
	"context"
	"errors"
	"testing"
)

func TestCreateSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("second active entry for the same day conflicts", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateSchedule(ctx, ScheduleEntry{
			DoctorID:  f.doctor.ID,
			DayOfWeek: 0,
			StartTime: hm(18, 0),
			EndTime:   hm(20, 0),
			Active:    true,
		})
		if !errors.Is(err, ErrScheduleConflict) {
			t.Fatalf("expected ErrScheduleConflict, got %v", err)
		}
	})

	t.Run("width defaults to an hour", func(t *testing.T) {
		f := newFixture(t)
		e, err := f.svc.CreateSchedule(ctx, ScheduleEntry{
			DoctorID:  f.doctor.ID,
			DayOfWeek: 2,
			StartTime: hm(8, 0),
			EndTime:   hm(12, 0),
			Active:    true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.SlotMinutes != DefaultSlotMinutes {
			t.Errorf("expected %d, got %d", DefaultSlotMinutes, e.SlotMinutes)
		}
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		cases := []struct {
			name  string
			entry ScheduleEntry
			want  error
		}{
			{"bad day", ScheduleEntry{DoctorID: f.doctor.ID, DayOfWeek: 7, StartTime: hm(9, 0), EndTime: hm(10, 0)}, ErrInvalidDayOfWeek},
			{"inverted window", ScheduleEntry{DoctorID: f.doctor.ID, DayOfWeek: 3, StartTime: hm(12, 0), EndTime: hm(9, 0)}, ErrInvalidWindow},
			{"empty window", ScheduleEntry{DoctorID: f.doctor.ID, DayOfWeek: 3, StartTime: hm(9, 0), EndTime: hm(9, 0)}, ErrInvalidWindow},
			{"negative width", ScheduleEntry{DoctorID: f.doctor.ID, DayOfWeek: 3, StartTime: hm(9, 0), EndTime: hm(10, 0), SlotMinutes: -15}, ErrInvalidSlotWidth},
			{"unknown doctor", ScheduleEntry{DoctorID: 99999, DayOfWeek: 3, StartTime: hm(9, 0), EndTime: hm(10, 0)}, ErrDoctorNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := f.svc.CreateSchedule(ctx, tc.entry); !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})
}

func TestDeactivateSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entries, err := f.svc.SchedulesByDoctor(ctx, f.doctor.ID)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one active entry, got %d (%v)", len(entries), err)
	}

	if _, err := f.svc.DeactivateSchedule(ctx, entries[0].ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	av, err := f.svc.Availability(ctx, f.doctor.ID, monday)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if av.TotalSlots != 0 || av.Message == "" {
		t.Fatalf("expected an empty day once the entry is inactive, got %+v", av)
	}

	// A fresh active entry for the same day is allowed once the old one is retired.
	if _, err := f.svc.CreateSchedule(ctx, ScheduleEntry{
		DoctorID:    f.doctor.ID,
		DayOfWeek:   0,
		StartTime:   hm(14, 0),
		EndTime:     hm(18, 0),
		SlotMinutes: 30,
		Active:      true,
	}); err != nil {
		t.Fatalf("recreate: %v", err)
	}

	all, err := f.svc.ListSchedules(ctx, ScheduleFilter{DoctorID: &f.doctor.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected retired and active entries, got %d", len(all))
	}
}

func TestUpdateSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entries, err := f.svc.SchedulesByDoctor(ctx, f.doctor.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	width := 30
	updated, err := f.svc.UpdateSchedule(ctx, entries[0].ID, SchedulePatch{SlotMinutes: &width})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := len(EnumerateGrid(*updated)); got != 16 {
		t.Fatalf("expected 16 half-hour slots, got %d", got)
	}

	end := hm(8, 0)
	if _, err := f.svc.UpdateSchedule(ctx, entries[0].ID, SchedulePatch{EndTime: &end}); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}

	if _, err := f.svc.UpdateSchedule(ctx, 424242, SchedulePatch{}); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestCreateBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate returns existing", func(t *testing.T) {
		f := newFixture(t)
		first, created, err := f.svc.CreateBlock(ctx, Block{DoctorID: f.doctor.ID, Date: monday, Time: hm(9, 0)})
		if err != nil || !created {
			t.Fatalf("first block: created=%v err=%v", created, err)
		}
		second, created, err := f.svc.CreateBlock(ctx, Block{DoctorID: f.doctor.ID, Date: monday, Time: hm(9, 0)})
		if err != nil {
			t.Fatalf("second block: %v", err)
		}
		if created || second.ID != first.ID {
			t.Fatalf("expected the existing block back, got created=%v id=%d", created, second.ID)
		}
	})

	t.Run("no schedule needed", func(t *testing.T) {
		f := newFixture(t)
		if _, _, err := f.svc.CreateBlock(ctx, Block{DoctorID: f.doctor.ID, Date: tuesday, Time: hm(7, 15)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("deactivate frees the slot", func(t *testing.T) {
		f := newFixture(t)
		b := f.block(t, monday, hm(9, 0))

		if _, err := f.svc.DeactivateBlock(ctx, b.ID); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		f.book(t, monday, hm(9, 0))

		active, err := f.svc.ListBlocks(ctx, BlockFilter{DoctorID: &f.doctor.ID, ActiveOnly: true})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(active) != 0 {
			t.Fatalf("expected no active blocks, got %d", len(active))
		}

		// Re-blocking after deactivation creates a new row.
		again, created, err := f.svc.CreateBlock(ctx, Block{DoctorID: f.doctor.ID, Date: monday, Time: hm(9, 0)})
		if err != nil || !created || again.ID == b.ID {
			t.Fatalf("expected a new block, got created=%v err=%v", created, err)
		}
	})

	t.Run("unknown doctor", func(t *testing.T) {
		f := newFixture(t)
		if _, _, err := f.svc.CreateBlock(ctx, Block{DoctorID: 777, Date: monday, Time: hm(9, 0)}); !errors.Is(err, ErrDoctorNotFound) {
			t.Fatalf("expected ErrDoctorNotFound, got %v", err)
		}
	})
}
