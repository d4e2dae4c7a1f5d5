package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

func TestBook(t *testing.T) {
	ctx := context.Background()

	t.Run("creates scheduled appointment", func(t *testing.T) {
		f := newFixture(t)

		appt := f.book(t, monday, hm(9, 0))
		if appt.Status != StatusScheduled {
			t.Errorf("expected scheduled, got %s", appt.Status)
		}
		if appt.DurationMinutes != DefaultSlotMinutes {
			t.Errorf("expected default duration, got %d", appt.DurationMinutes)
		}
		if appt.DoctorID != f.doctor.ID {
			t.Errorf("expected doctor %d, got %d", f.doctor.ID, appt.DoctorID)
		}
		if appt.SpecialtyName != f.binding.SpecialtyName {
			t.Errorf("expected specialty %q, got %q", f.binding.SpecialtyName, appt.SpecialtyName)
		}

		types := f.sink.types()
		if len(types) != 1 || types[0] != EventAppointmentCreated {
			t.Errorf("expected one created event, got %v", types)
		}
		if len(f.repo.Events()) != 1 {
			t.Errorf("expected one audit row, got %d", len(f.repo.Events()))
		}
	})

	t.Run("unknown patient", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{PatientID: 999, DoctorSpecialtyID: f.binding.ID, Date: monday, Time: hm(9, 0)})
		if !errors.Is(err, ErrPatientNotFound) {
			t.Fatalf("expected ErrPatientNotFound, got %v", err)
		}
	})

	t.Run("unknown binding", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{PatientID: f.patient.ID, DoctorSpecialtyID: 999, Date: monday, Time: hm(9, 0)})
		if !errors.Is(err, ErrDoctorSpecialtyNotFound) {
			t.Fatalf("expected ErrDoctorSpecialtyNotFound, got %v", err)
		}
	})

	t.Run("second booking of same slot fails", func(t *testing.T) {
		f := newFixture(t)
		f.book(t, monday, hm(9, 0))

		_, err := f.svc.Book(ctx, BookingRequest{PatientID: f.patient.ID, DoctorSpecialtyID: f.binding.ID, Date: monday, Time: hm(9, 0)})
		if !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})

	t.Run("conflict spans specialty bindings", func(t *testing.T) {
		f := newFixture(t)
		other := f.repo.PutDoctorSpecialty(DoctorSpecialty{DoctorID: f.doctor.ID, SpecialtyID: 2, SpecialtyName: "Terapia Familiar"})
		f.book(t, monday, hm(9, 0))

		_, err := f.svc.Book(ctx, BookingRequest{PatientID: f.patient.ID, DoctorSpecialtyID: other.ID, Date: monday, Time: hm(9, 0)})
		if !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})

	t.Run("negative duration", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{PatientID: f.patient.ID, DoctorSpecialtyID: f.binding.ID, Date: monday, Time: hm(9, 0), DurationMinutes: -5})
		if !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("expected ErrInvalidDuration, got %v", err)
		}
	})
}

func TestBookConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const writers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)

	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Book(ctx, BookingRequest{
				PatientID:         f.patient.ID,
				DoctorSpecialtyID: f.binding.ID,
				Date:              monday,
				Time:              hm(14, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotTaken):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	if conflicts != writers-1 {
		t.Fatalf("expected %d conflicts, got %d (other errors: %v)", writers-1, conflicts, others)
	}

	live, err := f.repo.ListOccupiedTimes(ctx, f.doctor.ID, monday)
	if err != nil {
		t.Fatalf("list occupied: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("expected one live appointment, got %d", len(live))
	}
}

type serialLocker struct {
	mu   sync.Mutex
	keys []string
	fail error
}

func (l *serialLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l.fail != nil {
		return l.fail
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func TestBookUsesSlotLock(t *testing.T) {
	f := newFixture(t)
	locker := &serialLocker{}
	svc := NewService(f.repo, locker, nil, zerolog.Nop())

	_, err := svc.Book(context.Background(), BookingRequest{
		PatientID:         f.patient.ID,
		DoctorSpecialtyID: f.binding.ID,
		Date:              monday,
		Time:              hm(15, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(locker.keys) != 1 {
		t.Fatalf("expected one lock, got %v", locker.keys)
	}
	want := "lock:slot:" + itoa(f.doctor.ID) + ":2025-11-10:15:00:00"
	if locker.keys[0] != want {
		t.Errorf("expected key %q, got %q", want, locker.keys[0])
	}
}

func TestBookSlotBusy(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, &serialLocker{fail: redisclient.ErrLockNotAcquired}, nil, zerolog.Nop())

	_, err := svc.Book(context.Background(), BookingRequest{
		PatientID:         f.patient.ID,
		DoctorSpecialtyID: f.binding.ID,
		Date:              monday,
		Time:              hm(15, 0),
	})
	if !errors.Is(err, ErrSlotBusy) {
		t.Fatalf("expected ErrSlotBusy, got %v", err)
	}
}

func TestBookWithoutReachableLock(t *testing.T) {
	f := newFixture(t)
	down := fmt.Errorf("%w: dial tcp 127.0.0.1:1: connect: connection refused", redisclient.ErrLockUnavailable)
	svc := NewService(f.repo, &serialLocker{fail: down}, nil, zerolog.Nop())
	ctx := context.Background()
	req := BookingRequest{
		PatientID:         f.patient.ID,
		DoctorSpecialtyID: f.binding.ID,
		Date:              monday,
		Time:              hm(15, 0),
	}

	if _, err := svc.Book(ctx, req); err != nil {
		t.Fatalf("expected booking to fall back to the database, got %v", err)
	}
	if got := svc.LockBypasses(); got != 1 {
		t.Errorf("expected one bypass, got %d", got)
	}

	_, err := svc.Book(ctx, req)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken on the second booking, got %v", err)
	}
}

// staleReadRepo hands transactions a store whose conflict check always reports
// a free slot, leaving the unique index as the only guard.
type staleReadRepo struct {
	*MemoryRepository
}

func (r staleReadRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return r.MemoryRepository.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		return fn(ctx, staleReadStore{tx})
	})
}

type staleReadStore struct {
	Store
}

func (staleReadStore) HasLiveAppointment(context.Context, int64, time.Time, TimeOfDay, *int64) (bool, error) {
	return false, nil
}

func TestUniqueSlotConstraint(t *testing.T) {
	ctx := context.Background()

	t.Run("book", func(t *testing.T) {
		f := newFixture(t)
		svc := NewService(staleReadRepo{f.repo}, nil, nil, zerolog.Nop())
		req := BookingRequest{
			PatientID:         f.patient.ID,
			DoctorSpecialtyID: f.binding.ID,
			Date:              monday,
			Time:              hm(9, 0),
		}

		if _, err := svc.Book(ctx, req); err != nil {
			t.Fatalf("first booking: %v", err)
		}
		_, err := svc.Book(ctx, req)
		if !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}

		live, err := f.repo.ListOccupiedTimes(ctx, f.doctor.ID, monday)
		if err != nil {
			t.Fatalf("list occupied: %v", err)
		}
		if len(live) != 1 {
			t.Fatalf("expected one live appointment, got %d", len(live))
		}
	})

	t.Run("reschedule", func(t *testing.T) {
		f := newFixture(t)
		svc := NewService(staleReadRepo{f.repo}, nil, nil, zerolog.Nop())
		first := f.book(t, monday, hm(9, 0))
		f.book(t, monday, hm(10, 0))
		at := hm(10, 0)

		_, err := svc.Update(ctx, first.ID, UpdateRequest{Time: &at})
		if !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}

		got, err := f.repo.GetAppointmentByID(ctx, first.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Time != hm(9, 0) {
			t.Errorf("expected appointment to stay at 09:00, got %s", got.Time)
		}
	})
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, monday, hm(9, 0))

	cancelled, err := f.svc.Cancel(ctx, appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	av, err := f.svc.Availability(ctx, f.doctor.ID, monday)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if av.AvailableCount != 8 {
		t.Fatalf("expected slot to be free again, got %d available", av.AvailableCount)
	}

	f.book(t, monday, hm(9, 0))

	types := f.sink.types()
	if len(types) != 3 || types[1] != EventAppointmentCancelled {
		t.Errorf("unexpected events %v", types)
	}
}

func TestNoShowFreesSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, monday, hm(9, 0))

	if _, err := f.svc.Transition(context.Background(), appt.ID, StatusNoShow); err != nil {
		t.Fatalf("transition: %v", err)
	}
	f.book(t, monday, hm(9, 0))
}

func TestBlockLeavesAppointmentUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, monday, hm(10, 0))
	f.block(t, monday, hm(10, 0))

	got, err := f.svc.Get(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusScheduled {
		t.Fatalf("expected appointment to stay scheduled, got %s", got.Status)
	}

	if _, err := f.svc.Cancel(ctx, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err = f.svc.Book(ctx, BookingRequest{PatientID: f.patient.ID, DoctorSpecialtyID: f.binding.ID, Date: monday, Time: hm(10, 0)})
	if !errors.Is(err, ErrSlotBlocked) {
		t.Fatalf("expected ErrSlotBlocked after cancel, got %v", err)
	}
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm then complete", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))

		if _, err := f.svc.Confirm(ctx, appt.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		done, err := f.svc.Complete(ctx, appt.ID)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if done.Status != StatusCompleted {
			t.Fatalf("expected completed, got %s", done.Status)
		}

		types := f.sink.types()
		want := []string{EventAppointmentCreated, EventAppointmentConfirmed, EventAppointmentCompleted}
		if len(types) != len(want) {
			t.Fatalf("expected %v, got %v", want, types)
		}
		for i := range want {
			if types[i] != want[i] {
				t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
			}
		}
	})

	t.Run("terminal status rejects moves", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))

		if _, err := f.svc.Cancel(ctx, appt.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		_, err := f.svc.Confirm(ctx, appt.ID)
		if !errors.Is(err, ErrInvalidStatusTransition) {
			t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
		}
		_, err = f.svc.Transition(ctx, appt.ID, StatusScheduled)
		if !errors.Is(err, ErrInvalidStatusTransition) {
			t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
		}
	})

	t.Run("unknown status value", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))

		_, err := f.svc.Transition(ctx, appt.ID, AppointmentStatus("archived"))
		if !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("unknown appointment", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Cancel(ctx, 12345)
		if !errors.Is(err, ErrAppointmentNotFound) {
			t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
		}
	})

	t.Run("status change event carries previous status", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))

		if _, err := f.svc.Transition(ctx, appt.ID, StatusInProgress); err != nil {
			t.Fatalf("transition: %v", err)
		}

		f.sink.mu.Lock()
		last := f.sink.events[len(f.sink.events)-1]
		f.sink.mu.Unlock()
		if last.Type != EventAppointmentStatusChanged {
			t.Fatalf("expected status_changed, got %s", last.Type)
		}
		if last.PreviousStatus != string(StatusScheduled) || last.Status != string(StatusInProgress) {
			t.Errorf("unexpected statuses %s -> %s", last.PreviousStatus, last.Status)
		}
		if last.DoctorUserID == nil || *last.DoctorUserID != *f.doctor.UserID {
			t.Errorf("expected doctor user id on event")
		}
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("reschedule onto own slot passes", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))
		at := hm(9, 0)
		notes := "control"

		got, err := f.svc.Update(ctx, appt.ID, UpdateRequest{Time: &at, Notes: &notes})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.Notes != notes {
			t.Errorf("expected notes %q, got %q", notes, got.Notes)
		}
	})

	t.Run("reschedule moves the slot", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))
		at := hm(13, 0)

		got, err := f.svc.Update(ctx, appt.ID, UpdateRequest{Time: &at})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.Time != at {
			t.Fatalf("expected %s, got %s", at, got.Time)
		}

		f.book(t, monday, hm(9, 0))
	})

	t.Run("reschedule onto taken slot", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))
		f.book(t, monday, hm(10, 0))
		at := hm(10, 0)

		_, err := f.svc.Update(ctx, appt.ID, UpdateRequest{Time: &at})
		if !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})

	t.Run("reschedule to a day without schedule", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))
		d := tuesday

		_, err := f.svc.Update(ctx, appt.ID, UpdateRequest{Date: &d})
		if !errors.Is(err, ErrNoScheduleConfigured) {
			t.Fatalf("expected ErrNoScheduleConfigured, got %v", err)
		}
	})

	t.Run("cancelled appointment cannot move", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, monday, hm(9, 0))
		if _, err := f.svc.Cancel(ctx, appt.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		at := hm(11, 0)

		_, err := f.svc.Update(ctx, appt.ID, UpdateRequest{Time: &at})
		if !errors.Is(err, ErrNotReschedulable) {
			t.Fatalf("expected ErrNotReschedulable, got %v", err)
		}

		notes := "llamó para reprogramar"
		if _, err := f.svc.Update(ctx, appt.ID, UpdateRequest{Notes: &notes}); err != nil {
			t.Fatalf("notes on cancelled appointment: %v", err)
		}
	})
}

func TestDefaultDoctorSpecialty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.repo.PutDoctorSpecialty(DoctorSpecialty{DoctorID: f.doctor.ID, SpecialtyID: 7, SpecialtyName: "Neuropsicología"})

	got, err := f.svc.DefaultDoctorSpecialty(ctx, f.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != f.binding.ID {
		t.Errorf("expected primary binding %d, got %d", f.binding.ID, got.ID)
	}

	lonely := f.repo.PutDoctor(Doctor{FirstNames: "Ana", LastNames: "Vera", Active: true})
	if _, err := f.svc.DefaultDoctorSpecialty(ctx, lonely.ID); !errors.Is(err, ErrNoDoctorSpecialty) {
		t.Errorf("expected ErrNoDoctorSpecialty, got %v", err)
	}

	second := f.repo.PutDoctor(Doctor{FirstNames: "Luis", LastNames: "Mora", Active: true})
	first := f.repo.PutDoctorSpecialty(DoctorSpecialty{DoctorID: second.ID, SpecialtyID: 3, SpecialtyName: "Pediatría"})
	f.repo.PutDoctorSpecialty(DoctorSpecialty{DoctorID: second.ID, SpecialtyID: 4, SpecialtyName: "Nutrición"})
	got, err = f.svc.DefaultDoctorSpecialty(ctx, second.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("expected first binding %d, got %d", first.ID, got.ID)
	}
}

func TestResolveID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, monday, hm(9, 0))

	id, err := f.svc.ResolveID(ctx, appt.UUID.String())
	if err != nil || id != appt.ID {
		t.Fatalf("resolve by uuid: id=%d err=%v", id, err)
	}
	id, err = f.svc.ResolveID(ctx, itoa(appt.ID))
	if err != nil || id != appt.ID {
		t.Fatalf("resolve by id: id=%d err=%v", id, err)
	}
	if _, err := f.svc.ResolveID(ctx, "not-an-id"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.book(t, monday, hm(9, 0))
	b := f.book(t, monday.AddDate(0, 0, 7), hm(10, 0))
	if _, err := f.svc.Confirm(ctx, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	from := monday
	to := monday.AddDate(0, 0, 6)
	events, err := f.svc.Calendar(ctx, f.doctor.ID, &from, &to)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(events) != 1 || events[0].ID != a.ID {
		t.Fatalf("expected only the first week's appointment, got %+v", events)
	}
	ev := events[0]
	if !ev.End.Equal(ev.Start.Add(time.Hour)) {
		t.Errorf("expected a one hour event, got %s - %s", ev.Start, ev.End)
	}
	if ev.Color != "#10b981" {
		t.Errorf("expected scheduled colour, got %s", ev.Color)
	}

	all, err := f.svc.Calendar(ctx, f.doctor.ID, nil, nil)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(all) != 2 || all[1].Color != "#3b82f6" {
		t.Fatalf("expected two events with the confirmed colour last, got %+v", all)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, monday, hm(9, 0))

	if err := f.svc.Delete(ctx, appt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	if err := f.svc.Delete(ctx, appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound on second delete, got %v", err)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
