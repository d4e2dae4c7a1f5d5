package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
)

// 2025-11-10 is a Monday, 2025-11-11 a Tuesday.
var (
	monday  = time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, eventType string, payload []byte) (string, error) {
	ev, err := DecodeEvent(payload)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return "0-1", nil
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	repo    *MemoryRepository
	sink    *recordingSink
	svc     *Service
	doctor  Doctor
	binding DoctorSpecialty
	patient Patient
}

// newFixture seeds one doctor working Mondays 09:00-17:00 in 60 minute slots.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	sink := &recordingSink{}
	userID := int64(4242)

	doctor := repo.PutDoctor(Doctor{
		UserID:     &userID,
		FirstNames: gofakeit.FirstName(),
		LastNames:  gofakeit.LastName(),
		Email:      gofakeit.Email(),
		Active:     true,
	})
	binding := repo.PutDoctorSpecialty(DoctorSpecialty{
		DoctorID:      doctor.ID,
		SpecialtyID:   1,
		SpecialtyName: "Psicología Clínica",
		IsPrimary:     true,
	})
	patient := repo.PutPatient(Patient{
		FirstNames: gofakeit.FirstName(),
		LastNames:  gofakeit.LastName(),
		DocumentID: gofakeit.Numerify("##########"),
		Email:      gofakeit.Email(),
		Phone:      gofakeit.Numerify("09########"),
		Active:     true,
	})

	svc := NewService(repo, nil, sink, zerolog.Nop())

	_, err := svc.CreateSchedule(context.Background(), ScheduleEntry{
		DoctorID:    doctor.ID,
		DayOfWeek:   0,
		StartTime:   NewTimeOfDay(9, 0, 0),
		EndTime:     NewTimeOfDay(17, 0, 0),
		SlotMinutes: 60,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	return &fixture{
		repo:    repo,
		sink:    sink,
		svc:     svc,
		doctor:  doctor,
		binding: binding,
		patient: patient,
	}
}

func (f *fixture) book(t *testing.T, date time.Time, at TimeOfDay) *AppointmentDetail {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), BookingRequest{
		PatientID:         f.patient.ID,
		DoctorSpecialtyID: f.binding.ID,
		Date:              date,
		Time:              at,
	})
	if err != nil {
		t.Fatalf("book %s %s: %v", FormatDate(date), at, err)
	}
	return appt
}

func (f *fixture) block(t *testing.T, date time.Time, at TimeOfDay) *Block {
	t.Helper()
	b, _, err := f.svc.CreateBlock(context.Background(), Block{
		DoctorID: f.doctor.ID,
		Date:     date,
		Time:     at,
		Reason:   "Reunión",
	})
	if err != nil {
		t.Fatalf("block %s %s: %v", FormatDate(date), at, err)
	}
	return b
}

func hm(h, m int) TimeOfDay {
	return NewTimeOfDay(h, m, 0)
}
