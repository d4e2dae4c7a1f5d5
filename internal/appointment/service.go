package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var (
	ErrSlotBusy                = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatus           = errors.New("invalid status, expected one of scheduled, confirmed, in_progress, completed, cancelled, no_show")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotReschedulable        = errors.New("only scheduled or confirmed appointments can be rescheduled")
	ErrNoDoctorSpecialty       = errors.New("doctor has no specialties assigned")
	ErrInvalidDuration         = errors.New("duration_minutes must be positive")
)

// SlotLocker serialises writers of one (doctor, date, time) cell.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Service struct {
	repo   Repository
	locker SlotLocker
	events EventSink
	log    zerolog.Logger

	lockBypasses atomic.Int64
}

// NewService wires the booking service. locker and events may be nil, in
// which case bookings rely on the database constraint alone and no events
// are published.
func NewService(repo Repository, locker SlotLocker, events EventSink, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		events: events,
		log:    logger.With().Str("component", "appointment_service").Logger(),
	}
}

type BookingRequest struct {
	PatientID         int64
	DoctorSpecialtyID int64
	Date              time.Time
	Time              TimeOfDay
	DurationMinutes   int
	Notes             string
}

// Availability returns the free slots for a doctor on a date.
func (s *Service) Availability(ctx context.Context, doctorID int64, date time.Time) (*Availability, error) {
	return ComputeAvailability(ctx, s.repo, doctorID, date)
}

// Book creates a scheduled appointment. The slot lock narrows the race
// window; the live-slot unique index decides it.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*AppointmentDetail, error) {
	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	binding, err := s.repo.GetDoctorSpecialty(ctx, req.DoctorSpecialtyID)
	if err != nil {
		if errors.Is(err, ErrDoctorSpecialtyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor specialty: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, binding.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = DefaultSlotMinutes
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}

	date := TruncateDate(req.Date)
	var created *Appointment

	err = s.withSlotLock(ctx, doctor.ID, date, req.Time, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(txCtx context.Context, tx Store) error {
			if err := ValidateBooking(txCtx, tx, doctor.ID, date, req.Time, nil); err != nil {
				return err
			}

			appt, err := tx.CreateAppointment(txCtx, Appointment{
				UUID:              uuid.New(),
				PatientID:         patient.ID,
				DoctorSpecialtyID: binding.ID,
				DoctorID:          doctor.ID,
				Date:              date,
				Time:              req.Time,
				DurationMinutes:   duration,
				Status:            StatusScheduled,
				Notes:             req.Notes,
			})
			if err != nil {
				if errors.Is(err, ErrLiveSlotTaken) {
					return ErrSlotTaken
				}
				return fmt.Errorf("create appointment: %w", err)
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{
		Appointment:   *created,
		PatientName:   patient.FullName(),
		PatientEmail:  patient.Email,
		PatientPhone:  patient.Phone,
		DoctorName:    doctor.FullName(),
		SpecialtyName: binding.SpecialtyName,
	}

	s.emit(ctx, EventAppointmentCreated, s.eventFrom(detail, patient, doctor, ""))

	return detail, nil
}

// DefaultDoctorSpecialty picks the binding a doctor books under when none is
// given: the primary one, else the first one.
func (s *Service) DefaultDoctorSpecialty(ctx context.Context, doctorID int64) (*DoctorSpecialty, error) {
	bindings, err := s.repo.ListDoctorSpecialties(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor specialties: %w", err)
	}
	if len(bindings) == 0 {
		return nil, ErrNoDoctorSpecialty
	}
	for _, b := range bindings {
		if b.IsPrimary {
			return &b, nil
		}
	}
	return &bindings[0], nil
}

// ResolveID accepts either the numeric id or the public UUID of an appointment.
func (s *Service) ResolveID(ctx context.Context, raw string) (int64, error) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	publicID, err := uuid.Parse(raw)
	if err != nil {
		return 0, ErrAppointmentNotFound
	}
	appt, err := s.repo.GetAppointmentByUUID(ctx, publicID)
	if err != nil {
		return 0, err
	}
	return appt.ID, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	if f.Limit <= 0 {
		f.Limit = 50 // default
	}
	if f.Limit > 500 {
		f.Limit = 500 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// DoctorForUser returns the doctor profile linked to an authenticated user.
func (s *Service) DoctorForUser(ctx context.Context, userID int64) (*Doctor, error) {
	return s.repo.GetDoctorByUserID(ctx, userID)
}

var calendarColors = map[AppointmentStatus]string{
	StatusScheduled:  "#10b981",
	StatusConfirmed:  "#3b82f6",
	StatusInProgress: "#f59e0b",
	StatusCompleted:  "#6b7280",
	StatusCancelled:  "#ef4444",
	StatusNoShow:     "#dc2626",
}

// Calendar lists a doctor's appointments between two dates, both inclusive,
// shaped for a calendar view.
func (s *Service) Calendar(ctx context.Context, doctorID int64, from, to *time.Time) ([]CalendarEvent, error) {
	from, to = dateRange(from, to)
	appointments, err := s.repo.ListAppointments(ctx, AppointmentFilter{
		DoctorID: &doctorID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("list calendar appointments: %w", err)
	}

	events := make([]CalendarEvent, 0, len(appointments))
	for _, a := range appointments {
		events = append(events, CalendarEvent{
			ID:            a.ID,
			UUID:          a.UUID,
			Title:         "Consulta - " + a.PatientName,
			Start:         a.Start(),
			End:           a.End(),
			Status:        a.Status,
			Color:         calendarColors[a.Status],
			PatientName:   a.PatientName,
			PatientEmail:  a.PatientEmail,
			PatientPhone:  a.PatientPhone,
			SpecialtyName: a.SpecialtyName,
			Notes:         a.Notes,
		})
	}
	return events, nil
}

func (s *Service) Cancel(ctx context.Context, id int64) (*AppointmentDetail, error) {
	return s.Transition(ctx, id, StatusCancelled)
}

func (s *Service) Confirm(ctx context.Context, id int64) (*AppointmentDetail, error) {
	return s.Transition(ctx, id, StatusConfirmed)
}

func (s *Service) Complete(ctx context.Context, id int64) (*AppointmentDetail, error) {
	return s.Transition(ctx, id, StatusCompleted)
}

// Transition moves an appointment along the status machine. The write is a
// compare-and-set on the current status and never re-checks occupancy.
func (s *Service) Transition(ctx context.Context, id int64, to AppointmentStatus) (*AppointmentDetail, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	from := appt.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, from, to)
	}

	if _, err := s.repo.UpdateAppointmentStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the compare-and-set: deleted or moved by someone else.
			if _, getErr := s.repo.GetAppointmentByID(ctx, id); errors.Is(getErr, ErrAppointmentNotFound) {
				return nil, ErrAppointmentNotFound
			}
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.emitFor(ctx, eventTypeForStatus(to), detail, from)

	return detail, nil
}

type UpdateRequest struct {
	DoctorSpecialtyID *int64
	Date              *time.Time
	Time              *TimeOfDay
	DurationMinutes   *int
	Notes             *string
}

func (r UpdateRequest) movesSlot() bool {
	return r.DoctorSpecialtyID != nil || r.Date != nil || r.Time != nil
}

// Update edits an appointment. Changing the date, time or specialty binding
// re-runs booking validation against the new slot, ignoring the appointment
// itself, and is only allowed while the appointment is live.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*AppointmentDetail, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	next := *current
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return nil, ErrInvalidDuration
		}
		next.DurationMinutes = *req.DurationMinutes
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}

	if !req.movesSlot() {
		if _, err := s.repo.UpdateAppointment(ctx, next); err != nil {
			return nil, fmt.Errorf("update appointment: %w", err)
		}
		return s.updated(ctx, id)
	}

	if !current.Status.Live() {
		return nil, ErrNotReschedulable
	}

	if req.DoctorSpecialtyID != nil {
		binding, err := s.repo.GetDoctorSpecialty(ctx, *req.DoctorSpecialtyID)
		if err != nil {
			if errors.Is(err, ErrDoctorSpecialtyNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load doctor specialty: %w", err)
		}
		next.DoctorSpecialtyID = binding.ID
		next.DoctorID = binding.DoctorID
	}
	if req.Date != nil {
		next.Date = TruncateDate(*req.Date)
	}
	if req.Time != nil {
		next.Time = *req.Time
	}

	err = s.withSlotLock(ctx, next.DoctorID, next.Date, next.Time, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(txCtx context.Context, tx Store) error {
			if err := ValidateBooking(txCtx, tx, next.DoctorID, next.Date, next.Time, &id); err != nil {
				return err
			}
			if _, err := tx.UpdateAppointment(txCtx, next); err != nil {
				if errors.Is(err, ErrLiveSlotTaken) {
					return ErrSlotTaken
				}
				return fmt.Errorf("update appointment: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.updated(ctx, id)
}

func (s *Service) updated(ctx context.Context, id int64) (*AppointmentDetail, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emitFor(ctx, EventAppointmentUpdated, detail, "")
	return detail, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.log.Info().Int64("appointment_id", id).Msg("appointment deleted")
	return nil
}

func (s *Service) withSlotLock(ctx context.Context, doctorID int64, date time.Time, t TimeOfDay, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := redisclient.SlotKey(doctorID, FormatDate(date), t.String())
	err := s.locker.WithSlotLock(ctx, key, fn)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBusy
	case errors.Is(err, redisclient.ErrLockUnavailable):
		// uq_appointment_live_slot still rejects the second writer
		s.lockBypasses.Add(1)
		s.log.Warn().Err(err).Str("key", key).Msg("slot lock unavailable, booking without it")
		return fn(ctx)
	}
	return err
}

// LockBypasses counts writes that went ahead without the slot lock because
// the locker could not be reached.
func (s *Service) LockBypasses() int64 {
	return s.lockBypasses.Load()
}

// HasSlotLock reports whether a locker is configured at all.
func (s *Service) HasSlotLock() bool {
	return s.locker != nil
}

func (s *Service) eventFrom(d *AppointmentDetail, patient *Patient, doctor *Doctor, previous AppointmentStatus) Event {
	ev := Event{
		AppointmentID:   d.ID,
		AppointmentUUID: d.UUID.String(),
		PatientID:       d.PatientID,
		PatientName:     d.PatientName,
		PatientEmail:    d.PatientEmail,
		DoctorID:        d.DoctorID,
		DoctorName:      d.DoctorName,
		SpecialtyName:   d.SpecialtyName,
		Date:            FormatDate(d.Date),
		Time:            d.Time.String(),
		DurationMinutes: d.DurationMinutes,
		Status:          string(d.Status),
		PreviousStatus:  string(previous),
		OccurredAt:      time.Now().UTC(),
	}
	if patient != nil && ev.PatientEmail == "" {
		ev.PatientEmail = patient.Email
	}
	if doctor != nil {
		ev.DoctorUserID = doctor.UserID
	}
	return ev
}

// emitFor loads the doctor behind a detail so the event can address their user.
func (s *Service) emitFor(ctx context.Context, eventType string, d *AppointmentDetail, previous AppointmentStatus) {
	doctor, err := s.repo.GetDoctorByID(ctx, d.DoctorID)
	if err != nil {
		s.log.Warn().Err(err).Int64("appointment_id", d.ID).Msg("load doctor for event")
		doctor = nil
	}
	s.emit(ctx, eventType, s.eventFrom(d, nil, doctor, previous))
}

// emit records the audit row and publishes the event. Both are best effort:
// the ledger write has already committed.
func (s *Service) emit(ctx context.Context, eventType string, ev Event) {
	ctx = context.WithoutCancel(ctx)
	ev.Type = eventType

	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		return
	}

	apptID := ev.AppointmentID
	if err := s.repo.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}); err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Int64("appointment_id", apptID).Msg("insert event log")
	}

	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, eventType, data); err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Int64("appointment_id", apptID).Msg("publish event")
	}
}
