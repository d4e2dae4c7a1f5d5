package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

var statusLabels = map[AppointmentStatus]string{
	StatusScheduled:  "Agendada",
	StatusConfirmed:  "Confirmada",
	StatusInProgress: "En Curso",
	StatusCompleted:  "Completada",
	StatusCancelled:  "Cancelada",
	StatusNoShow:     "No Asistió",
}

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow, StatusInProgress},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func ParseStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

func (s AppointmentStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Live reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Live() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s AppointmentStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s AppointmentStatus) Label() string {
	return statusLabels[s]
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LiveStatuses is the set counted as occupying a slot.
var LiveStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed}

type Patient struct {
	ID         int64
	UUID       uuid.UUID
	FirstNames string
	LastNames  string
	DocumentID string
	Email      string
	Phone      string
	Active     bool
}

func (p Patient) FullName() string {
	return p.FirstNames + " " + p.LastNames
}

type Doctor struct {
	ID         int64
	UUID       uuid.UUID
	UserID     *int64
	FirstNames string
	LastNames  string
	Email      string
	Active     bool
}

func (d Doctor) FullName() string {
	return d.FirstNames + " " + d.LastNames
}

// DoctorSpecialty binds a doctor to one of their specialties. Appointments
// reference the binding, not the doctor directly.
type DoctorSpecialty struct {
	ID            int64
	DoctorID      int64
	SpecialtyID   int64
	SpecialtyName string
	IsPrimary     bool
}

// ScheduleEntry is a doctor's recurring working window for one weekday.
type ScheduleEntry struct {
	ID          int64
	DoctorID    int64
	DayOfWeek   int
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	SlotMinutes int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e ScheduleEntry) SlotWidth() time.Duration {
	return time.Duration(e.SlotMinutes) * time.Minute
}

type Block struct {
	ID        int64
	DoctorID  int64
	Date      time.Time
	Time      TimeOfDay
	Reason    string
	CreatedBy *int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID                int64
	UUID              uuid.UUID
	PatientID         int64
	DoctorSpecialtyID int64
	DoctorID          int64
	Date              time.Time
	Time              TimeOfDay
	DurationMinutes   int
	Status            AppointmentStatus
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (a Appointment) Start() time.Time {
	return a.Time.On(a.Date)
}

func (a Appointment) End() time.Time {
	return a.Start().Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// AppointmentDetail is an appointment with the names its readers display.
type AppointmentDetail struct {
	Appointment
	PatientName   string
	PatientEmail  string
	PatientPhone  string
	DoctorName    string
	SpecialtyName string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// Availability is the free-slot view of one doctor on one date.
type Availability struct {
	Date           time.Time
	DayName        string
	AvailableSlots []TimeOfDay
	TotalSlots     int
	AvailableCount int
	OccupiedCount  int
	BlockedCount   int
	Message        string
}

type CalendarEvent struct {
	ID            int64
	UUID          uuid.UUID
	Title         string
	Start         time.Time
	End           time.Time
	Status        AppointmentStatus
	Color         string
	PatientName   string
	PatientEmail  string
	PatientPhone  string
	SpecialtyName string
	Notes         string
}

type AppointmentFilter struct {
	PatientID *int64
	DoctorID  *int64
	Date      *time.Time
	Status    *AppointmentStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type ScheduleFilter struct {
	DoctorID   *int64
	ActiveOnly bool
}

type BlockFilter struct {
	DoctorID   *int64
	Date       *time.Time
	ActiveOnly bool
}
