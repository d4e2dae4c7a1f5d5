package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound         = errors.New("patient not found")
	ErrDoctorNotFound          = errors.New("doctor not found")
	ErrDoctorSpecialtyNotFound = errors.New("doctor specialty not found")
	ErrScheduleNotFound        = errors.New("schedule not found")
	ErrBlockNotFound           = errors.New("blocked slot not found")
	ErrAppointmentNotFound     = errors.New("appointment not found")

	// ErrLiveSlotTaken is returned by writers when the live-slot uniqueness
	// constraint rejects the row.
	ErrLiveSlotTaken = errors.New("live appointment already holds this slot")
	// ErrDuplicateSchedule is returned when an active entry already exists for the weekday.
	ErrDuplicateSchedule = errors.New("duplicate schedule entry")
	ErrDuplicateBlock    = errors.New("duplicate active block")
)

// Store holds the queries the service runs, either directly or inside a transaction.
type Store interface {
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error)
	GetDoctorSpecialty(ctx context.Context, id int64) (*DoctorSpecialty, error)
	ListDoctorSpecialties(ctx context.Context, doctorID int64) ([]DoctorSpecialty, error)

	// Schedule catalog
	GetActiveSchedule(ctx context.Context, doctorID int64, dayOfWeek int) (*ScheduleEntry, error)
	GetScheduleByID(ctx context.Context, id int64) (*ScheduleEntry, error)
	ListSchedules(ctx context.Context, f ScheduleFilter) ([]ScheduleEntry, error)
	CreateSchedule(ctx context.Context, e ScheduleEntry) (*ScheduleEntry, error)
	UpdateSchedule(ctx context.Context, e ScheduleEntry) (*ScheduleEntry, error)

	// Block registry
	ListBlockedTimes(ctx context.Context, doctorID int64, date time.Time) ([]TimeOfDay, error)
	GetBlockByID(ctx context.Context, id int64) (*Block, error)
	GetActiveBlock(ctx context.Context, doctorID int64, date time.Time, t TimeOfDay) (*Block, error)
	ListBlocks(ctx context.Context, f BlockFilter) ([]Block, error)
	CreateBlock(ctx context.Context, b Block) (*Block, error)
	DeactivateBlock(ctx context.Context, id int64) (*Block, error)

	// Appointment ledger
	ListOccupiedTimes(ctx context.Context, doctorID int64, date time.Time) ([]TimeOfDay, error)
	HasLiveAppointment(ctx context.Context, doctorID int64, date time.Time, t TimeOfDay, excludeID *int64) (bool, error)
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	GetAppointmentByUUID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repository is a Store that can also open a transaction. fn receives a Store
// bound to the transaction; returning an error rolls it back.
type Repository interface {
	Store
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
