package notify

import (
	"errors"
	"time"
)

const (
	TypeNewAppointment       = "new_appointment"
	TypeAppointmentCancelled = "appointment_cancelled"
	TypeAppointmentConfirmed = "appointment_confirmed"
	TypeAppointmentCompleted = "appointment_completed"
	TypeAppointmentUpdated   = "appointment_updated"
	TypeReminder             = "reminder"
	TypeSystem               = "system"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Notification struct {
	ID            int64
	UserID        int64
	Type          string
	Title         string
	Message       string
	AppointmentID *int64
	IsRead        bool
	ReadAt        *time.Time
	CreatedAt     time.Time
}
