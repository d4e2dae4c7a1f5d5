package appointment

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentConfirmed     = "appointment.confirmed"
	EventAppointmentCancelled     = "appointment.cancelled"
	EventAppointmentCompleted     = "appointment.completed"
	EventAppointmentUpdated       = "appointment.updated"
	EventAppointmentStatusChanged = "appointment.status_changed"
)

// EventSink publishes serialized booking events to downstream consumers.
type EventSink interface {
	Publish(ctx context.Context, eventType string, payload []byte) (string, error)
}

// Event is the payload carried on the appointment event stream. It holds
// everything the notify worker needs so it does not read the ledger back.
type Event struct {
	Type            string    `json:"type"`
	AppointmentID   int64     `json:"appointment_id"`
	AppointmentUUID string    `json:"appointment_uuid"`
	PatientID       int64     `json:"patient_id"`
	PatientName     string    `json:"patient_name"`
	PatientEmail    string    `json:"patient_email,omitempty"`
	DoctorID        int64     `json:"doctor_id"`
	DoctorUserID    *int64    `json:"doctor_user_id,omitempty"`
	DoctorName      string    `json:"doctor_name"`
	SpecialtyName   string    `json:"specialty_name"`
	Date            string    `json:"appointment_date"`
	Time            string    `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	PreviousStatus  string    `json:"previous_status,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

func eventTypeForStatus(to AppointmentStatus) string {
	switch to {
	case StatusConfirmed:
		return EventAppointmentConfirmed
	case StatusCancelled:
		return EventAppointmentCancelled
	case StatusCompleted:
		return EventAppointmentCompleted
	default:
		return EventAppointmentStatusChanged
	}
}
