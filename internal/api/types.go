package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

type CreateAppointmentRequest struct {
	Patient          int64  `json:"patient"`
	DoctorSpecialist *int64 `json:"doctor_specialist"`
	AppointmentDate  string `json:"appointment_date"`
	AppointmentTime  string `json:"appointment_time"`
	DurationMinutes  int    `json:"duration_minutes"`
	Notes            string `json:"notes"`
}

type UpdateAppointmentRequest struct {
	DoctorSpecialist *int64  `json:"doctor_specialist"`
	AppointmentDate  *string `json:"appointment_date"`
	AppointmentTime  *string `json:"appointment_time"`
	DurationMinutes  *int    `json:"duration_minutes"`
	Notes            *string `json:"notes"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID               int64     `json:"id"`
	UUID             uuid.UUID `json:"uuid"`
	Patient          int64     `json:"patient"`
	PatientName      string    `json:"patient_name"`
	DoctorSpecialist int64     `json:"doctor_specialist"`
	Doctor           int64     `json:"doctor"`
	DoctorName       string    `json:"doctor_name"`
	SpecialtyName    string    `json:"specialty_name"`
	AppointmentDate  string    `json:"appointment_date"`
	AppointmentTime  string    `json:"appointment_time"`
	DurationMinutes  int       `json:"duration_minutes"`
	Status           string    `json:"status"`
	StatusDisplay    string    `json:"status_display"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppointmentResponse(d *appointment.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		ID:               d.ID,
		UUID:             d.UUID,
		Patient:          d.PatientID,
		PatientName:      d.PatientName,
		DoctorSpecialist: d.DoctorSpecialtyID,
		Doctor:           d.DoctorID,
		DoctorName:       d.DoctorName,
		SpecialtyName:    d.SpecialtyName,
		AppointmentDate:  appointment.FormatDate(d.Date),
		AppointmentTime:  d.Time.String(),
		DurationMinutes:  d.DurationMinutes,
		Status:           string(d.Status),
		StatusDisplay:    d.Status.Label(),
		Notes:            d.Notes,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type TransitionResponse struct {
	Message     string              `json:"message"`
	Appointment AppointmentResponse `json:"appointment"`
}

type AvailabilityResponse struct {
	Date           string   `json:"date"`
	DayName        string   `json:"day_name"`
	AvailableSlots []string `json:"available_slots"`
	TotalSlots     int      `json:"total_slots"`
	AvailableCount int      `json:"available_count"`
	OccupiedCount  int      `json:"occupied_count"`
	BlockedCount   int      `json:"blocked_count"`
	Message        string   `json:"message,omitempty"`
}

func toAvailabilityResponse(a *appointment.Availability) AvailabilityResponse {
	slots := make([]string, 0, len(a.AvailableSlots))
	for _, s := range a.AvailableSlots {
		slots = append(slots, s.String())
	}
	return AvailabilityResponse{
		Date:           appointment.FormatDate(a.Date),
		DayName:        a.DayName,
		AvailableSlots: slots,
		TotalSlots:     a.TotalSlots,
		AvailableCount: a.AvailableCount,
		OccupiedCount:  a.OccupiedCount,
		BlockedCount:   a.BlockedCount,
		Message:        a.Message,
	}
}

type CalendarEventResponse struct {
	ID           int64     `json:"id"`
	UUID         uuid.UUID `json:"uuid"`
	Title        string    `json:"title"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	PatientName  string    `json:"patient_name"`
	PatientEmail string    `json:"patient_email"`
	PatientPhone string    `json:"patient_phone"`
	Specialty    string    `json:"specialty"`
	Status       string    `json:"status"`
	Color        string    `json:"color"`
	Notes        string    `json:"notes"`
}

const calendarLayout = "2006-01-02T15:04:05"

func toCalendarEventResponse(e appointment.CalendarEvent) CalendarEventResponse {
	return CalendarEventResponse{
		ID:           e.ID,
		UUID:         e.UUID,
		Title:        e.Title,
		Start:        e.Start.Format(calendarLayout),
		End:          e.End.Format(calendarLayout),
		PatientName:  e.PatientName,
		PatientEmail: e.PatientEmail,
		PatientPhone: e.PatientPhone,
		Specialty:    e.SpecialtyName,
		Status:       string(e.Status),
		Color:        e.Color,
		Notes:        e.Notes,
	}
}

type ScheduleRequest struct {
	Doctor              int64  `json:"doctor"`
	DayOfWeek           *int   `json:"day_of_week"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	IsActive            *bool  `json:"is_active"`
}

type SchedulePatchRequest struct {
	DayOfWeek           *int    `json:"day_of_week"`
	StartTime           *string `json:"start_time"`
	EndTime             *string `json:"end_time"`
	SlotDurationMinutes *int    `json:"slot_duration_minutes"`
	IsActive            *bool   `json:"is_active"`
}

type ScheduleResponse struct {
	ID                  int64     `json:"id"`
	Doctor              int64     `json:"doctor"`
	DayOfWeek           int       `json:"day_of_week"`
	DayName             string    `json:"day_name"`
	StartTime           string    `json:"start_time"`
	EndTime             string    `json:"end_time"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func toScheduleResponse(e *appointment.ScheduleEntry) ScheduleResponse {
	var dayName string
	if e.DayOfWeek >= 0 && e.DayOfWeek < len(weekdayNames) {
		dayName = weekdayNames[e.DayOfWeek]
	}
	return ScheduleResponse{
		ID:                  e.ID,
		Doctor:              e.DoctorID,
		DayOfWeek:           e.DayOfWeek,
		DayName:             dayName,
		StartTime:           e.StartTime.String(),
		EndTime:             e.EndTime.String(),
		SlotDurationMinutes: e.SlotMinutes,
		IsActive:            e.Active,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

type BlockRequest struct {
	Doctor      int64  `json:"doctor"`
	Date        string `json:"date"`
	BlockedTime string `json:"blocked_time"`
	Reason      string `json:"reason"`
}

type BlockResponse struct {
	ID          int64     `json:"id"`
	Doctor      int64     `json:"doctor"`
	Date        string    `json:"date"`
	BlockedTime string    `json:"blocked_time"`
	Reason      string    `json:"reason"`
	BlockedBy   *int64    `json:"blocked_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toBlockResponse(b *appointment.Block) BlockResponse {
	return BlockResponse{
		ID:          b.ID,
		Doctor:      b.DoctorID,
		Date:        appointment.FormatDate(b.Date),
		BlockedTime: b.Time.String(),
		Reason:      b.Reason,
		BlockedBy:   b.CreatedBy,
		IsActive:    b.Active,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type NotificationResponse struct {
	ID               int64      `json:"id"`
	NotificationType string     `json:"notification_type"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	Appointment      *int64     `json:"appointment"`
	IsRead           bool       `json:"is_read"`
	ReadAt           *time.Time `json:"read_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toNotificationResponse(n *notify.Notification) NotificationResponse {
	return NotificationResponse{
		ID:               n.ID,
		NotificationType: n.Type,
		Title:            n.Title,
		Message:          n.Message,
		Appointment:      n.AppointmentID,
		IsRead:           n.IsRead,
		ReadAt:           n.ReadAt,
		CreatedAt:        n.CreatedAt,
	}
}

type CountResponse struct {
	Count int `json:"count"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
