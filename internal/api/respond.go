package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	switch {
	// booking validation
	case errors.Is(err, appointment.ErrNoScheduleConfigured):
		writeError(w, http.StatusBadRequest, "no_schedule_configured", err.Error())
	case errors.Is(err, appointment.ErrOutOfWindow):
		writeError(w, http.StatusBadRequest, "out_of_window", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusBadRequest, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrSlotBlocked):
		writeError(w, http.StatusBadRequest, "slot_blocked", err.Error())

	// malformed input
	case errors.Is(err, appointment.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, appointment.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrInvalidDayOfWeek),
		errors.Is(err, appointment.ErrInvalidWindow),
		errors.Is(err, appointment.ErrInvalidSlotWidth),
		errors.Is(err, appointment.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrNoDoctorSpecialty):
		writeError(w, http.StatusBadRequest, "no_specialty_assigned", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusBadRequest, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorSpecialtyNotFound):
		writeError(w, http.StatusBadRequest, "doctor_specialty_not_found", err.Error())

	// missing resources
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, appointment.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "blocked_slot_not_found", err.Error())
	case errors.Is(err, notify.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "notification_not_found", err.Error())

	// state conflicts
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrNotReschedulable):
		writeError(w, http.StatusConflict, "not_reschedulable", err.Error())
	case errors.Is(err, appointment.ErrScheduleConflict):
		writeError(w, http.StatusConflict, "schedule_conflict", err.Error())
	case errors.Is(err, appointment.ErrSlotBusy):
		writeError(w, http.StatusConflict, "slot_busy", err.Error())

	default:
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// handleReferenceError treats an unknown doctor named in a request body as a
// validation failure rather than a missing resource.
func handleReferenceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	if errors.Is(err, appointment.ErrDoctorNotFound) {
		writeError(w, http.StatusBadRequest, "doctor_not_found", err.Error())
		return
	}
	handleServiceError(w, r, log, err)
}
