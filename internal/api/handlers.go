package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
)

func availableSlotsHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawDoctor := r.URL.Query().Get("doctor")
		rawDate := r.URL.Query().Get("date")
		if rawDoctor == "" || rawDate == "" {
			writeError(w, http.StatusBadRequest, "missing_parameter", "doctor and date are required")
			return
		}

		doctorID, err := strconv.ParseInt(rawDoctor, 10, 64)
		if err != nil || doctorID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_doctor", "doctor must be a positive integer")
			return
		}

		date, err := appointment.ParseDate(rawDate)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		availability, err := svc.Availability(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(availability))
	}
}

// parseBooking turns a create request into a BookingRequest. The binding may be
// left unset for callers that fill it in themselves.
func parseBooking(req CreateAppointmentRequest) (appointment.BookingRequest, error) {
	if req.Patient <= 0 || req.AppointmentDate == "" || req.AppointmentTime == "" {
		return appointment.BookingRequest{}, errMissingBookingFields
	}

	date, err := appointment.ParseDate(req.AppointmentDate)
	if err != nil {
		return appointment.BookingRequest{}, err
	}
	t, err := appointment.ParseTimeOfDay(req.AppointmentTime)
	if err != nil {
		return appointment.BookingRequest{}, err
	}

	booking := appointment.BookingRequest{
		PatientID:       req.Patient,
		Date:            date,
		Time:            t,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	if req.DoctorSpecialist != nil {
		booking.DoctorSpecialtyID = *req.DoctorSpecialist
	}
	return booking, nil
}

var errMissingBookingFields = errors.New("patient, appointment_date and appointment_time are required")

func createAppointmentHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		booking, err := parseBooking(req)
		if err != nil {
			handleBookingInputError(w, r, log, err)
			return
		}
		if booking.DoctorSpecialtyID <= 0 {
			writeError(w, http.StatusBadRequest, "missing_parameter", "doctor_specialist is required")
			return
		}

		book(w, r, svc, log, booking)
	}
}

// createAuthenticatedAppointmentHandler books on behalf of a logged-in user.
// Doctors may omit doctor_specialist and get their default binding.
func createAuthenticatedAppointmentHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		booking, err := parseBooking(req)
		if err != nil {
			handleBookingInputError(w, r, log, err)
			return
		}

		if booking.DoctorSpecialtyID <= 0 {
			id := auth.FromContext(r.Context())
			if !id.IsDoctor() {
				writeError(w, http.StatusBadRequest, "missing_parameter", "doctor_specialist is required")
				return
			}

			doctor, err := svc.DoctorForUser(r.Context(), id.UserID)
			if err != nil {
				handleReferenceError(w, r, log, err)
				return
			}
			binding, err := svc.DefaultDoctorSpecialty(r.Context(), doctor.ID)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			booking.DoctorSpecialtyID = binding.ID
		}

		book(w, r, svc, log, booking)
	}
}

func book(w http.ResponseWriter, r *http.Request, svc *appointment.Service, log zerolog.Logger, booking appointment.BookingRequest) {
	detail, err := svc.Book(r.Context(), booking)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(detail))
}

func handleBookingInputError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	if errors.Is(err, errMissingBookingFields) {
		writeError(w, http.StatusBadRequest, "missing_parameter", err.Error())
		return
	}
	handleServiceError(w, r, log, err)
}

func listAppointmentsHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.AppointmentFilter

		var err error
		if f.PatientID, err = optionalID(q.Get("patient")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient", "patient must be a positive integer")
			return
		}
		if f.DoctorID, err = optionalID(q.Get("doctor")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor", "doctor must be a positive integer")
			return
		}
		if raw := q.Get("date"); raw != "" {
			date, err := appointment.ParseDate(raw)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			f.Date = &date
		}
		if raw := q.Get("status"); raw != "" {
			status, err := appointment.ParseStatus(raw)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			f.Status = &status
		}
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				f.Limit = n
			}
		}
		if raw := q.Get("offset"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				f.Offset = n
			}
		}

		// Doctors only ever see their own agenda.
		if id := auth.FromContext(r.Context()); id.IsDoctor() && !id.IsAdmin() {
			doctor, err := svc.DoctorForUser(r.Context(), id.UserID)
			if err != nil {
				if errors.Is(err, appointment.ErrDoctorNotFound) {
					writeJSON(w, http.StatusOK, []AppointmentResponse{})
					return
				}
				handleServiceError(w, r, log, err)
				return
			}
			f.DoctorID = &doctor.ID
		}

		appointments, err := svc.List(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appointments))
		for i := range appointments {
			resp = append(resp, toAppointmentResponse(&appointments[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func myCalendarHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		if !id.IsDoctor() {
			writeError(w, http.StatusForbidden, "forbidden", "only doctors have a calendar")
			return
		}

		doctor, err := svc.DoctorForUser(r.Context(), id.UserID)
		if err != nil {
			if errors.Is(err, appointment.ErrDoctorNotFound) {
				writeError(w, http.StatusForbidden, "forbidden", "no doctor profile linked to this user")
				return
			}
			handleServiceError(w, r, log, err)
			return
		}

		var from, to *time.Time
		for _, p := range []struct {
			name string
			dst  **time.Time
		}{{"start_date", &from}, {"end_date", &to}} {
			raw := r.URL.Query().Get(p.name)
			if raw == "" {
				continue
			}
			d, err := appointment.ParseDate(raw)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			*p.dst = &d
		}

		events, err := svc.Calendar(r.Context(), doctor.ID, from, to)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := make([]CalendarEventResponse, 0, len(events))
		for _, e := range events {
			resp = append(resp, toCalendarEventResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// appointmentID resolves the {id} path parameter, numeric or UUID.
func appointmentID(w http.ResponseWriter, r *http.Request, svc *appointment.Service, log zerolog.Logger) (int64, bool) {
	id, err := svc.ResolveID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, log, err)
		return 0, false
	}
	return id, true
}

func getAppointmentHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r, svc, log)
		if !ok {
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func updateAppointmentHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r, svc, log)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		update := appointment.UpdateRequest{
			DoctorSpecialtyID: req.DoctorSpecialist,
			DurationMinutes:   req.DurationMinutes,
			Notes:             req.Notes,
		}
		if req.AppointmentDate != nil {
			date, err := appointment.ParseDate(*req.AppointmentDate)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			update.Date = &date
		}
		if req.AppointmentTime != nil {
			t, err := appointment.ParseTimeOfDay(*req.AppointmentTime)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			update.Time = &t
		}

		detail, err := svc.Update(r.Context(), id, update)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func deleteAppointmentHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r, svc, log)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// transitionHandler serves the cancel, confirm and complete shortcuts.
func transitionHandler(svc *appointment.Service, log zerolog.Logger, to appointment.AppointmentStatus, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r, svc, log)
		if !ok {
			return
		}

		detail, err := svc.Transition(r.Context(), id, to)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, TransitionResponse{Message: message, Appointment: toAppointmentResponse(detail)})
	}
}

func changeStatusHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r, svc, log)
		if !ok {
			return
		}

		var req ChangeStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, "missing_parameter", "status is required")
			return
		}

		status, err := appointment.ParseStatus(req.Status)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		detail, err := svc.Transition(r.Context(), id, status)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, TransitionResponse{
			Message:     fmt.Sprintf("Status cambiado a %q", status.Label()),
			Appointment: toAppointmentResponse(detail),
		})
	}
}

func optionalID(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid id %q", raw)
	}
	return &id, nil
}
