package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
)

func listSchedulesHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.ScheduleFilter

		doctorID, err := optionalID(q.Get("doctor"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor", "doctor must be a positive integer")
			return
		}
		f.DoctorID = doctorID
		f.ActiveOnly = q.Get("active") == "true"

		entries, err := svc.ListSchedules(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeSchedules(w, entries)
	}
}

func schedulesByDoctorHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathID(w, r, "doctorID")
		if !ok {
			return
		}

		entries, err := svc.SchedulesByDoctor(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeSchedules(w, entries)
	}
}

func writeSchedules(w http.ResponseWriter, entries []appointment.ScheduleEntry) {
	resp := make([]ScheduleResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, toScheduleResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func createScheduleHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Doctor <= 0 || req.DayOfWeek == nil || req.StartTime == "" || req.EndTime == "" {
			writeError(w, http.StatusBadRequest, "missing_parameter", "doctor, day_of_week, start_time and end_time are required")
			return
		}

		start, err := appointment.ParseTimeOfDay(req.StartTime)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		end, err := appointment.ParseTimeOfDay(req.EndTime)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		entry := appointment.ScheduleEntry{
			DoctorID:    req.Doctor,
			DayOfWeek:   *req.DayOfWeek,
			StartTime:   start,
			EndTime:     end,
			SlotMinutes: req.SlotDurationMinutes,
			Active:      true,
		}
		if req.IsActive != nil {
			entry.Active = *req.IsActive
		}

		created, err := svc.CreateSchedule(r.Context(), entry)
		if err != nil {
			handleReferenceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toScheduleResponse(created))
	}
}

func getScheduleHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		entry, err := svc.GetSchedule(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(entry))
	}
}

func updateScheduleHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req SchedulePatchRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patch := appointment.SchedulePatch{
			DayOfWeek:   req.DayOfWeek,
			SlotMinutes: req.SlotDurationMinutes,
			Active:      req.IsActive,
		}
		if req.StartTime != nil {
			t, err := appointment.ParseTimeOfDay(*req.StartTime)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			patch.StartTime = &t
		}
		if req.EndTime != nil {
			t, err := appointment.ParseTimeOfDay(*req.EndTime)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			patch.EndTime = &t
		}

		entry, err := svc.UpdateSchedule(r.Context(), id, patch)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(entry))
	}
}

// deleteScheduleHandler deactivates the entry; schedules are never removed.
func deleteScheduleHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		if _, err := svc.DeactivateSchedule(r.Context(), id); err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listBlocksHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := appointment.BlockFilter{ActiveOnly: q.Get("include_inactive") != "true"}

		doctorID, err := optionalID(q.Get("doctor"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor", "doctor must be a positive integer")
			return
		}
		f.DoctorID = doctorID

		if raw := q.Get("date"); raw != "" {
			date, err := appointment.ParseDate(raw)
			if err != nil {
				handleServiceError(w, r, log, err)
				return
			}
			f.Date = &date
		}

		blocks, err := svc.ListBlocks(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := make([]BlockResponse, 0, len(blocks))
		for i := range blocks {
			resp = append(resp, toBlockResponse(&blocks[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// createBlockHandler answers 201 for a new block and 200 when the slot was
// already blocked.
func createBlockHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Doctor <= 0 || req.Date == "" || req.BlockedTime == "" {
			writeError(w, http.StatusBadRequest, "missing_parameter", "doctor, date and blocked_time are required")
			return
		}

		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		t, err := appointment.ParseTimeOfDay(req.BlockedTime)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		block := appointment.Block{
			DoctorID: req.Doctor,
			Date:     date,
			Time:     t,
			Reason:   req.Reason,
		}
		if id := auth.FromContext(r.Context()); id != nil {
			userID := id.UserID
			block.CreatedBy = &userID
		}

		saved, created, err := svc.CreateBlock(r.Context(), block)
		if err != nil {
			handleReferenceError(w, r, log, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, toBlockResponse(saved))
	}
}

func getBlockHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		block, err := svc.GetBlock(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponse(block))
	}
}

// deleteBlockHandler deactivates the block, freeing the slot.
func deleteBlockHandler(svc *appointment.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		if _, err := svc.DeactivateBlock(r.Context(), id); err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
