package api

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

func listNotificationsHandler(svc *notify.Service, log zerolog.Logger, unreadOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.FromContext(r.Context()).UserID

		list := svc.List
		if unreadOnly {
			list = svc.Unread
		}
		items, err := list(r.Context(), userID)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := make([]NotificationResponse, 0, len(items))
		for i := range items {
			resp = append(resp, toNotificationResponse(&items[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func unreadCountHandler(svc *notify.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := svc.UnreadCount(r.Context(), auth.FromContext(r.Context()).UserID)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Count: count})
	}
}

func markReadHandler(svc *notify.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		n, err := svc.MarkRead(r.Context(), id, auth.FromContext(r.Context()).UserID)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toNotificationResponse(n))
	}
}

func markAllReadHandler(svc *notify.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := svc.MarkAllRead(r.Context(), auth.FromContext(r.Context()).UserID)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{
			Message: fmt.Sprintf("%d notificaciones marcadas como leídas", updated),
		})
	}
}

func deleteNotificationHandler(svc *notify.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id, auth.FromContext(r.Context()).UserID); err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
