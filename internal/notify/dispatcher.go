package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const clinicName = "Clínica"

// Dispatcher turns appointment events into in-app notifications for the
// doctor and emails for the patient.
type Dispatcher struct {
	repo   Repository
	mailer Mailer
	log    zerolog.Logger
}

func NewDispatcher(repo Repository, mailer Mailer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		mailer: mailer,
		log:    logger.With().Str("component", "notify_dispatcher").Logger(),
	}
}

func (d *Dispatcher) Handle(ctx context.Context, ev appointment.Event) error {
	var errs []error

	if n, ok := notificationFor(ev); ok {
		if ev.DoctorUserID == nil {
			d.log.Debug().Int64("appointment_id", ev.AppointmentID).Msg("doctor has no linked user, skipping notification")
		} else {
			n.UserID = *ev.DoctorUserID
			if _, err := d.repo.Create(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("create notification: %w", err))
			}
		}
	}

	if msg, ok := emailFor(ev); ok && d.mailer != nil {
		if ev.PatientEmail == "" {
			d.log.Debug().Int64("appointment_id", ev.AppointmentID).Msg("patient has no email, skipping")
		} else if err := d.mailer.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send email: %w", err))
		}
	}

	return errors.Join(errs...)
}

func notificationFor(ev appointment.Event) (Notification, bool) {
	date, clock := displayDate(ev.Date), displayTime(ev.Time)
	apptID := ev.AppointmentID
	n := Notification{AppointmentID: &apptID}

	switch ev.Type {
	case appointment.EventAppointmentCreated:
		n.Type = TypeNewAppointment
		n.Title = "Nueva cita agendada"
		n.Message = fmt.Sprintf("Tienes una nueva cita con %s el %s a las %s.", ev.PatientName, date, clock)
	case appointment.EventAppointmentCancelled:
		n.Type = TypeAppointmentCancelled
		n.Title = "Cita cancelada"
		n.Message = fmt.Sprintf("La cita con %s del %s a las %s ha sido cancelada.", ev.PatientName, date, clock)
	case appointment.EventAppointmentConfirmed:
		n.Type = TypeAppointmentConfirmed
		n.Title = "Cita confirmada"
		n.Message = fmt.Sprintf("%s ha confirmado su cita del %s a las %s.", ev.PatientName, date, clock)
	case appointment.EventAppointmentUpdated:
		n.Type = TypeAppointmentUpdated
		n.Title = "Cita actualizada"
		n.Message = fmt.Sprintf("La cita con %s del %s a las %s ha sido modificada.", ev.PatientName, date, clock)
	default:
		return Notification{}, false
	}

	return n, true
}

func emailFor(ev appointment.Event) (Email, bool) {
	date, clock := displayDate(ev.Date), displayTime(ev.Time)
	var b strings.Builder

	switch ev.Type {
	case appointment.EventAppointmentCreated:
		fmt.Fprintf(&b, "¡Cita Agendada Exitosamente!\n\nHola %s,\n\n", ev.PatientName)
		b.WriteString("Tu cita ha sido agendada exitosamente. Aquí están los detalles:\n\n")
		fmt.Fprintf(&b, "Fecha: %s\nHora: %s\nDoctor: Dr(a). %s\nEspecialidad: %s\nDuración: %d minutos\n\n",
			date, clock, ev.DoctorName, ev.SpecialtyName, ev.DurationMinutes)
		fmt.Fprintf(&b, "Código de tu cita: %s\n\n", ev.AppointmentUUID)
		b.WriteString("Recomendaciones:\n- Llega 10 minutos antes de tu cita\n- Trae tu documento de identidad\n")
		b.WriteString("- Si necesitas cancelar, hazlo con al menos 24 horas de anticipación\n\n")
		b.WriteString(clinicName)
		return Email{To: ev.PatientEmail, Subject: "Cita Agendada Exitosamente - " + clinicName, Body: b.String()}, true

	case appointment.EventAppointmentCancelled:
		fmt.Fprintf(&b, "Cita Cancelada\n\nHola %s,\n\nTu cita ha sido cancelada:\n", ev.PatientName)
		fmt.Fprintf(&b, "- Fecha: %s\n- Hora: %s\n- Doctor: Dr(a). %s\n\n", date, clock, ev.DoctorName)
		b.WriteString("Si deseas reagendar tu cita, puedes hacerlo a través de nuestra plataforma.\n")
		return Email{To: ev.PatientEmail, Subject: "Cita Cancelada - " + clinicName, Body: b.String()}, true
	}

	return Email{}, false
}

func displayDate(s string) string {
	t, err := time.Parse(appointment.DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

func displayTime(s string) string {
	t, err := appointment.ParseTimeOfDay(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}
