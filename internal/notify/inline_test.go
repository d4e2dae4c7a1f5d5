package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func TestInlineSink(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	mailer := &captureMailer{}
	sink := NewInlineSink(NewDispatcher(repo, mailer, zerolog.Nop()))

	payload, err := json.Marshal(sampleEvent(appointment.EventAppointmentCreated))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	id, err := sink.Publish(ctx, appointment.EventAppointmentCreated, payload)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != "inline-1" {
		t.Errorf("expected inline-1, got %q", id)
	}

	items, _ := repo.ListByUser(ctx, 31, false)
	if len(items) != 1 || items[0].Type != TypeNewAppointment {
		t.Errorf("expected one new appointment notification, got %+v", items)
	}
	if len(mailer.sent) != 1 {
		t.Errorf("expected one email, got %d", len(mailer.sent))
	}

	if _, err := sink.Publish(ctx, appointment.EventAppointmentCreated, []byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}
