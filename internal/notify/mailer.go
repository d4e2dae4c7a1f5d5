package notify

import (
	"context"

	"github.com/rs/zerolog"
)

type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers patient emails. Delivery transport lives outside this service.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// LogMailer writes emails to the structured log instead of sending them.
type LogMailer struct {
	from string
	log  zerolog.Logger
}

func NewLogMailer(from string, logger zerolog.Logger) *LogMailer {
	return &LogMailer{from: from, log: logger.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, msg Email) error {
	if msg.From == "" {
		msg.From = m.from
	}
	m.log.Info().
		Str("from", msg.From).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("email dispatched")
	return nil
}
