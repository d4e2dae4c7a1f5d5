package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Stream is the consumer-group view of the appointment event stream.
type Stream interface {
	EnsureGroup(ctx context.Context) error
	Read(ctx context.Context, count int64) ([]redisclient.StreamMessage, error)
	ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]redisclient.StreamMessage, error)
	Ack(ctx context.Context, ids ...string) error
}

type WorkerOptions struct {
	BatchSize  int64
	StaleAfter time.Duration
	RetryDelay time.Duration
}

// Worker feeds stream messages to the dispatcher. Every message is acked,
// whether or not handling succeeded.
type Worker struct {
	stream     Stream
	dispatcher *Dispatcher
	opts       WorkerOptions
	log        zerolog.Logger
}

func NewWorker(stream Stream, dispatcher *Dispatcher, opts WorkerOptions, logger zerolog.Logger) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Minute
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Worker{
		stream:     stream,
		dispatcher: dispatcher,
		opts:       opts,
		log:        logger.With().Str("component", "notify_worker").Logger(),
	}
}

// Run consumes until ctx is cancelled. Messages left pending by a crashed
// consumer are reclaimed once at startup.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.stream.EnsureGroup(ctx); err != nil {
		return err
	}

	stale, err := w.stream.ClaimStale(ctx, w.opts.StaleAfter, w.opts.BatchSize)
	if err != nil {
		w.log.Warn().Err(err).Msg("reclaiming stale messages failed")
	}
	if len(stale) > 0 {
		w.log.Info().Int("count", len(stale)).Msg("reclaimed stale messages")
		w.process(ctx, stale)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := w.stream.Read(ctx, w.opts.BatchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Msg("stream read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.opts.RetryDelay):
			}
			continue
		}

		w.process(ctx, msgs)
	}
}

func (w *Worker) process(ctx context.Context, msgs []redisclient.StreamMessage) {
	for _, m := range msgs {
		w.handle(ctx, m)

		if err := w.stream.Ack(context.WithoutCancel(ctx), m.ID); err != nil {
			w.log.Error().Err(err).Str("message_id", m.ID).Msg("ack failed")
		}
	}
}

func (w *Worker) handle(ctx context.Context, m redisclient.StreamMessage) {
	ev, err := appointment.DecodeEvent(m.Payload)
	if err != nil {
		w.log.Error().Err(err).Str("message_id", m.ID).Str("type", m.Type).Msg("undecodable event, dropping")
		return
	}

	if err := w.dispatcher.Handle(ctx, ev); err != nil {
		w.log.Error().
			Err(err).
			Str("message_id", m.ID).
			Str("type", ev.Type).
			Int64("appointment_id", ev.AppointmentID).
			Msg("event handling failed")
		return
	}

	w.log.Debug().Str("message_id", m.ID).Str("type", ev.Type).Msg("event handled")
}
