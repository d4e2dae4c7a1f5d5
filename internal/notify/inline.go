package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// InlineSink hands events straight to a Dispatcher in the publishing process.
// It stands in for the Redis stream when the API runs without one.
type InlineSink struct {
	dispatcher *Dispatcher
	seq        atomic.Int64
}

func NewInlineSink(dispatcher *Dispatcher) *InlineSink {
	return &InlineSink{dispatcher: dispatcher}
}

func (s *InlineSink) Publish(ctx context.Context, eventType string, payload []byte) (string, error) {
	ev, err := appointment.DecodeEvent(payload)
	if err != nil {
		return "", fmt.Errorf("decode %s event: %w", eventType, err)
	}
	if err := s.dispatcher.Handle(ctx, ev); err != nil {
		return "", err
	}
	return "inline-" + strconv.FormatInt(s.seq.Add(1), 10), nil
}

var _ appointment.EventSink = (*InlineSink)(nil)
