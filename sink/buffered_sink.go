package sink

import (
	"context"

	"youth-hub/domain/event"
	"youth-hub/observability"
)

// BufferedSink decouples the broadcaster from a connection's write pump.
// Consume never blocks the relay; when the buffer is full the event is
// dropped and counted, so one slow reader cannot stall a room.
type BufferedSink struct {
	Events  chan event.DomainEvent
	metrics *observability.Metrics
}

func NewBufferedSink(bufferSize int, metrics *observability.Metrics) *BufferedSink {
	return &BufferedSink{
		Events:  make(chan event.DomainEvent, bufferSize),
		metrics: metrics,
	}
}

// Consume is called by the registry during a broadcast.
// The write pump owning Events takes it from here.
func (s *BufferedSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.metrics.IncrDroppedDeliveries()
		return nil
	}
}
