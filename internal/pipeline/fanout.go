package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
)

// Sink consumes the deduplicated quake stream.
type Sink interface {
	Consume(ctx context.Context, q domain.Quake) error
}

// ErrorSink is implemented by sinks that want to hear about failed ticks.
type ErrorSink interface {
	FeedFailed(ctx context.Context, err error)
}

type namedSink struct {
	name string
	sink Sink
	gate bool
}

// Fanout delivers every record to each registered sink in registration order.
// Sinks are registered during wiring, before Run starts.
type Fanout struct {
	sinks   []namedSink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFanout creates an empty Fanout.
func NewFanout(logger *slog.Logger, metrics *observability.Metrics) *Fanout {
	return &Fanout{logger: logger, metrics: metrics}
}

// Add registers a sink under name, used in logs and the sink_errors metric.
func (f *Fanout) Add(name string, s Sink) *Fanout {
	f.sinks = append(f.sinks, namedSink{name: name, sink: s})
	return f
}

// Gate registers a sink whose rejection withholds the record from every sink
// registered after it.
func (f *Fanout) Gate(name string, s Sink) *Fanout {
	f.sinks = append(f.sinks, namedSink{name: name, sink: s, gate: true})
	return f
}

// Consume delivers q to every sink and returns the joined sink errors. A
// failing sink does not stop delivery to the others unless it is a gate.
func (f *Fanout) Consume(ctx context.Context, q domain.Quake) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.sink.Consume(ctx, q)
		if err == nil {
			continue
		}
		f.metrics.SinkErrors.WithLabelValues(s.name).Inc()
		f.logger.Warn("sink rejected record", "sink", s.name, "id", q.ID, "code", q.Code, "error", err)
		errs = append(errs, fmt.Errorf("sink %s: %w", s.name, err))
		if s.gate {
			break
		}
	}
	return errors.Join(errs...)
}

// FeedFailed forwards a tick failure to every sink implementing ErrorSink.
func (f *Fanout) FeedFailed(ctx context.Context, err error) {
	for _, s := range f.sinks {
		if es, ok := s.sink.(ErrorSink); ok {
			es.FeedFailed(ctx, err)
		}
	}
}
