// Package live streams pipeline and map events to connected clients.
package live

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/mapview"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/stream"
)

// Event types sent to clients.
const (
	TypeQuake        = "quake"
	TypeFeedError    = "feed_error"
	TypeStyle        = "style"
	TypePan          = "pan"
	TypeShapeRemoved = "shape_removed"
	// TypeCommandError is sent only to the client whose message failed.
	TypeCommandError = "command_error"
)

// Event is one message on the live stream.
type Event struct {
	Type  string         `json:"type"`
	Quake *domain.Quake  `json:"quake,omitempty"`
	Shape *mapview.Shape `json:"shape,omitempty"`
	View  *mapview.View  `json:"view,omitempty"`
	Error string         `json:"error,omitempty"`
}

// Hub broadcasts events to subscribers. Publishing never blocks: a client
// whose buffer is full misses the event.
type Hub struct {
	b       *stream.Broadcaster[Event]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHub creates a Hub with no subscribers.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{b: stream.NewBroadcaster[Event](), logger: logger, metrics: metrics}
}

// Subscribe registers a client. Call cancel when the client goes away.
func (h *Hub) Subscribe(buffer int) (events <-chan Event, cancel func()) {
	ch, unsub := h.b.Subscribe(buffer)
	h.metrics.LiveClients.Set(float64(h.b.Len()))
	return ch, func() {
		unsub()
		h.metrics.LiveClients.Set(float64(h.b.Len()))
	}
}

// Publish sends ev to every subscriber.
func (h *Hub) Publish(ev Event) {
	if dropped := h.b.Publish(ev); dropped > 0 {
		h.metrics.LiveDropped.Add(float64(dropped))
		h.logger.Debug("live clients lagging", "type", ev.Type, "dropped", dropped)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.b.Close()
	h.metrics.LiveClients.Set(0)
}

// Consume publishes a newly emitted quake.
func (h *Hub) Consume(_ context.Context, q domain.Quake) error {
	h.Publish(Event{Type: TypeQuake, Quake: &q})
	return nil
}

// FeedFailed publishes a failed feed tick.
func (h *Hub) FeedFailed(_ context.Context, err error) {
	h.Publish(Event{Type: TypeFeedError, Error: err.Error()})
}

// MapChanged publishes style and viewport changes. Newly drawn shapes are
// covered by the quake event and are not repeated.
func (h *Hub) MapChanged(ev mapview.Event) {
	var typ string
	switch ev.Kind {
	case mapview.EventStyle:
		typ = TypeStyle
	case mapview.EventPan:
		typ = TypePan
	case mapview.EventShapeRemoved:
		typ = TypeShapeRemoved
	default:
		return
	}
	shape, view := ev.Shape, ev.View
	h.Publish(Event{Type: typ, Shape: &shape, View: &view})
}
