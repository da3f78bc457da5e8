package mapview

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RadiusPerMagnitude converts magnitude to circle radius in metres.
const RadiusPerMagnitude = 10000

// ErrDuplicateID is returned when a record id is already on the map.
var ErrDuplicateID = errors.New("record id already drawn")

// Radius returns the circle radius for a magnitude.
func Radius(mag float64) float64 {
	return mag * RadiusPerMagnitude
}

// Sink draws each quake as a circle and records its id in the Index.
type Sink struct {
	m       *Map
	index   *Index
	onEvict []func(id string)
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSink creates a Sink drawing onto m.
func NewSink(m *Map, index *Index, logger *slog.Logger, metrics *observability.Metrics) *Sink {
	return &Sink{m: m, index: index, logger: logger, metrics: metrics}
}

// OnEvict registers fn to run after an id is evicted from a bounded index and
// its shape removed.
func (s *Sink) OnEvict(fn func(id string)) {
	s.onEvict = append(s.onEvict, fn)
}

func (s *Sink) Consume(_ context.Context, q domain.Quake) error {
	if _, ok := s.index.Get(q.ID); ok {
		return fmt.Errorf("draw %s: %w", q.ID, ErrDuplicateID)
	}

	h := s.m.AddShape(q.Coordinates.Lat, q.Coordinates.Lon, Radius(q.Magnitude))
	evicted, ok := s.index.Put(q.ID, h)
	s.metrics.IndexEntries.Set(float64(s.index.Len()))
	if !ok {
		return nil
	}

	s.m.RemoveShape(evicted.Handle)
	s.metrics.IndexEvictions.Inc()
	s.logger.Debug("evicted shape", "id", evicted.ID, "handle", evicted.Handle)
	for _, fn := range s.onEvict {
		fn(evicted.ID)
	}
	return nil
}

// Lookup returns the shape handle registered for a record id.
func (s *Sink) Lookup(id string) (Handle, bool) {
	return s.index.Get(id)
}

// View returns the current viewport of the underlying map.
func (s *Sink) View() View {
	return s.m.View()
}

// FeatureCollection renders every registered shape as a GeoJSON point with
// its radius and color, in drawing order.
func (s *Sink) FeatureCollection() *geojson.FeatureCollection {
	entries := s.index.Entries()
	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Handle, b.Handle) })

	fc := geojson.NewFeatureCollection()
	for _, e := range entries {
		shape, ok := s.m.Shape(e.Handle)
		if !ok {
			continue
		}
		f := geojson.NewFeature(orb.Point{shape.Lon, shape.Lat})
		f.ID = e.ID
		f.Properties["radius"] = shape.Radius
		f.Properties["color"] = shape.Color
		fc.Append(f)
	}
	return fc
}
