// Package bridge maps row hover and click interactions back onto the map.
//
// Focus moves through two states, Idle and Focused(row). Repeated hovers on
// the focused row are ignored. Every later hover on a different row yields a
// Transition: the previous row's shape is restyled idle and the new row's
// shape is highlighted. A click recenters the map on the row's shape.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/quake-map-service/internal/mapview"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/stream"
)

// ErrUnknownRow is returned for an empty id or one with no shape on the map.
var ErrUnknownRow = errors.New("unknown row")

// Locator resolves a row id to its shape.
type Locator interface {
	Lookup(id string) (mapview.Handle, bool)
}

// MapModel is the part of the map the bridge drives.
type MapModel interface {
	SetStyle(h mapview.Handle, color string) error
	PanTo(h mapview.Handle) error
	View() mapview.View
}

// Transition is a focus change from Prev to Curr.
type Transition struct {
	Prev string `json:"prev"`
	Curr string `json:"curr"`
}

// Bridge holds the focus state. It is safe for concurrent use; interactions
// are applied one at a time.
type Bridge struct {
	shapes  Locator
	m       MapModel
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	hovers stream.Changed[string]
	focus  stream.Pairwise[string]
	clicks stream.Changed[string]
}

// New creates a Bridge in the Idle state.
func New(shapes Locator, m MapModel, logger *slog.Logger, metrics *observability.Metrics) *Bridge {
	return &Bridge{shapes: shapes, m: m, logger: logger, metrics: metrics}
}

// Hover moves focus to id. ok is false when no transition fired: the first
// hover after start, or a repeat hover on the focused row.
func (b *Bridge) Hover(id string) (tr Transition, ok bool, err error) {
	h, err := b.lookup(id)
	if err != nil {
		return Transition{}, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hovers.Next(id) {
		return Transition{}, false, nil
	}
	prev, ok := b.focus.Next(id)
	if !ok {
		return Transition{}, false, nil
	}

	// The previous row may have been evicted since it was focused.
	if ph, found := b.shapes.Lookup(prev); found {
		if err := b.m.SetStyle(ph, mapview.ColorIdle); err != nil && !errors.Is(err, mapview.ErrUnknownShape) {
			b.logger.Warn("restyle previous row failed", "row", prev, "error", err)
		}
	}
	if err := b.m.SetStyle(h, mapview.ColorFocus); err != nil {
		return Transition{}, false, fmt.Errorf("highlight row %s: %w", id, err)
	}

	b.metrics.BridgeTransitions.WithLabelValues("hover").Inc()
	b.logger.Debug("row focus changed", "prev", prev, "curr", id)
	return Transition{Prev: prev, Curr: id}, true, nil
}

// Click recenters the map on the shape for id and returns the resulting view.
// A repeat click on the same row does not pan again.
func (b *Bridge) Click(id string) (panned bool, view mapview.View, err error) {
	h, err := b.lookup(id)
	if err != nil {
		return false, mapview.View{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.clicks.Next(id) {
		return false, b.m.View(), nil
	}
	if err := b.m.PanTo(h); err != nil {
		return false, mapview.View{}, fmt.Errorf("pan to row %s: %w", id, err)
	}

	b.metrics.BridgeTransitions.WithLabelValues("click").Inc()
	return true, b.m.View(), nil
}

// Focused returns the row that currently has focus.
func (b *Bridge) Focused() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hovers.Last()
}

func (b *Bridge) lookup(id string) (mapview.Handle, error) {
	if id == "" {
		return 0, fmt.Errorf("%w: empty id", ErrUnknownRow)
	}
	h, ok := b.shapes.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	return h, nil
}
