// Package mapview keeps the model of the earthquake map: circle shapes, their
// styles and the current viewport. Rendering is left to whoever consumes the
// model over HTTP.
package mapview

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Shape colors.
const (
	ColorDefault = "#3388ff"
	ColorIdle    = "#0000ff"
	ColorFocus   = "#ff0000"
)

// ErrUnknownShape is returned for a handle the map does not hold.
var ErrUnknownShape = errors.New("unknown shape")

// Handle identifies a shape on the map. Handles are never reused.
type Handle uint64

// Shape is a circle centered on an epicenter. Radius is in metres.
type Shape struct {
	Handle Handle  `json:"handle"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
	Color  string  `json:"color"`
}

// View is the map viewport.
type View struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// EventKind names a change to the map model.
type EventKind string

const (
	EventShapeAdded   EventKind = "shape_added"
	EventShapeRemoved EventKind = "shape_removed"
	EventStyle        EventKind = "style"
	EventPan          EventKind = "pan"
)

// Event describes one change to the map model.
type Event struct {
	Kind  EventKind
	Shape Shape
	View  View
}

// Observer is notified of every change, after the map lock is released.
type Observer interface {
	MapChanged(Event)
}

// Map holds shapes and the viewport. It is safe for concurrent use.
type Map struct {
	mu        sync.RWMutex
	next      Handle
	shapes    map[Handle]*Shape
	view      View
	observers []Observer
}

// NewMap returns an empty map showing initial.
func NewMap(initial View) *Map {
	return &Map{shapes: make(map[Handle]*Shape), view: initial}
}

// Observe registers o. Observers are added during wiring.
func (m *Map) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// AddShape draws a circle and returns its handle.
func (m *Map) AddShape(lat, lon, radius float64) Handle {
	m.mu.Lock()
	m.next++
	s := &Shape{Handle: m.next, Lat: lat, Lon: lon, Radius: radius, Color: ColorDefault}
	m.shapes[s.Handle] = s
	ev := Event{Kind: EventShapeAdded, Shape: *s, View: m.view}
	m.mu.Unlock()

	m.notify(ev)
	return s.Handle
}

// Shape returns a copy of the shape under h.
func (m *Map) Shape(h Handle) (Shape, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shapes[h]
	if !ok {
		return Shape{}, false
	}
	return *s, true
}

// Shapes returns every shape in drawing order.
func (m *Map) Shapes() []Shape {
	m.mu.RLock()
	out := make([]Shape, 0, len(m.shapes))
	for _, s := range m.shapes {
		out = append(out, *s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Shape) int { return cmp.Compare(a.Handle, b.Handle) })
	return out
}

// SetStyle changes the stroke and fill color of a shape.
func (m *Map) SetStyle(h Handle, color string) error {
	m.mu.Lock()
	s, ok := m.shapes[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("set style on %d: %w", h, ErrUnknownShape)
	}
	s.Color = color
	ev := Event{Kind: EventStyle, Shape: *s, View: m.view}
	m.mu.Unlock()

	m.notify(ev)
	return nil
}

// PanTo recenters the viewport on a shape, keeping the zoom level.
func (m *Map) PanTo(h Handle) error {
	m.mu.Lock()
	s, ok := m.shapes[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("pan to %d: %w", h, ErrUnknownShape)
	}
	m.view.Lat, m.view.Lon = s.Lat, s.Lon
	ev := Event{Kind: EventPan, Shape: *s, View: m.view}
	m.mu.Unlock()

	m.notify(ev)
	return nil
}

// RemoveShape erases a shape. It reports whether the shape existed.
func (m *Map) RemoveShape(h Handle) bool {
	m.mu.Lock()
	s, ok := m.shapes[h]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.shapes, h)
	ev := Event{Kind: EventShapeRemoved, Shape: *s, View: m.view}
	m.mu.Unlock()

	m.notify(ev)
	return true
}

// View returns the current viewport.
func (m *Map) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

// Len returns the number of shapes on the map.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shapes)
}

func (m *Map) notify(ev Event) {
	m.mu.RLock()
	observers := m.observers
	m.mu.RUnlock()
	for _, o := range observers {
		o.MapChanged(ev)
	}
}
