package bridge_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/couchcryptid/quake-map-service/internal/bridge"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/mapview"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	bridge *bridge.Bridge
	sink   *mapview.Sink
	m      *mapview.Map
}

func newFixture(t *testing.T, rows map[string][2]float64, order ...string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	m := mapview.NewMap(mapview.View{Lat: 33.858631, Lon: -118.279602, Zoom: 7})
	sink := mapview.NewSink(m, mapview.NewIndex(0), logger, metrics)

	for _, id := range order {
		pos := rows[id]
		q := domain.Quake{ID: id, Code: id, Coordinates: domain.Coordinates{Lat: pos[0], Lon: pos[1]}, Magnitude: 2}
		require.NoError(t, sink.Consume(context.Background(), q))
	}
	return &fixture{bridge: bridge.New(sink, m, logger, metrics), sink: sink, m: m}
}

func (f *fixture) color(t *testing.T, id string) string {
	t.Helper()
	h, ok := f.sink.Lookup(id)
	require.True(t, ok)
	s, ok := f.m.Shape(h)
	require.True(t, ok)
	return s.Color
}

func abc(t *testing.T) *fixture {
	return newFixture(t, map[string][2]float64{
		"A": {1, 1}, "B": {2, 2}, "C": {3, 3},
	}, "A", "B", "C")
}

func TestBridge_PairwiseHover(t *testing.T) {
	f := abc(t)

	var got []bridge.Transition
	for _, id := range []string{"A", "A", "B", "C"} {
		tr, ok, err := f.bridge.Hover(id)
		require.NoError(t, err)
		if ok {
			got = append(got, tr)
		}
	}

	assert.Equal(t, []bridge.Transition{{Prev: "A", Curr: "B"}, {Prev: "B", Curr: "C"}}, got)
}

func TestBridge_FirstHoverStylesNothing(t *testing.T) {
	f := abc(t)

	_, ok, err := f.bridge.Hover("A")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, mapview.ColorDefault, f.color(t, "A"))

	focused, has := f.bridge.Focused()
	assert.True(t, has)
	assert.Equal(t, "A", focused)
}

func TestBridge_HoverRestylesShapes(t *testing.T) {
	f := abc(t)

	for _, id := range []string{"A", "B"} {
		_, _, err := f.bridge.Hover(id)
		require.NoError(t, err)
	}
	assert.Equal(t, mapview.ColorIdle, f.color(t, "A"))
	assert.Equal(t, mapview.ColorFocus, f.color(t, "B"))
	assert.Equal(t, mapview.ColorDefault, f.color(t, "C"))

	_, _, err := f.bridge.Hover("C")
	require.NoError(t, err)
	assert.Equal(t, mapview.ColorIdle, f.color(t, "B"))
	assert.Equal(t, mapview.ColorFocus, f.color(t, "C"))
}

func TestBridge_HoverBackAndForth(t *testing.T) {
	f := abc(t)

	var got []bridge.Transition
	for _, id := range []string{"A", "B", "A"} {
		tr, ok, err := f.bridge.Hover(id)
		require.NoError(t, err)
		if ok {
			got = append(got, tr)
		}
	}
	assert.Equal(t, []bridge.Transition{{Prev: "A", Curr: "B"}, {Prev: "B", Curr: "A"}}, got)
	assert.Equal(t, mapview.ColorFocus, f.color(t, "A"))
}

func TestBridge_UnknownRow(t *testing.T) {
	f := abc(t)

	_, _, err := f.bridge.Hover("")
	assert.ErrorIs(t, err, bridge.ErrUnknownRow)
	_, _, err = f.bridge.Hover("Z")
	assert.ErrorIs(t, err, bridge.ErrUnknownRow)
	_, _, err = f.bridge.Click("Z")
	assert.ErrorIs(t, err, bridge.ErrUnknownRow)

	// Rejected ids leave focus untouched.
	_, has := f.bridge.Focused()
	assert.False(t, has)
}

func TestBridge_ClickPansToShape(t *testing.T) {
	f := newFixture(t, map[string][2]float64{
		"nc1":    {38.8, -122.8},
		"ci4000": {34.05, -118.25},
	}, "nc1", "ci4000")

	panned, view, err := f.bridge.Click("ci4000")
	require.NoError(t, err)
	assert.True(t, panned)
	assert.Equal(t, mapview.View{Lat: 34.05, Lon: -118.25, Zoom: 7}, view)
	assert.Equal(t, view, f.m.View())
}

func TestBridge_RepeatClickCollapses(t *testing.T) {
	f := abc(t)

	panned, _, err := f.bridge.Click("B")
	require.NoError(t, err)
	assert.True(t, panned)

	panned, view, err := f.bridge.Click("B")
	require.NoError(t, err)
	assert.False(t, panned)
	assert.Equal(t, 2.0, view.Lat)

	panned, _, err = f.bridge.Click("A")
	require.NoError(t, err)
	assert.True(t, panned)
}

func TestBridge_EvictedPreviousFocus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	m := mapview.NewMap(mapview.View{Zoom: 7})
	sink := mapview.NewSink(m, mapview.NewIndex(2), logger, metrics)
	b := bridge.New(sink, m, logger, metrics)
	ctx := context.Background()

	require.NoError(t, sink.Consume(ctx, domain.Quake{ID: "old", Code: "old", Magnitude: 1}))
	_, _, err := b.Hover("old")
	require.NoError(t, err)

	require.NoError(t, sink.Consume(ctx, domain.Quake{ID: "mid", Code: "mid", Magnitude: 1}))
	require.NoError(t, sink.Consume(ctx, domain.Quake{ID: "new", Code: "new", Magnitude: 1}))

	tr, ok, err := b.Hover("new")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bridge.Transition{Prev: "old", Curr: "new"}, tr)
}

func TestBridge_ConcurrentHovers(t *testing.T) {
	f := abc(t)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.bridge.Hover([]string{"A", "B", "C"}[i%3])
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	focused, has := f.bridge.Focused()
	require.True(t, has)
	assert.Equal(t, mapview.ColorFocus, f.color(t, focused))
}
