package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/quake-map-service/internal/bridge"
	"github.com/couchcryptid/quake-map-service/internal/live"
	"github.com/couchcryptid/quake-map-service/internal/mapview"
	"github.com/couchcryptid/quake-map-service/internal/table"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"
)

// RowSource lists table rows.
type RowSource interface {
	Rows(key table.SortKey, desc bool) []table.Row
}

// MapSource exposes the map model.
type MapSource interface {
	FeatureCollection() *geojson.FeatureCollection
	View() mapview.View
}

// RowBridge applies row interactions to the map.
type RowBridge interface {
	Hover(id string) (bridge.Transition, bool, error)
	Click(id string) (bool, mapview.View, error)
}

// LiveSource hands out live event subscriptions.
type LiveSource interface {
	Subscribe(buffer int) (<-chan live.Event, func())
}

// Deps are the collaborators the HTTP API reads from and drives.
type Deps struct {
	Ready  sharedobs.ReadinessChecker
	Rows   RowSource
	Map    MapSource
	Bridge RowBridge
	Live   LiveSource
}

type handlers struct {
	deps     Deps
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func newHandlers(deps Deps, logger *slog.Logger) *handlers {
	return &handlers{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Renderers are served from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

type rowsResponse struct {
	Count int         `json:"count"`
	Rows  []table.Row `json:"rows"`
}

type clickResponse struct {
	Panned bool         `json:"panned"`
	View   mapview.View `json:"view"`
}

func (h *handlers) listQuakes(w http.ResponseWriter, r *http.Request) {
	key, err := table.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	desc, err := table.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rows := h.deps.Rows.Rows(key, desc)
	writeJSON(w, http.StatusOK, rowsResponse{Count: len(rows), Rows: rows})
}

func (h *handlers) mapShapes(w http.ResponseWriter, _ *http.Request) {
	data, err := h.deps.Map.FeatureCollection().MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handlers) mapView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Map.View())
}

func (h *handlers) hoverRow(w http.ResponseWriter, r *http.Request) {
	tr, ok, err := h.deps.Bridge.Hover(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *handlers) clickRow(w http.ResponseWriter, r *http.Request) {
	panned, view, err := h.deps.Bridge.Click(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, clickResponse{Panned: panned, View: view})
}

func statusFor(err error) int {
	if errors.Is(err, bridge.ErrUnknownRow) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent
}
