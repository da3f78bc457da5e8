package usgs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCallback    = "eqfeed_callback"
	headerRequestID = "X-Request-ID"
)

func testClient(url string, timeout time.Duration) *Client {
	return NewClient(url, testCallback, timeout, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serveFixture(t *testing.T) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile("testdata/all_hour.geojsonp")
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(headerRequestID))
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write(body)
	}))
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := serveFixture(t)
	defer srv.Close()

	feed, err := testClient(srv.URL, 5*time.Second).Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, feed.Quakes, 3)
	assert.Len(t, feed.Rejected, 1, "the null-magnitude feature should be rejected")

	first := feed.Quakes[0]
	assert.Equal(t, "ci40000123", first.ID)
	assert.Equal(t, "40000123", first.Code)
	assert.Equal(t, "ci", first.Net)
	assert.InDelta(t, 35.6996, first.Coordinates.Lat, 1e-9)
	assert.InDelta(t, -117.5615, first.Coordinates.Lon, 1e-9)
	assert.InDelta(t, 1.42, first.Magnitude, 1e-9)
	assert.Equal(t, "10km NE of Ridgecrest, CA", first.Place)
}

func TestClient_Fetch_UniqueRequestIDs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Header.Get(headerRequestID)] = true
		mu.Unlock()
		_, _ = w.Write([]byte(`eqfeed_callback({"type":"FeatureCollection","features":[]});`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	for range 3 {
		_, err := c.Fetch(context.Background())
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestClient_Fetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("try later"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetwork))
	assert.Contains(t, err.Error(), "503")
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetwork))
}

func TestClient_Fetch_MalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`other_callback({"type":"FeatureCollection","features":[]});`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDecode))
	assert.False(t, errors.Is(err, domain.ErrNetwork))
}

func TestClient_Fetch_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`eqfeed_callback({"type":"FeatureCollection","features":[);`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDecode))
}
