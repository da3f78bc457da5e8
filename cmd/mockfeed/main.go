// Command mockfeed serves a synthetic USGS-style GeoJSONP feed for local runs.
// Each request advances a rolling window, so consecutive responses overlap the
// way the real summary feeds do. Failures can be injected to exercise the
// poller's retry path.
//
// Usage:
//
//	go run ./cmd/mockfeed -addr :9090 -window 20 -step 3 -fail-every 7
//	FEED_URL=http://localhost:9090/feed.geojsonp go run ./cmd/quakemap
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type options struct {
	callback       string
	window         int
	step           int
	failEvery      int
	malformedEvery int
	seed           uint64
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	var opts options
	flag.StringVar(&opts.callback, "callback", "eqfeed_callback", "JSONP callback name")
	flag.IntVar(&opts.window, "window", 20, "records per response")
	flag.IntVar(&opts.step, "step", 3, "new records added per request")
	flag.IntVar(&opts.failEvery, "fail-every", 0, "answer every Nth request with 503 (0 disables)")
	flag.IntVar(&opts.malformedEvery, "malformed-every", 0, "answer every Nth request with a broken envelope (0 disables)")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed for generated records")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if opts.window <= 0 || opts.step <= 0 {
		logger.Error("window and step must be positive")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(newFeedServer(opts, time.Now().UTC(), logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("mock feed listening", "addr", *addr, "path", feedPath)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("mock feed stopped", "error", err)
		os.Exit(1)
	}
}

const feedPath = "/feed.geojsonp"

func newRouter(feed http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, feedPath, feed)
	return r
}

// feedServer generates records lazily and serves a window that slides by
// step records per request.
type feedServer struct {
	opts   options
	start  time.Time
	logger *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	quakes   []domain.Quake
	requests int
}

func newFeedServer(opts options, start time.Time, logger *slog.Logger) *feedServer {
	return &feedServer{
		opts:   opts,
		start:  start,
		logger: logger,
		rng:    rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15)),
	}
}

func (s *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	n := s.requests
	window := s.nextWindow(n)
	s.mu.Unlock()

	reqID := r.Header.Get("X-Request-ID")
	if s.opts.failEvery > 0 && n%s.opts.failEvery == 0 {
		s.logger.Info("injecting failure", "request", n, "request_id", reqID)
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return
	}
	if s.opts.malformedEvery > 0 && n%s.opts.malformedEvery == 0 {
		s.logger.Info("injecting malformed envelope", "request", n, "request_id", reqID)
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = fmt.Fprintf(w, "%s({\"type\":\"FeatureCollection\",", s.opts.callback)
		return
	}

	data, err := domain.EncodeFeed(window)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write(domain.WrapEnvelope(s.opts.callback, data))
	s.logger.Debug("served feed", "request", n, "records", len(window), "request_id", reqID)
}

// nextWindow returns the newest window for request n, newest record first as
// in the USGS feeds. Callers hold s.mu.
func (s *feedServer) nextWindow(n int) []domain.Quake {
	total := n * s.opts.step
	for len(s.quakes) < total {
		s.quakes = append(s.quakes, s.generate(len(s.quakes)))
	}
	lo := max(0, total-s.opts.window)
	out := make([]domain.Quake, 0, total-lo)
	for i := total - 1; i >= lo; i-- {
		out = append(out, s.quakes[i])
	}
	return out
}

func (s *feedServer) generate(i int) domain.Quake {
	code := fmt.Sprintf("%08d", 40000000+i)
	return domain.Quake{
		ID:   "mk" + code,
		Code: code,
		Net:  "mk",
		Coordinates: domain.Coordinates{
			Lat: 33.858631 + (s.rng.Float64()-0.5)*4,
			Lon: -118.279602 + (s.rng.Float64()-0.5)*4,
		},
		Magnitude:       float64(int(s.rng.Float64()*550)+50) / 100,
		Place:           fmt.Sprintf("%dkm %s of Mockville, CA", s.rng.IntN(40)+1, directions[s.rng.IntN(len(directions))]),
		TimestampMillis: s.start.Add(time.Duration(i) * time.Minute).UnixMilli(),
	}
}

var directions = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
