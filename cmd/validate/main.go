// Command validate checks a saved USGS feed file the same way the service
// decodes it: envelope, per-feature validation, identifier uniqueness, and a
// dedup replay. It exits non-zero when any phase fails.
//
// Usage:
//
//	curl -s https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojsonp > all_hour.geojsonp
//	go run ./cmd/validate -feed all_hour.geojsonp
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a saved GeoJSON or GeoJSONP feed")
	callback := flag.String("callback", "eqfeed_callback", "expected JSONP callback name (empty accepts any)")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	body, err := os.ReadFile(*feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, body, *callback))
}

func run(out io.Writer, body []byte, callback string) int {
	fmt.Fprintln(out, "=== Quake Feed Validation ===")
	fmt.Fprintln(out)

	envelope := &phase{name: "Phase 1: Envelope"}
	data, err := domain.StripEnvelope(body, callback)
	if err != nil {
		envelope.errorf("%v", err)
		return report(out, []*phase{envelope}, domain.Feed{})
	}

	decode := &phase{name: "Phase 2: Feature Validation"}
	feed, err := domain.ParseFeed(data)
	if err != nil {
		decode.errorf("%v", err)
		return report(out, []*phase{envelope, decode}, domain.Feed{})
	}
	for _, rej := range feed.Rejected {
		decode.errorf("%v", rej)
	}

	phases := []*phase{
		envelope,
		decode,
		validateUniqueness(feed.Quakes),
		validateReplay(feed.Quakes),
	}
	return report(out, phases, feed)
}

// validateUniqueness reports duplicate ids, which would collide in the map
// index and the table. Duplicate codes are expected to be collapsed by dedup
// and are only noted.
func validateUniqueness(quakes []domain.Quake) *phase {
	p := &phase{name: "Phase 3: Identifier Uniqueness"}

	ids := map[string]int{}
	codes := map[string]int{}
	for i, q := range quakes {
		if first, ok := ids[q.ID]; ok {
			p.errorf("record %d: id %q already used by record %d", i, q.ID, first)
		} else {
			ids[q.ID] = i
		}
		if first, ok := codes[q.Code]; ok {
			p.notef("record %d: code %q repeats record %d and will be suppressed", i, q.Code, first)
		} else {
			codes[q.Code] = i
		}
	}
	return p
}

// validateReplay runs the feed through the deduplicator twice. The first pass
// must keep one record per code, the second must emit nothing.
func validateReplay(quakes []domain.Quake) *phase {
	p := &phase{name: "Phase 4: Dedup Replay"}

	dedup := pipeline.NewDeduplicator(pipeline.NewMemorySeenSet(),
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	ctx := context.Background()

	first := dedup.Filter(ctx, quakes)
	seen := map[string]bool{}
	for _, q := range first {
		if seen[q.Code] {
			p.errorf("code %q emitted twice", q.Code)
		}
		seen[q.Code] = true
	}
	if replay := dedup.Filter(ctx, quakes); len(replay) != 0 {
		p.errorf("replay emitted %d record(s), want 0", len(replay))
	}
	p.notef("%d of %d record(s) emitted", len(first), len(quakes))
	return p
}

func report(out io.Writer, phases []*phase, feed domain.Feed) int {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d valid, %d rejected\n", len(feed.Quakes), len(feed.Rejected))

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Fprintf(out, "  note: %s\n", n)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}
