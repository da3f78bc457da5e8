package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/stream"
)

// SeenSet records which event codes have already been emitted.
type SeenSet interface {
	// MarkSeen records code and reports whether this is its first sighting.
	MarkSeen(ctx context.Context, code string) (bool, error)
}

// MemorySeenSet is a process-local SeenSet. It never forgets a code.
type MemorySeenSet struct {
	mu   sync.Mutex
	seen *stream.Distinct[string]
}

// NewMemorySeenSet returns an empty MemorySeenSet.
func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{seen: stream.NewDistinct[string]()}
}

func (s *MemorySeenSet) MarkSeen(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.First(code), nil
}

// Len returns the number of codes seen so far.
func (s *MemorySeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.Len()
}

// Deduplicator passes the first record for each code and suppresses the rest
// for the lifetime of its SeenSet.
type Deduplicator struct {
	seen    SeenSet
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDeduplicator creates a Deduplicator backed by seen.
func NewDeduplicator(seen SeenSet, logger *slog.Logger, metrics *observability.Metrics) *Deduplicator {
	return &Deduplicator{seen: seen, logger: logger, metrics: metrics}
}

// Filter returns the first-seen records of quakes, preserving order. A record
// whose lookup fails is left unmarked and dropped from this batch only, so it
// is considered again on the next tick.
func (d *Deduplicator) Filter(ctx context.Context, quakes []domain.Quake) []domain.Quake {
	fresh := make([]domain.Quake, 0, len(quakes))
	for _, q := range quakes {
		first, err := d.seen.MarkSeen(ctx, q.Code)
		if err != nil {
			d.metrics.DedupStoreErrors.Inc()
			d.logger.Warn("seen-set lookup failed, deferring record", "code", q.Code, "id", q.ID, "error", err)
			continue
		}
		if !first {
			d.metrics.RecordsDuplicate.Inc()
			continue
		}
		fresh = append(fresh, q)
	}
	return fresh
}
