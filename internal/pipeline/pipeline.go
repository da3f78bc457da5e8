package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Pipeline orchestrates the poll-deduplicate-fanout loop.
type Pipeline struct {
	poller   *Poller
	dedup    *Deduplicator
	fanout   *Fanout
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline that polls every interval on clock.
func New(poller *Poller, dedup *Deduplicator, fanout *Fanout, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		poller:   poller,
		dedup:    dedup,
		fanout:   fanout,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a feed tick has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful feed poll yet")
	}
	return nil
}

// Run polls the feed once per interval until ctx is cancelled. The first poll
// happens one interval after start. Ticks never overlap: a tick's records are
// fully delivered before the next tick is taken.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

// tick runs one poll and delivers its first-seen records in feed order.
func (p *Pipeline) tick(ctx context.Context) {
	start := p.clock.Now()

	feed, err := p.poller.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.Polls.WithLabelValues("error").Inc()
		p.logger.Error("feed poll failed", "error", err)
		p.fanout.FeedFailed(ctx, err)
		return
	}
	p.metrics.Polls.WithLabelValues("success").Inc()

	p.metrics.RecordsReceived.Add(float64(len(feed.Quakes)))
	p.metrics.RecordsRejected.Add(float64(len(feed.Rejected)))
	for _, rej := range feed.Rejected {
		p.logger.Warn("feed record rejected", "error", rej)
	}

	fresh := p.dedup.Filter(ctx, feed.Quakes)
	incomplete := 0
	for _, q := range fresh {
		if err := p.fanout.Consume(ctx, q); err != nil {
			incomplete++
		}
	}
	p.metrics.RecordsEmitted.Add(float64(len(fresh)))
	p.ready.Store(true)

	p.logger.Info("feed tick processed",
		"received", len(feed.Quakes),
		"rejected", len(feed.Rejected),
		"emitted", len(fresh),
		"incomplete", incomplete,
		"duration", p.clock.Since(start),
	)
}
