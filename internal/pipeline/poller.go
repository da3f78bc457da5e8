package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// Fetcher performs one request against the remote feed.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.Feed, error)
}

// Poller runs a single feed tick: one fetch plus up to retries immediate
// retries on network failure.
type Poller struct {
	fetcher Fetcher
	retries int
	logger  *slog.Logger
}

// NewPoller creates a Poller. retries of 3 means at most 4 requests per tick.
func NewPoller(f Fetcher, retries int, logger *slog.Logger) *Poller {
	return &Poller{fetcher: f, retries: retries, logger: logger}
}

// Poll fetches the feed once, retrying domain.ErrNetwork failures with no
// delay. Decode failures are returned immediately.
func (p *Poller) Poll(ctx context.Context) (domain.Feed, error) {
	var (
		feed     domain.Feed
		attempts int
	)

	op := func() error {
		attempts++
		f, err := p.fetcher.Fetch(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNetwork) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		feed = f
		return nil
	}
	notify := func(err error, _ time.Duration) {
		p.logger.Warn("feed fetch failed, retrying", "attempt", attempts, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(p.retries)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return domain.Feed{}, fmt.Errorf("poll feed after %d attempt(s): %w", attempts, err)
	}
	return feed, nil
}
