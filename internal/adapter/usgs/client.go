package usgs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/google/uuid"
)

// maxBodyBytes caps a feed response; the all_month feed is ~10 MB.
const maxBodyBytes = 32 << 20

// Client fetches and decodes a USGS GeoJSON(P) summary feed.
// It implements pipeline.Fetcher.
type Client struct {
	url        string
	callback   string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. callback is the expected envelope name,
// empty to accept any.
func NewClient(url, callback string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		url:      url,
		callback: callback,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch performs one GET against the feed. Transport errors and non-200
// responses wrap domain.ErrNetwork; malformed bodies wrap domain.ErrDecode.
// Each call owns its response; nothing is shared between concurrent calls.
func (c *Client) Fetch(ctx context.Context) (domain.Feed, error) {
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/javascript, application/json")

	start := time.Now()
	c.metrics.FetchAttempts.Inc()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Feed{}, fmt.Errorf("%w: request %s: %v", domain.ErrNetwork, requestID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Feed{}, fmt.Errorf("%w: request %s: status %d: %s", domain.ErrNetwork, requestID, resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Feed{}, fmt.Errorf("%w: request %s: read body: %v", domain.ErrNetwork, requestID, err)
	}

	inner, err := domain.StripEnvelope(body, c.callback)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("request %s: %w", requestID, err)
	}
	feed, err := domain.ParseFeed(inner)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("request %s: %w", requestID, err)
	}

	c.logger.Debug("feed fetched",
		"request_id", requestID,
		"records", len(feed.Quakes),
		"rejected", len(feed.Rejected),
		"duration", time.Since(start),
	)
	return feed, nil
}
