package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quake-map-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/quake-map-service/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/quake-map-service/internal/adapter/redis"
	"github.com/couchcryptid/quake-map-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-map-service/internal/bridge"
	"github.com/couchcryptid/quake-map-service/internal/config"
	"github.com/couchcryptid/quake-map-service/internal/live"
	"github.com/couchcryptid/quake-map-service/internal/mapview"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/pipeline"
	"github.com/couchcryptid/quake-map-service/internal/table"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seen set (memory by default, Redis to keep history off the heap).
	var seen pipeline.SeenSet
	var closers []func() error
	switch cfg.DedupBackend {
	case config.DedupRedis:
		client, err := redisadapter.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		closers = append(closers, client.Close)
		instance := uuid.NewString()
		seen = redisadapter.NewSeenSet(client, cfg.RedisKeyPrefix, instance, cfg.RedisSeenTTL)
		logger.Info("dedup backend: redis", "addr", cfg.RedisAddr, "prefix", cfg.RedisKeyPrefix,
			"instance", instance, "ttl", cfg.RedisSeenTTL)
	default:
		seen = pipeline.NewMemorySeenSet()
		logger.Info("dedup backend: memory")
	}

	// Map and table models.
	m := mapview.NewMap(mapview.View{Lat: cfg.MapCenterLat, Lon: cfg.MapCenterLon, Zoom: cfg.MapZoom})
	mapSink := mapview.NewSink(m, mapview.NewIndex(cfg.IndexMaxEntries), logger, metrics)
	rows := table.New()
	mapSink.OnEvict(func(id string) { rows.Remove(id) })

	hub := live.NewHub(logger, metrics)
	m.Observe(hub)

	fanout := pipeline.NewFanout(logger, metrics).
		Gate("map", mapSink).
		Add("table", rows)
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, writer.Close)
		fanout.Add("kafka", writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka sink disabled")
	}
	fanout.Add("live", hub)

	client := usgs.NewClient(cfg.FeedURL, cfg.FeedCallback, cfg.FeedTimeout, metrics, logger)
	p := pipeline.New(
		pipeline.NewPoller(client, cfg.FeedRetries, logger),
		pipeline.NewDeduplicator(seen, logger, metrics),
		fanout,
		clockwork.NewRealClock(),
		cfg.PollInterval,
		logger,
		metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:  p,
		Rows:   rows,
		Map:    mapSink,
		Bridge: bridge.New(mapSink, m, logger, metrics),
		Live:   hub,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start feed pipeline.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
