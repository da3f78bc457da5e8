package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Dedup backends accepted by DEDUP_BACKEND.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// USGS feed polling.
	FeedURL      string
	FeedCallback string
	PollInterval time.Duration
	FeedRetries  int
	FeedTimeout  time.Duration

	// Deduplication store.
	DedupBackend   string
	RedisAddr      string
	RedisKeyPrefix string
	// RedisSeenTTL must outlast the feed window so a code stays marked while
	// the feed still serves it.
	RedisSeenTTL time.Duration

	// Kafka sink, disabled when no brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string

	// Map model. IndexMaxEntries of 0 keeps every shape for the process lifetime.
	IndexMaxEntries int
	MapCenterLat    float64
	MapCenterLon    float64
	MapZoom         int
}

// KafkaEnabled reports whether the Kafka sink should be wired.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "4s")
	if err != nil {
		return nil, err
	}

	seenTTL, err := parsePositiveDuration("REDIS_SEEN_TTL", "48h")
	if err != nil {
		return nil, err
	}

	feedRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FEED_RETRIES", "3"))
	if err != nil || feedRetries < 0 {
		return nil, errors.New("invalid FEED_RETRIES")
	}

	indexMax, err := strconv.Atoi(sharedcfg.EnvOrDefault("INDEX_MAX_ENTRIES", "0"))
	if err != nil || indexMax < 0 {
		return nil, errors.New("invalid INDEX_MAX_ENTRIES")
	}

	lat, err := parseFloatInRange("MAP_CENTER_LAT", "33.858631", -90, 90)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloatInRange("MAP_CENTER_LON", "-118.279602", -180, 180)
	if err != nil {
		return nil, err
	}
	zoom, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAP_ZOOM", "7"))
	if err != nil || zoom < 0 || zoom > 22 {
		return nil, errors.New("invalid MAP_ZOOM")
	}

	var brokers []string
	if raw := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedURL:      sharedcfg.EnvOrDefault("FEED_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojsonp"),
		FeedCallback: sharedcfg.EnvOrDefault("FEED_CALLBACK", "eqfeed_callback"),
		PollInterval: pollInterval,
		FeedRetries:  feedRetries,
		FeedTimeout:  feedTimeout,

		DedupBackend:   sharedcfg.EnvOrDefault("DEDUP_BACKEND", DedupMemory),
		RedisAddr:      sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisKeyPrefix: sharedcfg.EnvOrDefault("REDIS_KEY_PREFIX", "quake:seen:"),
		RedisSeenTTL:   seenTTL,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "earthquakes"),

		IndexMaxEntries: indexMax,
		MapCenterLat:    lat,
		MapCenterLon:    lon,
		MapZoom:         zoom,
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("FEED_URL is required")
	}
	if cfg.DedupBackend != DedupMemory && cfg.DedupBackend != DedupRedis {
		return nil, fmt.Errorf("invalid DEDUP_BACKEND %q: want %q or %q", cfg.DedupBackend, DedupMemory, DedupRedis)
	}
	if cfg.DedupBackend == DedupRedis && cfg.RedisAddr == "" {
		return nil, errors.New("DEDUP_BACKEND is redis but REDIS_ADDR is not set")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.FeedTimeout > cfg.PollInterval {
		return nil, errors.New("FEED_TIMEOUT must not exceed POLL_INTERVAL")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloatInRange(key, def string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
