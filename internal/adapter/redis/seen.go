// Package redis provides a Redis-backed seen set so deduplication history is
// held outside the process heap.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to addr and verifies the connection with a PING.
func NewClient(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
}

// SeenSet marks codes with SETNX under a per-instance key scope. Marks live
// as long as the in-memory models they feed: a new instance id starts with
// nothing marked. The TTL reclaims keys of exited instances.
type SeenSet struct {
	client setNXer
	scope  string
	ttl    time.Duration
}

// NewSeenSet stores keys as prefix+instance+":"+code with the given expiry.
func NewSeenSet(client setNXer, prefix, instance string, ttl time.Duration) *SeenSet {
	return &SeenSet{client: client, scope: prefix + instance + ":", ttl: ttl}
}

// MarkSeen reports true the first time this instance marks code.
func (s *SeenSet) MarkSeen(ctx context.Context, code string) (bool, error) {
	first, err := s.client.SetNX(ctx, s.scope+code, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", code, err)
	}
	return first, nil
}
