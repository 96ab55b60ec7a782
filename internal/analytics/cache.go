package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix       = "churnboard:analytics"
	cacheVersionKey = keyPrefix + ":version"
	// BumpChannel carries the new version after every invalidation.
	BumpChannel = keyPrefix + ":bump"
)

// Cache stores upstream payloads in Redis under a global version. Bumping
// the version orphans every entry at once; orphans expire with their TTL.
//
// A nil *Cache is valid and caches nothing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	// version is the last version seen by a listening cache; 0 means unknown.
	version   atomic.Int64
	listening atomic.Bool
}

// NewCache instantiates the cache. A nil client or a non-positive ttl yields
// a nil, pass-through cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, starting it at 1. While a
// listener is running the locally known version is used without a round
// trip.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	if ver := c.version.Load(); ver > 0 {
		return ver, nil
	}
	if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil {
		return 0, err
	}
	c.observe(ver)
	return ver, nil
}

// BuildKey joins parts under the cache namespace and current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return keyPrefix + ":v" + strconv.FormatInt(ver, 10) + ":" + joined, nil
}

// FetchJSON decodes the cached value at key into dest, or runs loader and
// caches its result. Redis failures degrade to a plain loader call.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c != nil {
		if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
			if json.Unmarshal(payload, dest) == nil {
				return nil
			}
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return json.Unmarshal(raw, dest)
}

// StoreJSON overwrites key with value.
func (c *Cache) StoreJSON(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump moves every reader to a fresh version and announces it on
// BumpChannel.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	c.observe(ver)
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bumps published by other
// dashboard replicas, the worker or churnctl, and keeps the local version
// current until ctx ends. An empty channel means BumpChannel.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	c.listening.Store(true)
	// Prime after subscribing so no bump between the two is missed.
	if ver, err := c.client.Get(ctx, cacheVersionKey).Int64(); err == nil {
		c.observe(ver)
	}

	go func() {
		defer func() {
			c.listening.Store(false)
			c.version.Store(0)
			_ = pubsub.Close()
		}()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					// Unknown payload: forget the version and reread it.
					c.version.Store(0)
					continue
				}
				c.observe(ver)
			}
		}
	}()
	return nil
}

// observe raises the local version to ver. Caches without a listener keep
// no local version and always read it from Redis.
func (c *Cache) observe(ver int64) {
	if !c.listening.Load() {
		return
	}
	for {
		cur := c.version.Load()
		if ver <= cur || c.version.CompareAndSwap(cur, ver) {
			return
		}
	}
}

func keyChurnSummary() string {
	return "churn_rate"
}

func keySegments(dim string) string {
	return "segments:" + dim
}
