package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"BreakoutScreener/internal/model"
)

// CachingGateway decorates a Gateway with a Redis cache for candles.
// Completed candles never change, so they are cached per instrument and
// interval and only the tail after the last cached candle is fetched.
// Quotes always go to the inner gateway.
type CachingGateway struct {
	inner     Gateway
	rdb       *redis.Client
	namespace string
}

// candleEntry is the completed prefix of a series requested from From.
type candleEntry struct {
	From    time.Time      `json:"from"`
	Candles []model.Candle `json:"candles"`
}

// NewCachingGateway wraps inner. A nil rdb disables caching. If namespace is empty, it uses "candles".
func NewCachingGateway(rdb *redis.Client, inner Gateway, namespace string) *CachingGateway {
	if namespace == "" {
		namespace = "candles"
	}
	return &CachingGateway{inner: inner, rdb: rdb, namespace: namespace}
}

func (c *CachingGateway) Name() string { return c.inner.Name() + "+redis" }

func (c *CachingGateway) GetQuotes(ctx context.Context, ids []string) (map[string]model.Quote, error) {
	return c.inner.GetQuotes(ctx, ids)
}

// GetCandles merges cached completed candles with a fetch of the tail.
// An entry that starts after from is ignored and the full window is fetched.
func (c *CachingGateway) GetCandles(ctx context.Context, id string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	if c.rdb == nil {
		return c.inner.GetCandles(ctx, id, iv, from, to)
	}

	key := c.cacheKey(id, iv)
	var cached []model.Candle
	tailFrom := from
	if entry, ok := c.load(ctx, key); ok && !entry.From.After(from) {
		cached = entry.Candles
		if n := len(cached); n > 0 && cached[n-1].Time.Add(iv.Duration()).After(from) {
			tailFrom = cached[n-1].Time.Add(iv.Duration())
		}
	}

	tail, err := c.inner.GetCandles(ctx, id, iv, tailFrom, to)
	if err != nil {
		return nil, err
	}
	merged := make([]model.Candle, 0, len(cached)+len(tail))
	merged = append(merged, cached...)
	out := normalizeCandles(append(merged, tail...), from, to)

	c.store(ctx, key, iv, from, to, out)
	return out, nil
}

func (c *CachingGateway) load(ctx context.Context, key string) (candleEntry, bool) {
	var entry candleEntry
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil || len(b) == 0 {
		return entry, false
	}
	if err := json.Unmarshal(b, &entry); err != nil {
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
		return entry, false
	}
	return entry, true
}

// store keeps the candles completed at to for as long as the window spans.
func (c *CachingGateway) store(ctx context.Context, key string, iv model.Interval, from, to time.Time, candles []model.Candle) {
	ttl := to.Sub(from)
	if ttl <= 0 {
		return
	}
	entry := candleEntry{From: from, Candles: make([]model.Candle, 0, len(candles))}
	for _, cd := range candles {
		if cd.Completed(iv, to) {
			entry.Candles = append(entry.Candles, cd)
		}
	}
	if b, err := json.Marshal(entry); err == nil {
		_ = c.rdb.Set(ctx, key, b, ttl).Err()
	}
}

func (c *CachingGateway) cacheKey(id string, iv model.Interval) string {
	return fmt.Sprintf("%s:%s:%s", c.namespace, safe(id), iv)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
