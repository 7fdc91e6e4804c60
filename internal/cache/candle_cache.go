package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crypto-paper-trader/internal/binance"
	"crypto-paper-trader/internal/logging"
)

// CandleFeed is the upstream source the cache falls back to
type CandleFeed interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]binance.Candle, error)
}

// CandleCache is a read-through cache for kline data. When Redis is down or
// disabled, every call falls through to the upstream feed so the engine keeps
// running without caching.
type CandleCache struct {
	client  *redis.Client
	feed    CandleFeed
	ttl     time.Duration
	healthy bool
	logger  *logging.Logger
}

// NewCandleCache creates a candle cache backed by Redis. Pass a nil client to
// run in pass-through mode.
func NewCandleCache(client *redis.Client, feed CandleFeed, ttl time.Duration, logger *logging.Logger) *CandleCache {
	c := &CandleCache{
		client: client,
		feed:   feed,
		ttl:    ttl,
		logger: logger.WithComponent("candle_cache"),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			c.logger.Warn("Redis unavailable, candle cache running in pass-through mode", "error", err)
		} else {
			c.healthy = true
			c.logger.Info("Candle cache connected to Redis", "ttl", ttl.String())
		}
	}

	return c
}

// FetchCandles returns cached candles when fresh, otherwise fetches from the
// upstream feed and stores the result.
func (c *CandleCache) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]binance.Candle, error) {
	if !c.healthy {
		return c.feed.FetchCandles(ctx, symbol, timeframe, limit)
	}

	key := candleKey(symbol, timeframe, limit)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var candles []binance.Candle
		if jsonErr := json.Unmarshal(data, &candles); jsonErr == nil {
			return candles, nil
		}
		// corrupt entry, drop it and refetch
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("Redis read failed, falling back to feed", "key", key, "error", err)
	}

	candles, err := c.feed.FetchCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(candles); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Redis write failed", "key", key, "error", err)
		}
	}

	return candles, nil
}

// Healthy reports whether Redis is usable
func (c *CandleCache) Healthy() bool {
	return c.healthy
}

// Close releases the Redis connection
func (c *CandleCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func candleKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf("candles:%s:%s:%d", symbol, timeframe, limit)
}
