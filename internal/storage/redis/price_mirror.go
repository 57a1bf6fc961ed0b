package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-dex-bot/internal/storage"
)

// PriceMirror stores the latest price of each mint as a hash at
// "price:{mint}" with fields "price" and "ts" (Unix milliseconds).
type PriceMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ storage.PriceMirror = (*PriceMirror)(nil)

// NewPriceMirror creates a PriceMirror. A positive ttl expires mints that
// stop trading.
func NewPriceMirror(c *Client, ttl time.Duration) *PriceMirror {
	return &PriceMirror{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(mint string) string {
	return "price:" + mint
}

// SetPrice stores the latest price and timestamp for a mint.
func (m *PriceMirror) SetPrice(ctx context.Context, mint string, price float64, ts time.Time) error {
	key := priceKey(mint)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixMilli(), 10),
	}

	pipe := m.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", mint, err)
	}
	return nil
}

// GetPrice returns the mirrored price of a mint or storage.ErrNotFound.
func (m *PriceMirror) GetPrice(ctx context.Context, mint string) (float64, time.Time, error) {
	vals, err := m.rdb.HGetAll(ctx, priceKey(mint)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", mint, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, storage.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", mint, err)
	}
	tsMs, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", mint, err)
	}
	return price, time.UnixMilli(tsMs), nil
}
