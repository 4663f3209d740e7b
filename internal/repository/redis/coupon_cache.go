// Package redis caches coupons by code in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/domain"
)

const keyPrefix = "coupon:code:"

// CouponCache implements repository.CouponCache. Entries carry the usage
// count as of caching, so callers must not rely on it for the global cap.
type CouponCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCouponCache(client *redis.Client, ttl time.Duration) *CouponCache {
	return &CouponCache{client: client, ttl: ttl}
}

// Get returns (nil, nil) on a miss.
func (c *CouponCache) Get(ctx context.Context, code string) (*domain.Coupon, error) {
	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get coupon: %w", err)
	}

	var coupon domain.Coupon
	if err := json.Unmarshal(data, &coupon); err != nil {
		return nil, fmt.Errorf("unmarshal cached coupon: %w", err)
	}
	return &coupon, nil
}

func (c *CouponCache) Set(ctx context.Context, coupon *domain.Coupon) error {
	data, err := json.Marshal(coupon)
	if err != nil {
		return fmt.Errorf("marshal coupon: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+coupon.Code, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set coupon: %w", err)
	}
	return nil
}

func (c *CouponCache) Delete(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("redis del coupon: %w", err)
	}
	return nil
}
