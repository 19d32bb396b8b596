package chargemaster

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/medbill/internal/billing"
)

const cachePrefix = "chargemaster:"

// Cache stores normalised charges in Redis as JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client or non-positive TTL disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func cacheKey(module billing.Module, id string) string {
	return cachePrefix + string(module) + ":" + id
}

// Get returns a cached charge and whether it was present.
func (c *Cache) Get(ctx context.Context, module billing.Module, id string) (billing.CatalogCharge, bool, error) {
	if !c.enabled() || id == "" {
		return billing.CatalogCharge{}, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey(module, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return billing.CatalogCharge{}, false, nil
		}
		return billing.CatalogCharge{}, false, err
	}
	var charge billing.CatalogCharge
	if err := json.Unmarshal(data, &charge); err != nil {
		return billing.CatalogCharge{}, false, err
	}
	return charge, true, nil
}

// Set stores a charge with the configured TTL.
func (c *Cache) Set(ctx context.Context, module billing.Module, charge billing.CatalogCharge) error {
	if !c.enabled() || charge.ID == "" {
		return nil
	}
	data, err := json.Marshal(charge)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(module, charge.ID), data, c.ttl).Err()
}

// Invalidate drops a cached charge after the charge master changes.
func (c *Cache) Invalidate(ctx context.Context, module billing.Module, id string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, cacheKey(module, id)).Err()
}
