package redisclient

import (
	"context"
	"time"

	"tnf-api/internal/ikas"
)

// VariantTypeCache memoizes variant type catalogs fetched from the gateway.
type VariantTypeCache struct {
	client *Client
	ttl    time.Duration
}

func NewVariantTypeCache(client *Client, ttl time.Duration) *VariantTypeCache {
	return &VariantTypeCache{client: client, ttl: ttl}
}

func (c *VariantTypeCache) Get(ctx context.Context, id string) (*ikas.VariantType, bool) {
	var vt ikas.VariantType
	if err := c.client.GetJSON(ctx, variantTypeKey(id), &vt); err != nil {
		return nil, false
	}
	return &vt, true
}

func (c *VariantTypeCache) Set(ctx context.Context, vt *ikas.VariantType) error {
	return c.client.SetJSON(ctx, variantTypeKey(vt.ID), vt, c.ttl)
}

func variantTypeKey(id string) string { return "ikas:variant-type:" + id }
