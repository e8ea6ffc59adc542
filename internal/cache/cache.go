// Package cache provides a read-through lookup cache for barcode scans.
// Scanning the same part barcodes all day is the hot path at the counter, so
// resolved products are cached; everything degrades to the store on a miss.
package cache

import (
	"context"
	"time"

	"dukaanpos/backend/internal/domain"
)

// ProductLookup caches barcode to product resolutions.
type ProductLookup interface {
	Get(ctx context.Context, barcode string) (domain.Product, bool)
	Set(ctx context.Context, barcode string, product domain.Product, ttl time.Duration)
	Invalidate(ctx context.Context, barcode string)
}

// Noop satisfies ProductLookup without caching anything. Used when no redis
// address is configured.
type Noop struct{}

func (Noop) Get(ctx context.Context, barcode string) (domain.Product, bool) {
	return domain.Product{}, false
}

func (Noop) Set(ctx context.Context, barcode string, product domain.Product, ttl time.Duration) {}

func (Noop) Invalidate(ctx context.Context, barcode string) {}
