package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"dukaanpos/backend/internal/domain"
)

// Redis implements ProductLookup on a redis instance. Cache failures are
// logged and treated as misses; the store stays the source of truth.
type Redis struct {
	client *redis.Client
	logger *log.Logger
}

func NewRedis(addr, password string, db int, logger *log.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	return &Redis{client: client, logger: logger}
}

func key(barcode string) string { return "product:barcode:" + barcode }

func (r *Redis) Get(ctx context.Context, barcode string) (domain.Product, bool) {
	raw, err := r.client.Get(ctx, key(barcode)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Printf("[cache] get %s: %v", barcode, err)
		}
		return domain.Product{}, false
	}
	var product domain.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		r.logger.Printf("[cache] decode %s: %v", barcode, err)
		return domain.Product{}, false
	}
	return product, true
}

func (r *Redis) Set(ctx context.Context, barcode string, product domain.Product, ttl time.Duration) {
	raw, err := json.Marshal(product)
	if err != nil {
		r.logger.Printf("[cache] encode %s: %v", barcode, err)
		return
	}
	if err := r.client.Set(ctx, key(barcode), raw, ttl).Err(); err != nil {
		r.logger.Printf("[cache] set %s: %v", barcode, err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, barcode string) {
	if err := r.client.Del(ctx, key(barcode)).Err(); err != nil {
		r.logger.Printf("[cache] invalidate %s: %v", barcode, err)
	}
}

func (r *Redis) Close() error { return r.client.Close() }
