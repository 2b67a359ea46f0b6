package geo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocator caches resolved coordinates in redis in front of another
// Locator. Cache failures are ignored; the wrapped locator is the source of
// truth.
type RedisLocator struct {
	Client *redis.Client
	Next   Locator
	TTL    time.Duration
}

func cacheKey(postcode string) string {
	return "geo:postcode:" + NormalizePostcode(postcode)
}

func (l *RedisLocator) Locate(ctx context.Context, postcode string) (Coordinate, error) {
	key := cacheKey(postcode)

	if raw, err := l.Client.Get(ctx, key).Result(); err == nil {
		var coord Coordinate
		if unmarshalErr := json.Unmarshal([]byte(raw), &coord); unmarshalErr == nil {
			return coord, nil
		}
	}

	coord, err := l.Next.Locate(ctx, postcode)
	if err != nil {
		return Coordinate{}, err
	}

	ttl := l.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if raw, marshalErr := json.Marshal(coord); marshalErr == nil {
		l.Client.Set(ctx, key, raw, ttl)
	}
	return coord, nil
}
