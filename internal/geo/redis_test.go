package geo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingLocator struct {
	inner StaticLocator
	calls int
}

func (c *countingLocator) Locate(ctx context.Context, postcode string) (Coordinate, error) {
	c.calls++
	return c.inner.Locate(ctx, postcode)
}

func TestRedisLocatorCachesLookups(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	next := &countingLocator{inner: StaticLocator{Coords: map[string]Coordinate{
		"SW1A 1AA": {Lat: 51.501, Lon: -0.1416},
	}}}
	l := &RedisLocator{Client: client, Next: next, TTL: time.Hour}

	ctx := context.Background()
	first, err := l.Locate(ctx, "SW1A 1AA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := l.Locate(ctx, "sw1a 1aa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Fatalf("expected identical coordinates, got %+v vs %+v", first, second)
	}
	if next.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", next.calls)
	}
}

func TestRedisLocatorPropagatesUpstreamError(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	l := &RedisLocator{Client: client, Next: StaticLocator{}, TTL: time.Hour}
	if _, err := l.Locate(context.Background(), "ZZ9 9ZZ"); err == nil {
		t.Fatalf("expected error for unknown postcode")
	}
}
