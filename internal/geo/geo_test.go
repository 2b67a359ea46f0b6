package geo

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestHaversineKmLondonToBrighton(t *testing.T) {
	london := Coordinate{Lat: 51.5074, Lon: -0.1278}
	brighton := Coordinate{Lat: 50.8225, Lon: -0.1372}

	d := HaversineKm(london, brighton)
	if math.Abs(d-76.2) > 1.5 {
		t.Fatalf("expected ~76 km, got %f", d)
	}
}

func TestHaversineKmZeroForSamePoint(t *testing.T) {
	p := Coordinate{Lat: 51.5, Lon: -0.12}
	if d := HaversineKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestOutwardCode(t *testing.T) {
	cases := map[string]string{
		"SW1A 1AA": "SW1A",
		"sw1a 1aa": "SW1A",
		"M1 1AE":   "M1",
		"EC1A1BB":  "EC1A",
		"W1":       "W1",
	}
	for in, want := range cases {
		if got := OutwardCode(in); got != want {
			t.Fatalf("OutwardCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTravelMinutesFloor(t *testing.T) {
	if got := TravelMinutes(0.5); got != 5 {
		t.Fatalf("expected minimum 5 minutes, got %d", got)
	}
	if got := TravelMinutes(40); got != 60 {
		t.Fatalf("expected 60 minutes for 40 km, got %d", got)
	}
	if got := TravelMinutes(0); got != 0 {
		t.Fatalf("expected 0 for zero distance, got %d", got)
	}
}

func TestStaticLocator(t *testing.T) {
	l := StaticLocator{Coords: map[string]Coordinate{
		"SW1A 1AA": {Lat: 51.501, Lon: -0.1416},
	}}

	coord, err := l.Locate(context.Background(), "sw1a 1aa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coord.Lat != 51.501 {
		t.Fatalf("unexpected coordinate: %+v", coord)
	}

	_, err = l.Locate(context.Background(), "ZZ9 9ZZ")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
