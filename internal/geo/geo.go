package geo

import (
	"context"
	"errors"
	"math"
	"strings"
)

// ErrUnavailable marks a failed or timed-out coordinate lookup. Callers are
// expected to degrade distance-dependent behaviour instead of failing.
var ErrUnavailable = errors.New("geo lookup unavailable")

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Locator resolves a postcode to a coordinate.
type Locator interface {
	Locate(ctx context.Context, postcode string) (Coordinate, error)
}

const earthRadiusKm = 6371.0

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

func HaversineKm(a, b Coordinate) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLon := degreesToRadians(b.Lon - a.Lon)

	latA := degreesToRadians(a.Lat)
	latB := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(latA)*math.Cos(latB)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

const avgSpeedKmh = 40.0

// TravelMinutes is a static road-speed estimate, not a live routing figure.
func TravelMinutes(km float64) int {
	if km <= 0 {
		return 0
	}
	minutes := int(math.Round(km / avgSpeedKmh * 60))
	if minutes < 5 {
		return 5
	}
	return minutes
}

// OutwardCode extracts the prefix of a UK-style postcode ("SW1A 1AA" ->
// "SW1A"). Postcodes without a space fall back to dropping the three-char
// inward code.
func OutwardCode(postcode string) string {
	pc := strings.ToUpper(strings.TrimSpace(postcode))
	if i := strings.IndexByte(pc, ' '); i > 0 {
		return pc[:i]
	}
	if len(pc) > 3 {
		return pc[:len(pc)-3]
	}
	return pc
}

func NormalizePostcode(postcode string) string {
	return strings.ToUpper(strings.Join(strings.Fields(postcode), " "))
}
