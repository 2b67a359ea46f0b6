package geo

import (
	"context"
	"fmt"
)

// StaticLocator serves coordinates from a fixed map. Used in tests and as a
// stand-in when no postcode API is configured.
type StaticLocator struct {
	Coords map[string]Coordinate
}

func (l StaticLocator) Locate(ctx context.Context, postcode string) (Coordinate, error) {
	coord, ok := l.Coords[NormalizePostcode(postcode)]
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: postcode %q not in static set", ErrUnavailable, postcode)
	}
	return coord, nil
}
