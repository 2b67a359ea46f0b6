package service

import (
	"math"
	"sort"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

// RouteJob is one assigned booking with its resolved site coordinate.
// Coord is nil when the site could not be located; such jobs sort to the
// end of the route.
type RouteJob struct {
	Booking models.Booking
	Coord   *geo.Coordinate
}

// OrderStops orders one engineer's jobs for a day with a greedy
// nearest-neighbor walk: start at the earliest time slot, then repeatedly
// visit the geographically closest remaining job. Ties break by earlier
// time slot, then lower booking id, so the route is reproducible. The
// output is always a permutation of the input; an empty input yields an
// empty route.
func OrderStops(jobs []RouteJob) []models.RouteStop {
	if len(jobs) == 0 {
		return []models.RouteStop{}
	}

	remaining := make([]RouteJob, len(jobs))
	copy(remaining, jobs)
	sort.Slice(remaining, func(i, j int) bool {
		if remaining[i].Booking.TimeSlot != remaining[j].Booking.TimeSlot {
			return remaining[i].Booking.TimeSlot < remaining[j].Booking.TimeSlot
		}
		return remaining[i].Booking.ID < remaining[j].Booking.ID
	})

	stops := make([]models.RouteStop, 0, len(remaining))

	current := remaining[0]
	remaining = remaining[1:]
	stops = append(stops, models.RouteStop{Booking: current.Booking, SuggestedOrder: 1})

	for len(remaining) > 0 {
		bestIdx := 0
		bestKm := legDistance(current, remaining[0])
		for i := 1; i < len(remaining); i++ {
			km := legDistance(current, remaining[i])
			if km < bestKm {
				bestIdx = i
				bestKm = km
			}
		}

		next := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		legKm := 0.0
		if !math.IsInf(bestKm, 1) {
			legKm = bestKm
		}
		stops = append(stops, models.RouteStop{
			Booking:        next.Booking,
			SuggestedOrder: len(stops) + 1,
			LegKm:          legKm,
			TravelMinutes:  geo.TravelMinutes(legKm),
		})
		current = next
	}

	return stops
}

// legDistance returns +Inf when either endpoint has no coordinate; the
// slot/id pre-sort then decides among unlocatable jobs.
func legDistance(from, to RouteJob) float64 {
	if from.Coord == nil || to.Coord == nil {
		return math.Inf(1)
	}
	return geo.HaversineKm(*from.Coord, *to.Coord)
}
