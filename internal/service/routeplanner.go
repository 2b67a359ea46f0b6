package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

// AssignedJob is one of an engineer's bookings for a day, with its site.
type AssignedJob struct {
	Booking models.Booking
	Site    models.Site
}

type RouteStore interface {
	ListEngineerDayBookings(ctx context.Context, engineerID string, date time.Time) ([]AssignedJob, error)
}

type RoutePlanner struct {
	Store      RouteStore
	Locator    geo.Locator
	GeoTimeout time.Duration
	Logger     zerolog.Logger
}

// OptimizeRoute orders the engineer's assigned jobs for the date. Sites
// without a resolvable coordinate stay in the route but sort by time slot
// at the tail of the walk.
func (p *RoutePlanner) OptimizeRoute(ctx context.Context, engineerID string, date time.Time) ([]models.RouteStop, error) {
	jobs, err := p.Store.ListEngineerDayBookings(ctx, engineerID, date)
	if err != nil {
		return nil, fmt.Errorf("load day bookings: %w", err)
	}

	routeJobs := make([]RouteJob, 0, len(jobs))
	for _, job := range jobs {
		routeJobs = append(routeJobs, RouteJob{
			Booking: job.Booking,
			Coord:   p.resolveCoord(ctx, job.Site),
		})
	}

	return OrderStops(routeJobs), nil
}

func (p *RoutePlanner) resolveCoord(ctx context.Context, site models.Site) *geo.Coordinate {
	if site.Lat != nil && site.Lon != nil {
		return &geo.Coordinate{Lat: *site.Lat, Lon: *site.Lon}
	}
	if p.Locator == nil {
		return nil
	}

	timeout := p.GeoTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	geoCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coord, err := p.Locator.Locate(geoCtx, site.Postcode)
	if err != nil {
		p.Logger.Warn().Err(err).Str("postcode", site.Postcode).Msg("route geo lookup degraded")
		return nil
	}
	return &coord
}
