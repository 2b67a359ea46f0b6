package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

// WorkloadCount is one engineer's assigned-job tally around a date.
type WorkloadCount struct {
	Day  int
	Week int
}

// AllocatorStore is the slice of persistence the allocator needs. The
// assignment write must be conditional: it fails with ErrAlreadyAllocated
// when the booking is no longer PENDING and unassigned.
type AllocatorStore interface {
	GetBooking(ctx context.Context, id string) (models.Booking, error)
	GetSite(ctx context.Context, id string) (models.Site, error)
	GetService(ctx context.Context, code string) (models.Service, error)
	ListEngineerPool(ctx context.Context) ([]models.EngineerProfile, error)
	CountWorkloads(ctx context.Context, date time.Time) (map[string]WorkloadCount, error)
	ListDaySites(ctx context.Context, date time.Time) (map[string][]geo.Coordinate, error)
	AssignBooking(ctx context.Context, bookingID, engineerID string, entry models.AllocationLog) error
	UpdateQuotedPrice(ctx context.Context, bookingID string, price float64) error
	ListPricingRules(ctx context.Context) ([]models.PricingRule, error)
	CountCompletedBookings(ctx context.Context, customerID string) (int, error)
}

type AllocationResult struct {
	BookingID      string                   `json:"booking_id"`
	EngineerID     string                   `json:"engineer_id"`
	CompositeScore float64                  `json:"composite_score"`
	QuotedPrice    *float64                 `json:"quoted_price,omitempty"`
	Candidates     []models.ScoredCandidate `json:"candidates"`
	Reason         string                   `json:"reason"`
}

type Allocator struct {
	Store      AllocatorStore
	Locator    geo.Locator
	Scoring    ScoringConfig
	Quoter     *Quoter
	GeoTimeout time.Duration
	Logger     zerolog.Logger
	Now        func() time.Time
}

func (a *Allocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// Allocate picks the best eligible engineer for a pending booking, writes
// the assignment exactly once, and records the full scoreboard. After a
// successful assignment the price is requoted; a quote failure is logged
// but does not undo the allocation.
func (a *Allocator) Allocate(ctx context.Context, bookingID string) (AllocationResult, error) {
	booking, err := a.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return AllocationResult{}, err
	}
	if booking.Status != models.StatusPending || booking.EngineerID != nil {
		return AllocationResult{}, ErrAlreadyAllocated
	}

	site, err := a.Store.GetSite(ctx, booking.SiteID)
	if err != nil {
		return AllocationResult{}, fmt.Errorf("load site: %w", err)
	}
	svc, err := a.Store.GetService(ctx, booking.ServiceCode)
	if err != nil {
		return AllocationResult{}, fmt.Errorf("load service: %w", err)
	}

	siteCoord := a.resolveSiteCoord(ctx, site)

	pool, err := a.Store.ListEngineerPool(ctx)
	if err != nil {
		return AllocationResult{}, fmt.Errorf("load engineer pool: %w", err)
	}

	elig := FilterEligibleEngineers(pool, booking, svc, site, siteCoord)
	if len(elig.Eligible) == 0 {
		a.Logger.Info().
			Str("booking_id", bookingID).
			Str("reason_code", elig.ReasonCode).
			Msg("no eligible engineer")
		return AllocationResult{}, fmt.Errorf("%w: %s", ErrNoEligibleEngineer, elig.ReasonText)
	}

	workloads, err := a.Store.CountWorkloads(ctx, booking.ScheduledDate)
	if err != nil {
		return AllocationResult{}, fmt.Errorf("load workloads: %w", err)
	}
	daySites, err := a.Store.ListDaySites(ctx, booking.ScheduledDate)
	if err != nil {
		return AllocationResult{}, fmt.Errorf("load day sites: %w", err)
	}

	contexts := make([]CandidateContext, 0, len(elig.Eligible))
	for _, eng := range elig.Eligible {
		contexts = append(contexts, a.buildContext(eng, siteCoord, workloads[eng.ID], daySites[eng.ID]))
	}

	ranked := RankCandidates(a.Scoring, contexts)
	ranked[0].Selected = true
	selected := ranked[0]

	entry := models.AllocationLog{
		ID:                 uuid.New().String(),
		BookingID:          bookingID,
		SelectedEngineerID: selected.EngineerID,
		Candidates:         ranked,
		Reason:             allocationReason(selected, len(ranked)),
		CreatedAt:          a.now(),
	}

	if err := a.Store.AssignBooking(ctx, bookingID, selected.EngineerID, entry); err != nil {
		return AllocationResult{}, err
	}

	result := AllocationResult{
		BookingID:      bookingID,
		EngineerID:     selected.EngineerID,
		CompositeScore: selected.Composite,
		Candidates:     ranked,
		Reason:         entry.Reason,
	}

	if price, quoteErr := a.requote(ctx, booking, svc, siteCoord, daySites[selected.EngineerID]); quoteErr != nil {
		a.Logger.Warn().Err(quoteErr).Str("booking_id", bookingID).Msg("requote after allocation failed")
	} else {
		result.QuotedPrice = &price
	}

	return result, nil
}

// resolveSiteCoord prefers cached site coordinates and falls back to the
// postcode lookup under its own timeout. Lookup failure degrades scoring
// and coverage to prefix-only; it never fails the allocation.
func (a *Allocator) resolveSiteCoord(ctx context.Context, site models.Site) *geo.Coordinate {
	if site.Lat != nil && site.Lon != nil {
		return &geo.Coordinate{Lat: *site.Lat, Lon: *site.Lon}
	}
	if a.Locator == nil {
		return nil
	}

	timeout := a.GeoTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	geoCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coord, err := a.Locator.Locate(geoCtx, site.Postcode)
	if err != nil {
		a.Logger.Warn().Err(err).Str("postcode", site.Postcode).Msg("geo lookup degraded")
		return nil
	}
	return &coord
}

func (a *Allocator) buildContext(eng models.EngineerProfile, siteCoord *geo.Coordinate, load WorkloadCount, engDaySites []geo.Coordinate) CandidateContext {
	cand := CandidateContext{
		Engineer:      eng,
		JobsToday:     load.Day,
		JobsThisWeek:  load.Week,
		HasDayBooking: load.Day > 0,
	}
	if siteCoord != nil {
		if base := nearestBaseKm(eng, *siteCoord); base != nil {
			cand.DistanceKm = base
		}
		for _, s := range engDaySites {
			if geo.HaversineKm(*siteCoord, s) <= a.Scoring.ClusterRadiusKm {
				cand.ClusterJobs++
			}
		}
	}
	return cand
}

// nearestBaseKm measures from the closest coverage-area center, the best
// static stand-in for where the engineer actually starts a day.
func nearestBaseKm(eng models.EngineerProfile, site geo.Coordinate) *float64 {
	var best *float64
	for _, area := range eng.CoverageAreas {
		d := geo.HaversineKm(geo.Coordinate{Lat: area.Lat, Lon: area.Lon}, site)
		if best == nil || d < *best {
			km := d
			best = &km
		}
	}
	return best
}

func (a *Allocator) requote(ctx context.Context, booking models.Booking, svc models.Service, siteCoord *geo.Coordinate, engDaySites []geo.Coordinate) (float64, error) {
	if a.Quoter == nil {
		return 0, errors.New("no quoter configured")
	}
	rules, err := a.Store.ListPricingRules(ctx)
	if err != nil {
		return 0, err
	}
	prior, err := a.Store.CountCompletedBookings(ctx, booking.CustomerID)
	if err != nil {
		return 0, err
	}

	quote := a.Quoter.Quote(rules, QuoteContext{
		BasePrice:              booking.OriginalPrice,
		ServiceMinCharge:       svc.MinCharge,
		ScheduledDate:          booking.ScheduledDate,
		Now:                    a.now(),
		FlexibleDates:          booking.FlexibleDates,
		PriorCompletedBookings: prior,
		SiteCoord:              siteCoord,
		EngineerDaySites:       engDaySites,
	})

	if err := a.Store.UpdateQuotedPrice(ctx, booking.ID, quote.Price); err != nil {
		return 0, err
	}
	return quote.Price, nil
}

// Quote reprices an existing booking on demand, persisting the result.
// Cluster facts come from the assigned engineer's other jobs that day;
// an unassigned booking quotes without the cluster rule input.
func (a *Allocator) Quote(ctx context.Context, bookingID string) (QuoteResult, error) {
	booking, err := a.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return QuoteResult{}, err
	}
	site, err := a.Store.GetSite(ctx, booking.SiteID)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("load site: %w", err)
	}
	svc, err := a.Store.GetService(ctx, booking.ServiceCode)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("load service: %w", err)
	}
	if a.Quoter == nil {
		return QuoteResult{}, errors.New("no quoter configured")
	}

	siteCoord := a.resolveSiteCoord(ctx, site)

	var engDaySites []geo.Coordinate
	if booking.EngineerID != nil {
		daySites, err := a.Store.ListDaySites(ctx, booking.ScheduledDate)
		if err != nil {
			return QuoteResult{}, fmt.Errorf("load day sites: %w", err)
		}
		engDaySites = daySites[*booking.EngineerID]
	}

	rules, err := a.Store.ListPricingRules(ctx)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("load pricing rules: %w", err)
	}
	prior, err := a.Store.CountCompletedBookings(ctx, booking.CustomerID)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("count completed bookings: %w", err)
	}

	quote := a.Quoter.Quote(rules, QuoteContext{
		BasePrice:              booking.OriginalPrice,
		ServiceMinCharge:       svc.MinCharge,
		ScheduledDate:          booking.ScheduledDate,
		Now:                    a.now(),
		FlexibleDates:          booking.FlexibleDates,
		PriorCompletedBookings: prior,
		SiteCoord:              siteCoord,
		EngineerDaySites:       engDaySites,
	})

	if err := a.Store.UpdateQuotedPrice(ctx, bookingID, quote.Price); err != nil {
		return QuoteResult{}, fmt.Errorf("persist quote: %w", err)
	}
	return quote, nil
}

func allocationReason(selected models.ScoredCandidate, total int) string {
	return fmt.Sprintf("engineer %s ranked first of %d candidates with composite %.2f (customer %.1f, engineer %.1f, platform %.1f)",
		selected.EngineerID, total, selected.Composite, selected.CustomerScore, selected.EngineerScore, selected.PlatformScore)
}
