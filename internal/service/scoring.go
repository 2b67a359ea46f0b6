package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

const tieEpsilon = 1e-9

type ScoringWeights struct {
	Customer float64
	Engineer float64
	Platform float64
}

func (w ScoringWeights) Validate() error {
	if w.Customer < 0 || w.Engineer < 0 || w.Platform < 0 {
		return fmt.Errorf("scoring weights must be non-negative: %+v", w)
	}
	sum := w.Customer + w.Engineer + w.Platform
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// ScoringConfig carries the tunable constants. The defaults mirror the
// values the business has been running with, but nothing in the scorer
// treats them as fixed truth.
type ScoringConfig struct {
	Weights             ScoringWeights
	WorkloadPenaltyDay  float64
	WorkloadPenaltyWeek float64
	ClusterRadiusKm     float64
	ClusterBonus        float64
	ScheduleBonus       float64
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights:             ScoringWeights{Customer: 0.4, Engineer: 0.3, Platform: 0.3},
		WorkloadPenaltyDay:  5,
		WorkloadPenaltyWeek: 2,
		ClusterRadiusKm:     5,
		ClusterBonus:        25,
		ScheduleBonus:       10,
	}
}

// CandidateContext is everything the scorer needs about one eligible
// engineer relative to one booking. DistanceKm is nil when the geo lookup
// was unavailable; proximity then contributes the lowest tier.
type CandidateContext struct {
	Engineer      models.EngineerProfile
	DistanceKm    *float64
	JobsToday     int
	JobsThisWeek  int
	ClusterJobs   int
	HasDayBooking bool
}

// Raw customer-score components before rescaling. The three factors top out
// at 30 + 20 + 10 = 60 points, normalized to a 0-100 scale.
const customerRawMax = 60.0

func proximityTier(km float64) float64 {
	switch {
	case km <= 5:
		return 30
	case km <= 15:
		return 25
	case km <= 30:
		return 15
	case km <= 50:
		return 5
	default:
		return 0
	}
}

// ScoreCandidate computes the three weighted sub-scores and the composite
// for one candidate, recording every factor contribution by name.
func ScoreCandidate(cfg ScoringConfig, ctx CandidateContext) models.ScoredCandidate {
	factors := map[string]float64{}

	// Customer: proximity, certification, experience.
	var proximity float64
	if ctx.DistanceKm != nil {
		proximity = proximityTier(*ctx.DistanceKm)
		factors["proximity"] = proximity
	} else {
		factors["proximity_unavailable"] = 0
	}

	var certification float64
	if isCertified(ctx.Engineer) {
		certification = 20
	}
	factors["certification"] = certification

	experience := math.Min(float64(ctx.Engineer.ExperienceYears)*2, 10)
	factors["experience"] = experience

	customer := clampScore((proximity + certification + experience) * 100 / customerRawMax)

	// Engineer: lighter current workload scores higher.
	dayPenalty := float64(ctx.JobsToday) * cfg.WorkloadPenaltyDay
	weekPenalty := float64(ctx.JobsThisWeek) * cfg.WorkloadPenaltyWeek
	factors["workload_day"] = -dayPenalty
	factors["workload_week"] = -weekPenalty
	engineer := clampScore(100 - dayPenalty - weekPenalty)

	// Platform: reward geographic clustering and dense schedules.
	cluster := float64(ctx.ClusterJobs) * cfg.ClusterBonus
	factors["cluster"] = cluster
	var schedule float64
	if ctx.HasDayBooking {
		schedule = cfg.ScheduleBonus
	}
	factors["schedule"] = schedule
	platform := clampScore(cluster + schedule)

	w := cfg.Weights
	composite := w.Customer*customer + w.Engineer*engineer + w.Platform*platform

	return models.ScoredCandidate{
		EngineerID:    ctx.Engineer.ID,
		CustomerScore: customer,
		EngineerScore: engineer,
		PlatformScore: platform,
		Composite:     composite,
		Factors:       factors,
	}
}

// RankCandidates scores and orders candidates best-first. Ties within
// epsilon break by highest certified experience-years, then lowest current
// workload, then lowest engineer id, so repeated runs are reproducible.
func RankCandidates(cfg ScoringConfig, contexts []CandidateContext) []models.ScoredCandidate {
	byID := make(map[string]CandidateContext, len(contexts))
	scored := make([]models.ScoredCandidate, 0, len(contexts))
	for _, ctx := range contexts {
		byID[ctx.Engineer.ID] = ctx
		scored = append(scored, ScoreCandidate(cfg, ctx))
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if math.Abs(a.Composite-b.Composite) > tieEpsilon {
			return a.Composite > b.Composite
		}
		ca, cb := byID[a.EngineerID], byID[b.EngineerID]
		expA, expB := certifiedExperienceYears(ca.Engineer), certifiedExperienceYears(cb.Engineer)
		if expA != expB {
			return expA > expB
		}
		loadA, loadB := ca.JobsToday+ca.JobsThisWeek, cb.JobsToday+cb.JobsThisWeek
		if loadA != loadB {
			return loadA < loadB
		}
		return a.EngineerID < b.EngineerID
	})

	return scored
}

func certifiedExperienceYears(e models.EngineerProfile) int {
	max := 0
	for _, c := range e.Competencies {
		if c.Certified && c.ExperienceYears > max {
			max = c.ExperienceYears
		}
	}
	return max
}

func isCertified(e models.EngineerProfile) bool {
	for _, c := range e.Competencies {
		if c.Certified {
			return true
		}
	}
	return false
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
