package service

import (
	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

type EligibilityResult struct {
	Eligible   []models.EngineerProfile
	Stages     []EligibilityStage
	ReasonCode string
	ReasonText string
}

type EligibilityStage struct {
	Name       string
	Candidates []models.EngineerProfile
}

// FilterEligibleEngineers narrows the pool to engineers who are approved,
// certified-competent for the service, hold a verified unexpired
// qualification when one is required, and cover the site. SiteCoord may be
// nil when the geo lookup failed; coverage then falls back to postcode
// prefix matching only.
func FilterEligibleEngineers(pool []models.EngineerProfile, booking models.Booking, svc models.Service, site models.Site, siteCoord *geo.Coordinate) EligibilityResult {
	result := EligibilityResult{}

	approved := filterEngineers(pool, func(e models.EngineerProfile) bool {
		return e.Status == models.ApprovalApproved
	})
	result.Stages = append(result.Stages, EligibilityStage{Name: "approved", Candidates: approved})
	if len(approved) == 0 {
		result.ReasonCode = "NO_APPROVED_ENGINEERS"
		result.ReasonText = "No approved engineers in pool"
		return result
	}

	competent := filterEngineers(approved, func(e models.EngineerProfile) bool {
		return hasCertifiedCompetency(e, booking.ServiceCode)
	})
	result.Stages = append(result.Stages, EligibilityStage{Name: "competency", Candidates: competent})
	if len(competent) == 0 {
		result.ReasonCode = "NO_COMPETENT_ENGINEERS"
		result.ReasonText = "No engineer certified for service " + booking.ServiceCode
		return result
	}

	qualified := competent
	if svc.RequiresCert {
		qualified = filterEngineers(competent, func(e models.EngineerProfile) bool {
			return hasValidQualification(e, booking)
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "qualification", Candidates: qualified})
	if len(qualified) == 0 {
		result.ReasonCode = "NO_QUALIFIED_ENGINEERS"
		result.ReasonText = "No engineer holds a valid qualification for the scheduled date"
		return result
	}

	sitePrefix := geo.OutwardCode(site.Postcode)
	covering := filterEngineers(qualified, func(e models.EngineerProfile) bool {
		return coversSite(e, sitePrefix, siteCoord)
	})
	result.Stages = append(result.Stages, EligibilityStage{Name: "coverage", Candidates: covering})
	if len(covering) == 0 {
		result.ReasonCode = "NO_COVERAGE"
		result.ReasonText = "No engineer covers postcode area " + sitePrefix
		return result
	}

	result.Eligible = covering
	return result
}

func hasCertifiedCompetency(e models.EngineerProfile, serviceCode string) bool {
	for _, c := range e.Competencies {
		if c.ServiceCode == serviceCode && c.Certified {
			return true
		}
	}
	return false
}

func hasValidQualification(e models.EngineerProfile, booking models.Booking) bool {
	for _, q := range e.Qualifications {
		if q.ServiceCode != booking.ServiceCode {
			continue
		}
		if q.Verified && q.ExpiresAt.After(booking.ScheduledDate) {
			return true
		}
	}
	return false
}

func coversSite(e models.EngineerProfile, sitePrefix string, siteCoord *geo.Coordinate) bool {
	for _, area := range e.CoverageAreas {
		// Coverage prefixes are stored as outward codes already.
		if geo.NormalizePostcode(area.PostcodePrefix) == sitePrefix {
			return true
		}
		if siteCoord != nil {
			center := geo.Coordinate{Lat: area.Lat, Lon: area.Lon}
			if geo.HaversineKm(center, *siteCoord) <= area.RadiusKm {
				return true
			}
		}
	}
	return false
}

func filterEngineers(pool []models.EngineerProfile, keep func(models.EngineerProfile) bool) []models.EngineerProfile {
	out := make([]models.EngineerProfile, 0, len(pool))
	for _, e := range pool {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
