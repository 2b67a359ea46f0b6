package service

import (
	"testing"
	"time"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func approvedEngineer(id string) models.EngineerProfile {
	return models.EngineerProfile{
		ID:     id,
		Status: models.ApprovalApproved,
		Competencies: []models.Competency{
			{ServiceCode: "PAT", Certified: true, ExperienceYears: 4},
		},
		Qualifications: []models.Qualification{
			{Name: "City & Guilds 2377", ServiceCode: "PAT", ExpiresAt: date(2026, 1, 1), Verified: true},
		},
		CoverageAreas: []models.CoverageArea{
			{PostcodePrefix: "SW1A", Lat: 51.5, Lon: -0.14, RadiusKm: 25},
		},
	}
}

func patBooking() (models.Booking, models.Service, models.Site) {
	booking := models.Booking{
		ID:            "b1",
		ServiceCode:   "PAT",
		ScheduledDate: date(2025, 3, 10),
	}
	svc := models.Service{Code: "PAT", RequiresCert: true, MinCharge: 60}
	site := models.Site{ID: "s1", Postcode: "SW1A 1AA"}
	return booking, svc, site
}

func TestFilterEligibleEngineersAllRulesPass(t *testing.T) {
	booking, svc, site := patBooking()
	pool := []models.EngineerProfile{approvedEngineer("e1")}

	res := FilterEligibleEngineers(pool, booking, svc, site, nil)
	if len(res.Eligible) != 1 || res.Eligible[0].ID != "e1" {
		t.Fatalf("expected e1 eligible, got %+v", res.Eligible)
	}
	if len(res.Stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(res.Stages))
	}
}

func TestFilterExcludesUnapproved(t *testing.T) {
	booking, svc, site := patBooking()
	suspended := approvedEngineer("e1")
	suspended.Status = models.ApprovalSuspended
	pending := approvedEngineer("e2")
	pending.Status = models.ApprovalPending

	res := FilterEligibleEngineers([]models.EngineerProfile{suspended, pending}, booking, svc, site, nil)
	if len(res.Eligible) != 0 {
		t.Fatalf("expected no eligible engineers, got %+v", res.Eligible)
	}
	if res.ReasonCode != "NO_APPROVED_ENGINEERS" {
		t.Fatalf("unexpected reason code %s", res.ReasonCode)
	}
}

func TestFilterRequiresCertifiedCompetency(t *testing.T) {
	booking, svc, site := patBooking()
	uncertified := approvedEngineer("e1")
	uncertified.Competencies = []models.Competency{{ServiceCode: "PAT", Certified: false}}

	res := FilterEligibleEngineers([]models.EngineerProfile{uncertified}, booking, svc, site, nil)
	if res.ReasonCode != "NO_COMPETENT_ENGINEERS" {
		t.Fatalf("expected NO_COMPETENT_ENGINEERS, got %s", res.ReasonCode)
	}
}

func TestFilterRejectsExpiredQualification(t *testing.T) {
	booking, svc, site := patBooking()
	expired := approvedEngineer("e1")
	expired.Qualifications = []models.Qualification{
		{Name: "Old cert", ServiceCode: "PAT", ExpiresAt: date(2025, 3, 1), Verified: true},
	}

	res := FilterEligibleEngineers([]models.EngineerProfile{expired}, booking, svc, site, nil)
	if res.ReasonCode != "NO_QUALIFIED_ENGINEERS" {
		t.Fatalf("expected NO_QUALIFIED_ENGINEERS, got %s", res.ReasonCode)
	}
}

func TestFilterRejectsUnverifiedQualification(t *testing.T) {
	booking, svc, site := patBooking()
	unverified := approvedEngineer("e1")
	unverified.Qualifications = []models.Qualification{
		{Name: "Pending cert", ServiceCode: "PAT", ExpiresAt: date(2026, 1, 1), Verified: false},
	}

	res := FilterEligibleEngineers([]models.EngineerProfile{unverified}, booking, svc, site, nil)
	if res.ReasonCode != "NO_QUALIFIED_ENGINEERS" {
		t.Fatalf("expected NO_QUALIFIED_ENGINEERS, got %s", res.ReasonCode)
	}
}

func TestFilterSkipsQualificationWhenServiceDoesNotRequireCert(t *testing.T) {
	booking, svc, site := patBooking()
	svc.RequiresCert = false
	noQual := approvedEngineer("e1")
	noQual.Qualifications = nil

	res := FilterEligibleEngineers([]models.EngineerProfile{noQual}, booking, svc, site, nil)
	if len(res.Eligible) != 1 {
		t.Fatalf("expected eligible without qualification, got %+v", res)
	}
}

func TestFilterCoverageByRadiusWhenPrefixDiffers(t *testing.T) {
	booking, svc, site := patBooking()
	remote := approvedEngineer("e1")
	remote.CoverageAreas = []models.CoverageArea{
		{PostcodePrefix: "N1", Lat: 51.53, Lon: -0.10, RadiusKm: 10},
	}
	siteCoord := &geo.Coordinate{Lat: 51.501, Lon: -0.1416}

	res := FilterEligibleEngineers([]models.EngineerProfile{remote}, booking, svc, site, siteCoord)
	if len(res.Eligible) != 1 {
		t.Fatalf("expected radius coverage to qualify, got %+v", res)
	}

	// Without a site coordinate the radius rule cannot fire.
	res = FilterEligibleEngineers([]models.EngineerProfile{remote}, booking, svc, site, nil)
	if res.ReasonCode != "NO_COVERAGE" {
		t.Fatalf("expected NO_COVERAGE without coordinate, got %s", res.ReasonCode)
	}
}
