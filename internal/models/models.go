package models

import (
	"encoding/json"
	"time"
)

type BookingStatus string

const (
	StatusPending         BookingStatus = "PENDING"
	StatusConfirmed       BookingStatus = "CONFIRMED"
	StatusEnRoute         BookingStatus = "EN_ROUTE"
	StatusOnSite          BookingStatus = "ON_SITE"
	StatusInProgress      BookingStatus = "IN_PROGRESS"
	StatusCompleted       BookingStatus = "COMPLETED"
	StatusDeclined        BookingStatus = "DECLINED"
	StatusCancelled       BookingStatus = "CANCELLED"
	StatusRequiresRevisit BookingStatus = "REQUIRES_REVISIT"
)

type BookingAction string

const (
	ActionAccept      BookingAction = "ACCEPT"
	ActionStartTravel BookingAction = "START_TRAVEL"
	ActionArrive      BookingAction = "ARRIVE"
	ActionStartWork   BookingAction = "START_WORK"
	ActionComplete    BookingAction = "COMPLETE"
	ActionDecline     BookingAction = "DECLINE"
	ActionCancel      BookingAction = "CANCEL"
	ActionRevisit     BookingAction = "REVISIT"
	ActionReopen      BookingAction = "REOPEN"
)

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "PENDING_APPROVAL"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalSuspended ApprovalStatus = "SUSPENDED"
)

type Booking struct {
	ID                   string        `json:"id"`
	ServiceCode          string        `json:"service_code"`
	SiteID               string        `json:"site_id"`
	CustomerID           string        `json:"customer_id"`
	ScheduledDate        time.Time     `json:"scheduled_date"`
	TimeSlot             string        `json:"time_slot"`
	EstimatedQuantity    int           `json:"estimated_quantity"`
	Status               BookingStatus `json:"status"`
	EngineerID           *string       `json:"engineer_id"`
	OriginalPrice        float64       `json:"original_price"`
	QuotedPrice          *float64      `json:"quoted_price"`
	FlexibleDates        bool          `json:"flexible_dates"`
	CustomerSignatureURL *string       `json:"customer_signature_url,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	AcceptedAt           *time.Time    `json:"accepted_at,omitempty"`
	EnRouteAt            *time.Time    `json:"en_route_at,omitempty"`
	ArrivedAt            *time.Time    `json:"arrived_at,omitempty"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	CancelledAt          *time.Time    `json:"cancelled_at,omitempty"`
}

type Site struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Postcode string   `json:"postcode"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
}

type Service struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	RequiresCert bool    `json:"requires_cert"`
	BasePrice    float64 `json:"base_price"`
	MinCharge    float64 `json:"min_charge"`
}

type EngineerProfile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Status          ApprovalStatus  `json:"status"`
	ExperienceYears int             `json:"experience_years"`
	Competencies    []Competency    `json:"competencies"`
	Qualifications  []Qualification `json:"qualifications"`
	CoverageAreas   []CoverageArea  `json:"coverage_areas"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Competency struct {
	ServiceCode     string `json:"service_code"`
	Certified       bool   `json:"certified"`
	ExperienceYears int    `json:"experience_years"`
}

type Qualification struct {
	Name        string    `json:"name"`
	ServiceCode string    `json:"service_code"`
	ExpiresAt   time.Time `json:"expires_at"`
	Verified    bool      `json:"verified"`
}

type CoverageArea struct {
	PostcodePrefix string  `json:"postcode_prefix"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	RadiusKm       float64 `json:"radius_km"`
}

type RuleType string

const (
	RuleCluster RuleType = "cluster"
	RuleUrgency RuleType = "urgency"
	RuleOffPeak RuleType = "offpeak"
	RuleFlex    RuleType = "flex"
	RuleLoyalty RuleType = "loyalty"
)

type PricingRule struct {
	ID       string          `json:"id"`
	Type     RuleType        `json:"type"`
	Enabled  bool            `json:"enabled"`
	Priority int             `json:"priority"`
	Config   json.RawMessage `json:"config"`
}

// ScoredCandidate is one row of the allocation decision log. The full factor
// breakdown is captured at decision time so the "why this engineer" view
// never has to recompute anything.
type ScoredCandidate struct {
	EngineerID    string             `json:"engineer_id"`
	CustomerScore float64            `json:"customer_score"`
	EngineerScore float64            `json:"engineer_score"`
	PlatformScore float64            `json:"platform_score"`
	Composite     float64            `json:"composite"`
	Factors       map[string]float64 `json:"factors"`
	Selected      bool               `json:"selected"`
}

type AllocationLog struct {
	ID                 string            `json:"id"`
	BookingID          string            `json:"booking_id"`
	SelectedEngineerID string            `json:"selected_engineer_id"`
	Candidates         []ScoredCandidate `json:"candidates"`
	Reason             string            `json:"reason"`
	CreatedAt          time.Time         `json:"created_at"`
}

type StatusLogEntry struct {
	ID         string        `json:"id"`
	BookingID  string        `json:"booking_id"`
	Action     BookingAction `json:"action"`
	FromStatus BookingStatus `json:"from_status"`
	ToStatus   BookingStatus `json:"to_status"`
	ActorID    string        `json:"actor_id"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RouteStop is derived per request and never persisted.
type RouteStop struct {
	Booking        Booking `json:"booking"`
	SuggestedOrder int     `json:"suggested_order"`
	LegKm          float64 `json:"leg_km"`
	TravelMinutes  int     `json:"travel_minutes"`
}
