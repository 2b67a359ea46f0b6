package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

type ClusterConfig struct {
	MinJobs         int     `json:"min_jobs"`
	RadiusKm        float64 `json:"radius_km"`
	DiscountPercent float64 `json:"discount_percent"`
}

type UrgencyConfig struct {
	DaysThreshold  int     `json:"days_threshold"`
	PremiumPercent float64 `json:"premium_percent"`
}

type OffPeakConfig struct {
	Days            []string `json:"days"`
	DiscountPercent float64  `json:"discount_percent"`
}

type FlexConfig struct {
	DiscountPercent float64 `json:"discount_percent"`
}

type LoyaltyConfig struct {
	MinBookings     int     `json:"min_bookings"`
	DiscountPercent float64 `json:"discount_percent"`
}

// QuoteContext is the pricing input for one booking: the base price, the
// floor inputs, and the facts each rule kind inspects.
type QuoteContext struct {
	BasePrice              float64
	ServiceMinCharge       float64
	ScheduledDate          time.Time
	Now                    time.Time
	FlexibleDates          bool
	PriorCompletedBookings int
	SiteCoord              *geo.Coordinate
	EngineerDaySites       []geo.Coordinate
}

type AppliedRule struct {
	RuleID     string          `json:"rule_id"`
	Type       models.RuleType `json:"type"`
	Multiplier float64         `json:"multiplier"`
	PriceAfter float64         `json:"price_after"`
}

type QuoteResult struct {
	Price        float64       `json:"price"`
	BasePrice    float64       `json:"base_price"`
	Applied      []AppliedRule `json:"applied"`
	SkippedRules []string      `json:"skipped_rules,omitempty"`
	Clamped      bool          `json:"clamped"`
	Floor        float64       `json:"floor"`
}

// Quoter evaluates enabled pricing rules in ascending priority order. Each
// rule multiplies the running price; the result is clamped to the higher of
// the service minimum charge and the global margin floor. A malformed rule
// payload skips that rule with a warning and the quote proceeds.
type Quoter struct {
	MarginFloor float64
	Logger      zerolog.Logger
}

func (q *Quoter) Quote(rules []models.PricingRule, ctx QuoteContext) QuoteResult {
	result := QuoteResult{
		Price:     ctx.BasePrice,
		BasePrice: ctx.BasePrice,
	}

	enabled := make([]models.PricingRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	for _, rule := range enabled {
		multiplier, err := ruleMultiplier(rule, ctx)
		if err != nil {
			q.Logger.Warn().Err(err).Str("rule_id", rule.ID).Str("type", string(rule.Type)).Msg("pricing rule skipped")
			result.SkippedRules = append(result.SkippedRules, rule.ID)
			continue
		}
		if multiplier == 1 {
			continue
		}
		result.Price *= multiplier
		result.Applied = append(result.Applied, AppliedRule{
			RuleID:     rule.ID,
			Type:       rule.Type,
			Multiplier: multiplier,
			PriceAfter: result.Price,
		})
	}

	result.Floor = ctx.ServiceMinCharge
	if q.MarginFloor > result.Floor {
		result.Floor = q.MarginFloor
	}
	if result.Price < result.Floor {
		result.Price = result.Floor
		result.Clamped = true
	}
	return result
}

// ruleMultiplier decodes the rule's typed payload and returns the price
// multiplier, or 1 when the rule does not apply.
func ruleMultiplier(rule models.PricingRule, ctx QuoteContext) (float64, error) {
	switch rule.Type {
	case models.RuleCluster:
		var cfg ClusterConfig
		if err := decodeRuleConfig(rule, &cfg); err != nil {
			return 1, err
		}
		if cfg.RadiusKm <= 0 || cfg.MinJobs <= 0 {
			return 1, &RuleConfigError{RuleID: rule.ID, Type: rule.Type, Err: fmt.Errorf("radius_km and min_jobs must be positive")}
		}
		if ctx.SiteCoord == nil {
			return 1, nil
		}
		nearby := 0
		for _, s := range ctx.EngineerDaySites {
			if geo.HaversineKm(*ctx.SiteCoord, s) <= cfg.RadiusKm {
				nearby++
			}
		}
		if nearby >= cfg.MinJobs {
			return 1 - cfg.DiscountPercent/100, nil
		}
		return 1, nil

	case models.RuleUrgency:
		var cfg UrgencyConfig
		if err := decodeRuleConfig(rule, &cfg); err != nil {
			return 1, err
		}
		if cfg.DaysThreshold < 0 {
			return 1, &RuleConfigError{RuleID: rule.ID, Type: rule.Type, Err: fmt.Errorf("days_threshold must be non-negative")}
		}
		days := daysUntil(ctx.Now, ctx.ScheduledDate)
		if days < 0 || days > cfg.DaysThreshold {
			return 1, nil
		}
		premium := cfg.PremiumPercent
		switch {
		case days == 0:
			// full premium for same-day work
		case days == 1:
			premium /= 2
		default:
			premium /= 4
		}
		return 1 + premium/100, nil

	case models.RuleOffPeak:
		var cfg OffPeakConfig
		if err := decodeRuleConfig(rule, &cfg); err != nil {
			return 1, err
		}
		if len(cfg.Days) == 0 {
			return 1, &RuleConfigError{RuleID: rule.ID, Type: rule.Type, Err: fmt.Errorf("days must be non-empty")}
		}
		for _, d := range cfg.Days {
			if strings.EqualFold(strings.TrimSpace(d), ctx.ScheduledDate.Weekday().String()) {
				return 1 - cfg.DiscountPercent/100, nil
			}
		}
		return 1, nil

	case models.RuleFlex:
		var cfg FlexConfig
		if err := decodeRuleConfig(rule, &cfg); err != nil {
			return 1, err
		}
		if ctx.FlexibleDates {
			return 1 - cfg.DiscountPercent/100, nil
		}
		return 1, nil

	case models.RuleLoyalty:
		var cfg LoyaltyConfig
		if err := decodeRuleConfig(rule, &cfg); err != nil {
			return 1, err
		}
		if cfg.MinBookings <= 0 {
			return 1, &RuleConfigError{RuleID: rule.ID, Type: rule.Type, Err: fmt.Errorf("min_bookings must be positive")}
		}
		if ctx.PriorCompletedBookings >= cfg.MinBookings {
			return 1 - cfg.DiscountPercent/100, nil
		}
		return 1, nil

	default:
		return 1, &RuleConfigError{RuleID: rule.ID, Type: rule.Type, Err: fmt.Errorf("unknown rule type")}
	}
}

func decodeRuleConfig(rule models.PricingRule, out any) error {
	if len(rule.Config) == 0 {
		return &RuleConfigError{RuleID: rule.ID, Type: rule.Type, Err: fmt.Errorf("empty config")}
	}
	if err := json.Unmarshal(rule.Config, out); err != nil {
		return &RuleConfigError{RuleID: rule.ID, Type: rule.Type, Err: err}
	}
	return nil
}

func daysUntil(now, scheduled time.Time) int {
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	schedDay := time.Date(scheduled.Year(), scheduled.Month(), scheduled.Day(), 0, 0, 0, 0, time.UTC)
	return int(schedDay.Sub(nowDay).Hours() / 24)
}
