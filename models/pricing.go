package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type RuleKind string

const (
	RuleEarlyBird RuleKind = "early_bird"
	RuleBulk      RuleKind = "bulk"
)

// DiscountRule is either an early-bird rule (DaysBeforeEvent set) or a bulk
// rule (MinUnits set), distinguished by Kind.
type DiscountRule struct {
	Kind            RuleKind        `json:"kind"`
	DaysBeforeEvent int             `json:"days_before_event,omitempty"`
	MinUnits        int             `json:"min_units,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func EarlyBirdRule(days int, percent decimal.Decimal) DiscountRule {
	return DiscountRule{Kind: RuleEarlyBird, DaysBeforeEvent: days, DiscountPercent: percent}
}

func BulkRule(minUnits int, percent decimal.Decimal) DiscountRule {
	return DiscountRule{Kind: RuleBulk, MinUnits: minUnits, DiscountPercent: percent}
}

// Validate rejects rules with negative thresholds or a percent outside 0..100.
func (r DiscountRule) Validate() error {
	if r.DiscountPercent.IsNegative() || r.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("discount percent %s out of range", r.DiscountPercent)
	}
	switch r.Kind {
	case RuleEarlyBird:
		if r.DaysBeforeEvent < 0 {
			return fmt.Errorf("negative days before event: %d", r.DaysBeforeEvent)
		}
	case RuleBulk:
		if r.MinUnits < 0 {
			return fmt.Errorf("negative minimum units: %d", r.MinUnits)
		}
	default:
		return fmt.Errorf("unknown rule kind: %q", r.Kind)
	}
	return nil
}

// RateTable is the pricing configuration of one booking kind.
type RateTable struct {
	Kind           Kind            `json:"kind"`
	BasePrice      decimal.Decimal `json:"base_price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	QuantityField  string          `json:"quantity_field"`
	EarlyBirdRules []DiscountRule  `json:"early_bird_rules"`
	BulkRules      []DiscountRule  `json:"bulk_rules"`
}

type EarlyBirdResult struct {
	Percent   decimal.Decimal `json:"percent"`
	Rule      *DiscountRule   `json:"rule"`
	DaysUntil int             `json:"days_until"`
}

type BulkResult struct {
	Percent decimal.Decimal `json:"percent"`
	Rule    *DiscountRule   `json:"rule"`
}

type DiscountSource string

const (
	DiscountNone      DiscountSource = "none"
	DiscountEarlyBird DiscountSource = "early_bird"
	DiscountBulk      DiscountSource = "bulk"
)

type BestDiscount struct {
	Source  DiscountSource  `json:"source"`
	Percent decimal.Decimal `json:"percent"`
}

type PriceInput struct {
	BasePrice      decimal.Decimal
	Quantity       int
	EventDate      time.Time
	EarlyBirdRules []DiscountRule
	BulkRules      []DiscountRule
	TaxRate        decimal.Decimal
}

type PriceBreakdown struct {
	BaseAmount       decimal.Decimal `json:"base_amount"`
	Discount         BestDiscount    `json:"discount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	DiscountedAmount decimal.Decimal `json:"discounted_amount"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Total            decimal.Decimal `json:"total"`
	EarlyBird        EarlyBirdResult `json:"early_bird"`
	Bulk             BulkResult      `json:"bulk"`
}

type BulkMilestone struct {
	MinUnits        int             `json:"min_units"`
	QuantityNeeded  int             `json:"quantity_needed"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type Quote struct {
	Kind          Kind           `json:"kind"`
	Quantity      int            `json:"quantity"`
	QuantityField string         `json:"quantity_field"`
	Breakdown     PriceBreakdown `json:"breakdown"`
	NextMilestone *BulkMilestone `json:"next_milestone,omitempty"`
}
