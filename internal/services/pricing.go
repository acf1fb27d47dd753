package services

import (
	"log/slog"
	"math"
	"time"

	"booking-engine/internal/status"
	"booking-engine/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricingEngine computes discounts and totals from per-kind rate tables. Apart
// from the clock it has no state; identical inputs give identical output.
type PricingEngine struct {
	tables map[models.Kind]models.RateTable
	now    func() time.Time
	log    *slog.Logger
}

func NewPricingEngine(tables map[models.Kind]models.RateTable, logger *slog.Logger) *PricingEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PricingEngine{tables: tables, now: time.Now, log: logger}
}

// DaysUntil returns the number of started days between now and eventDate.
func (p *PricingEngine) DaysUntil(eventDate time.Time) int {
	return int(math.Ceil(eventDate.Sub(p.now()).Hours() / 24))
}

// EarlyBirdDiscount picks the highest percent among the rules whose window
// the event date satisfies. A zero eventDate never earns a discount.
func (p *PricingEngine) EarlyBirdDiscount(eventDate time.Time, rules []models.DiscountRule) models.EarlyBirdResult {
	res := models.EarlyBirdResult{Percent: decimal.Zero}
	if eventDate.IsZero() {
		return res
	}
	res.DaysUntil = p.DaysUntil(eventDate)

	for i := range rules {
		rule := rules[i]
		if rule.Kind != models.RuleEarlyBird || rule.Validate() != nil {
			p.log.Warn("Skipping invalid early-bird rule", "rule", rule)
			continue
		}
		if res.DaysUntil < rule.DaysBeforeEvent {
			continue
		}
		if res.Rule == nil || rule.DiscountPercent.GreaterThan(res.Percent) {
			res.Percent = rule.DiscountPercent
			res.Rule = &rule
		}
	}
	return res
}

// BulkDiscount picks the highest percent among the rules whose minimum the
// quantity reaches.
func (p *PricingEngine) BulkDiscount(quantity int, rules []models.DiscountRule) models.BulkResult {
	res := models.BulkResult{Percent: decimal.Zero}
	for i := range rules {
		rule := rules[i]
		if rule.Kind != models.RuleBulk || rule.Validate() != nil {
			p.log.Warn("Skipping invalid bulk rule", "rule", rule)
			continue
		}
		if quantity < rule.MinUnits {
			continue
		}
		if res.Rule == nil || rule.DiscountPercent.GreaterThan(res.Percent) {
			res.Percent = rule.DiscountPercent
			res.Rule = &rule
		}
	}
	return res
}

// BestDiscount prefers early-bird whenever it is at least as large as bulk.
func BestDiscount(earlyBirdPercent, bulkPercent decimal.Decimal) models.BestDiscount {
	switch {
	case earlyBirdPercent.IsPositive() && earlyBirdPercent.GreaterThanOrEqual(bulkPercent):
		return models.BestDiscount{Source: models.DiscountEarlyBird, Percent: earlyBirdPercent}
	case bulkPercent.IsPositive():
		return models.BestDiscount{Source: models.DiscountBulk, Percent: bulkPercent}
	default:
		return models.BestDiscount{Source: models.DiscountNone, Percent: decimal.Zero}
	}
}

// PriceBreakdown rounds once per stage: discount, then tax.
func (p *PricingEngine) PriceBreakdown(in models.PriceInput) (models.PriceBreakdown, error) {
	if in.BasePrice.IsNegative() {
		return models.PriceBreakdown{}, status.Validation("base price must not be negative")
	}
	if in.Quantity < 0 {
		return models.PriceBreakdown{}, status.Validation("quantity must not be negative")
	}
	if in.TaxRate.IsNegative() {
		return models.PriceBreakdown{}, status.Validation("tax rate must not be negative")
	}

	earlyBird := p.EarlyBirdDiscount(in.EventDate, in.EarlyBirdRules)
	bulk := p.BulkDiscount(in.Quantity, in.BulkRules)
	best := BestDiscount(earlyBird.Percent, bulk.Percent)

	baseAmount := in.BasePrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	discountAmount := baseAmount.Mul(best.Percent).Div(hundred).Round(0)
	discountedAmount := baseAmount.Sub(discountAmount)
	taxAmount := discountedAmount.Mul(in.TaxRate).Div(hundred).Round(0)

	return models.PriceBreakdown{
		BaseAmount:       baseAmount,
		Discount:         best,
		DiscountAmount:   discountAmount,
		DiscountedAmount: discountedAmount,
		TaxRate:          in.TaxRate,
		TaxAmount:        taxAmount,
		Total:            discountedAmount.Add(taxAmount),
		EarlyBird:        earlyBird,
		Bulk:             bulk,
	}, nil
}

// NextBulkMilestone returns the nearest bulk rule not yet reached, or nil.
func (p *PricingEngine) NextBulkMilestone(currentQuantity int, rules []models.DiscountRule) *models.BulkMilestone {
	var next *models.BulkMilestone
	for _, rule := range rules {
		if rule.Kind != models.RuleBulk || rule.Validate() != nil {
			continue
		}
		if rule.MinUnits <= currentQuantity {
			continue
		}
		if next == nil || rule.MinUnits < next.MinUnits {
			next = &models.BulkMilestone{
				MinUnits:        rule.MinUnits,
				QuantityNeeded:  rule.MinUnits - currentQuantity,
				DiscountPercent: rule.DiscountPercent,
			}
		}
	}
	return next
}

// Quote prices quantity units of kind using the configured rate table.
func (p *PricingEngine) Quote(kind models.Kind, quantity int, eventDate time.Time) (*models.Quote, error) {
	table, ok := p.tables[kind]
	if !ok {
		return nil, status.NotFound("no rate table for kind %s", kind)
	}

	breakdown, err := p.PriceBreakdown(models.PriceInput{
		BasePrice:      table.BasePrice,
		Quantity:       quantity,
		EventDate:      eventDate,
		EarlyBirdRules: table.EarlyBirdRules,
		BulkRules:      table.BulkRules,
		TaxRate:        table.TaxRate,
	})
	if err != nil {
		return nil, err
	}

	return &models.Quote{
		Kind:          kind,
		Quantity:      quantity,
		QuantityField: table.QuantityField,
		Breakdown:     breakdown,
		NextMilestone: p.NextBulkMilestone(quantity, table.BulkRules),
	}, nil
}
