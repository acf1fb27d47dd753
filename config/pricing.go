package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"booking-engine/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type pricingFile struct {
	Kinds map[string]rateTableYAML `yaml:"kinds"`
}

type rateTableYAML struct {
	BasePrice     string           `yaml:"base_price"`
	TaxRate       string           `yaml:"tax_rate"`
	QuantityField string           `yaml:"quantity_field"`
	EarlyBird     []map[string]any `yaml:"early_bird"`
	Bulk          []map[string]any `yaml:"bulk"`
}

// LoadPricing reads the per-kind rate tables. Environment variables in the
// file are expanded before parsing.
func LoadPricing(path string) (map[models.Kind]models.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing rules: %w", err)
	}
	return ParsePricing([]byte(os.ExpandEnv(string(data))))
}

// ParsePricing decodes rate tables. Discount entries are loose maps: an entry
// with a missing, non-numeric or negative field is skipped with a warning
// instead of failing the whole file.
func ParsePricing(data []byte) (map[models.Kind]models.RateTable, error) {
	var file pricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pricing rules: %w", err)
	}

	tables := make(map[models.Kind]models.RateTable, len(file.Kinds))
	for name, raw := range file.Kinds {
		kind, err := models.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("pricing rules: %w", err)
		}

		table := models.RateTable{Kind: kind, QuantityField: raw.QuantityField}
		if table.QuantityField == "" {
			table.QuantityField = "minUnits"
		}
		if table.BasePrice, err = decimalOrZero(raw.BasePrice); err != nil {
			return nil, fmt.Errorf("pricing rules: %s base_price: %w", kind, err)
		}
		if table.TaxRate, err = decimalOrZero(raw.TaxRate); err != nil {
			return nil, fmt.Errorf("pricing rules: %s tax_rate: %w", kind, err)
		}
		if table.BasePrice.IsNegative() || table.TaxRate.IsNegative() {
			return nil, fmt.Errorf("pricing rules: %s has a negative base price or tax rate", kind)
		}

		for i, entry := range raw.EarlyBird {
			rule, err := earlyBirdFromMap(entry)
			if err != nil {
				slog.Warn("Skipping early-bird rule", "kind", kind, "index", i, "error", err)
				continue
			}
			table.EarlyBirdRules = append(table.EarlyBirdRules, rule)
		}
		for i, entry := range raw.Bulk {
			rule, err := bulkFromMap(entry, table.QuantityField)
			if err != nil {
				slog.Warn("Skipping bulk rule", "kind", kind, "index", i, "error", err)
				continue
			}
			table.BulkRules = append(table.BulkRules, rule)
		}

		tables[kind] = table
	}
	return tables, nil
}

func earlyBirdFromMap(entry map[string]any) (models.DiscountRule, error) {
	days, err := intField(entry, "days_before_event")
	if err != nil {
		return models.DiscountRule{}, err
	}
	percent, err := decimalField(entry, "discount_percent")
	if err != nil {
		return models.DiscountRule{}, err
	}
	rule := models.EarlyBirdRule(days, percent)
	return rule, rule.Validate()
}

func bulkFromMap(entry map[string]any, quantityField string) (models.DiscountRule, error) {
	minUnits, err := intField(entry, quantityField)
	if err != nil {
		return models.DiscountRule{}, err
	}
	percent, err := decimalField(entry, "discount_percent")
	if err != nil {
		return models.DiscountRule{}, err
	}
	rule := models.BulkRule(minUnits, percent)
	return rule, rule.Validate()
}

func intField(entry map[string]any, key string) (int, error) {
	switch v := entry[key].(type) {
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s: %v is not a whole number", key, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", key, v)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%s is missing", key)
	default:
		return 0, fmt.Errorf("%s: unsupported value %v", key, v)
	}
}

func decimalField(entry map[string]any, key string) (decimal.Decimal, error) {
	switch v := entry[key].(type) {
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %q is not a number", key, v)
		}
		return d, nil
	case nil:
		return decimal.Zero, fmt.Errorf("%s is missing", key)
	default:
		return decimal.Zero, fmt.Errorf("%s: unsupported value %v", key, v)
	}
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}
