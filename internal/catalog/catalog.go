// Package catalog maps plan identifiers to price, limits and features. The
// catalog is loaded once from configuration and is deliberately forgiving:
// plan configuration is external and may lag code changes, so an unknown key
// degrades to zero values instead of failing.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// priceScale converts the configured display price to the stored integer
// value (9.900 -> 9900). Existing stored values compare against this exact
// scaling; changing it would corrupt every historical amount.
var priceScale = decimal.NewFromInt(1000)

// Definition is one configured plan tier.
type Definition struct {
	DisplayName string          `yaml:"display_name"`
	Price       decimal.Decimal `yaml:"price"` // display unit, e.g. 9.900
	Currency    string          `yaml:"currency"`
	Limits      map[string]int  `yaml:"limits"`
	Features    map[string]bool `yaml:"features"`
}

type Catalog struct {
	plans map[string]Definition
}

// New builds a catalog; keys are normalized to upper case so lookups are
// case-insensitive.
func New(defs map[string]Definition) *Catalog {
	plans := make(map[string]Definition, len(defs))
	for k, d := range defs {
		plans[normalize(k)] = d
	}
	return &Catalog{plans: plans}
}

func normalize(plan string) string { return strings.ToUpper(strings.TrimSpace(plan)) }

// Price returns the plan price scaled by 1000 into its integer form.
// Unknown plans price at 0.
func (c *Catalog) Price(plan string) int64 {
	d, ok := c.plans[normalize(plan)]
	if !ok {
		return 0
	}
	return d.Price.Mul(priceScale).IntPart()
}

// PriceDecimal returns the configured display price (zero for unknown plans).
func (c *Catalog) PriceDecimal(plan string) decimal.Decimal {
	d, ok := c.plans[normalize(plan)]
	if !ok {
		return decimal.Zero
	}
	return d.Price
}

// Currency returns the plan's configured currency code, empty when unknown.
func (c *Catalog) Currency(plan string) string {
	return c.plans[normalize(plan)].Currency
}

// Limits returns the plan's limit map; never nil.
func (c *Catalog) Limits(plan string) map[string]int {
	d, ok := c.plans[normalize(plan)]
	if !ok || d.Limits == nil {
		return map[string]int{}
	}
	return d.Limits
}

// Features returns the plan's feature map; never nil.
func (c *Catalog) Features(plan string) map[string]bool {
	d, ok := c.plans[normalize(plan)]
	if !ok || d.Features == nil {
		return map[string]bool{}
	}
	return d.Features
}

// DisplayName returns the human name, falling back to the normalized key.
func (c *Catalog) DisplayName(plan string) string {
	d, ok := c.plans[normalize(plan)]
	if !ok || d.DisplayName == "" {
		return normalize(plan)
	}
	return d.DisplayName
}

// Known reports whether the plan is configured.
func (c *Catalog) Known(plan string) bool {
	_, ok := c.plans[normalize(plan)]
	return ok
}

// Keys lists the configured plan keys (normalized form).
func (c *Catalog) Keys() []string {
	out := make([]string, 0, len(c.plans))
	for k := range c.plans {
		out = append(out, k)
	}
	return out
}
