package features

import (
	"math"
	"time"

	"house-pricer/internal/common"
)

// PricingTables holds the business-policy constants used to estimate
// price_per_sqft when the caller omits it.
type PricingTables struct {
	BaseRates            map[string]float64 `yaml:"baseRates"`
	ConditionMultipliers map[string]float64 `yaml:"conditionMultipliers"`
	DefaultBaseRate      float64            `yaml:"defaultBaseRate"`
}

// DefaultPricingTables returns the shipped base rates (per location) and
// condition multipliers.
func DefaultPricingTables() PricingTables {
	return PricingTables{
		BaseRates: map[string]float64{
			common.LocationRural:      180,
			common.LocationSuburb:     320,
			common.LocationUrban:      280,
			common.LocationDowntown:   350,
			common.LocationWaterfront: 450,
			common.LocationMountain:   250,
		},
		ConditionMultipliers: map[string]float64{
			common.ConditionPoor:      0.7,
			common.ConditionFair:      0.85,
			common.ConditionGood:      1.0,
			common.ConditionExcellent: 1.3,
		},
		DefaultBaseRate: common.DefaultBaseRate,
	}
}

// EstimatePricePerSqft returns base_rate[location] * multiplier[condition],
// falling back to DefaultBaseRate and 1.0 for unknown keys.
func (t PricingTables) EstimatePricePerSqft(location, condition string) float64 {
	base, ok := t.BaseRates[location]
	if !ok {
		base = t.DefaultBaseRate
		if base == 0 {
			base = common.DefaultBaseRate
		}
	}
	mult, ok := t.ConditionMultipliers[condition]
	if !ok {
		mult = common.DefaultMultiplier
	}
	return base * mult
}

// Deriver computes feature records. It is safe for concurrent use.
type Deriver struct {
	tables PricingTables
	now    func() time.Time
}

// NewDeriver creates a deriver using the given tables and the wall clock.
func NewDeriver(tables PricingTables) *Deriver {
	return NewDeriverWithClock(tables, time.Now)
}

// NewDeriverWithClock creates a deriver with an explicit clock, used to pin
// the current year in tests.
func NewDeriverWithClock(tables PricingTables, now func() time.Time) *Deriver {
	if now == nil {
		now = time.Now
	}
	return &Deriver{tables: tables, now: now}
}

// Tables returns the pricing tables in use.
func (d *Deriver) Tables() PricingTables {
	return d.tables
}

// Derive builds the feature record for req. Degenerate derived values fail
// with an INVALID_INPUT error naming the feature instead of producing
// negative ages or infinite ratios.
func (d *Deriver) Derive(req Request) (Record, error) {
	year := d.now().Year()
	houseAge := year - req.YearBuilt
	if houseAge < 0 {
		return Record{}, common.InvalidInput(FeatureHouseAge,
			"year_built %d is after the current year %d", req.YearBuilt, year)
	}

	if math.IsNaN(req.Bathrooms) || req.Bathrooms <= 0 {
		return Record{}, common.InvalidInput(FeatureBedBathRatio,
			"bathrooms must be greater than zero, got %v", req.Bathrooms)
	}
	ratio := float64(req.Bedrooms) / req.Bathrooms

	pricePerSqft, source := 0.0, SourceEstimated
	if req.PricePerSqft != nil {
		v := *req.PricePerSqft
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return Record{}, common.InvalidInput(FeaturePricePerSqft,
				"price_per_sqft must be a positive number, got %v", v)
		}
		pricePerSqft, source = v, SourceClient
	} else {
		pricePerSqft = d.tables.EstimatePricePerSqft(req.Location, req.Condition)
	}

	return Record{
		sqft:         req.Sqft,
		bedrooms:     req.Bedrooms,
		bathrooms:    req.Bathrooms,
		location:     req.Location,
		yearBuilt:    req.YearBuilt,
		condition:    req.Condition,
		houseAge:     houseAge,
		bedBathRatio: ratio,
		pricePerSqft: pricePerSqft,
		source:       source,
	}, nil
}
