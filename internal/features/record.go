// Package features turns validated house-price requests into the ordered
// feature record consumed by the prediction pipeline. It owns the engineered
// features (house age, bedroom/bathroom ratio) and the price-per-sqft
// default policy used when a caller does not supply one.
package features

// Feature names, in the order the scoring artifacts expect them.
const (
	FeatureSqft         = "sqft"
	FeatureBedrooms     = "bedrooms"
	FeatureBathrooms    = "bathrooms"
	FeatureLocation     = "location"
	FeatureYearBuilt    = "year_built"
	FeatureCondition    = "condition"
	FeatureHouseAge     = "house_age"
	FeatureBedBathRatio = "bed_bath_ratio"
	FeaturePricePerSqft = "price_per_sqft"
)

// Order is the fixed feature order shared with the transform artifact.
// Artifacts declaring a different input order are rejected at load time.
var Order = []string{
	FeatureSqft,
	FeatureBedrooms,
	FeatureBathrooms,
	FeatureLocation,
	FeatureYearBuilt,
	FeatureCondition,
	FeatureHouseAge,
	FeatureBedBathRatio,
	FeaturePricePerSqft,
}

// PricePerSqftSource records where a record's price_per_sqft came from.
type PricePerSqftSource string

const (
	SourceClient    PricePerSqftSource = "client"
	SourceEstimated PricePerSqftSource = "estimated"
)

// Request holds the raw attributes of a property. Range and enum checks are
// done by the transport before a Request reaches the Deriver.
type Request struct {
	Sqft         float64  `json:"sqft"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    float64  `json:"bathrooms"`
	Location     string   `json:"location"`
	YearBuilt    int      `json:"year_built"`
	Condition    string   `json:"condition"`
	PricePerSqft *float64 `json:"price_per_sqft,omitempty"`
}

// Record is the derived feature set for one request. It is built by the
// Deriver and never mutated afterwards.
type Record struct {
	sqft         float64
	bedrooms     int
	bathrooms    float64
	location     string
	yearBuilt    int
	condition    string
	houseAge     int
	bedBathRatio float64
	pricePerSqft float64
	source       PricePerSqftSource
}

// Numeric returns the value of a numeric feature.
func (r Record) Numeric(name string) (float64, bool) {
	switch name {
	case FeatureSqft:
		return r.sqft, true
	case FeatureBedrooms:
		return float64(r.bedrooms), true
	case FeatureBathrooms:
		return r.bathrooms, true
	case FeatureYearBuilt:
		return float64(r.yearBuilt), true
	case FeatureHouseAge:
		return float64(r.houseAge), true
	case FeatureBedBathRatio:
		return r.bedBathRatio, true
	case FeaturePricePerSqft:
		return r.pricePerSqft, true
	}
	return 0, false
}

// Categorical returns the value of a categorical feature.
func (r Record) Categorical(name string) (string, bool) {
	switch name {
	case FeatureLocation:
		return r.location, true
	case FeatureCondition:
		return r.condition, true
	}
	return "", false
}

func (r Record) HouseAge() int                          { return r.houseAge }
func (r Record) BedBathRatio() float64                  { return r.bedBathRatio }
func (r Record) PricePerSqft() float64                  { return r.pricePerSqft }
func (r Record) PricePerSqftSource() PricePerSqftSource { return r.source }

// Values returns the record as a name->value map in no particular order,
// categorical values as strings. Used for debug logging.
func (r Record) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(Order))
	for _, name := range Order {
		if v, ok := r.Numeric(name); ok {
			out[name] = v
			continue
		}
		if v, ok := r.Categorical(name); ok {
			out[name] = v
		}
	}
	return out
}
