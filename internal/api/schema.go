package api

import (
	"encoding/json"
	"fmt"

	"house-pricer/internal/common"
	"house-pricer/internal/features"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError reports a request that does not match the request schema.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("request validation failed: %v", e.Details)
}

// Validator checks raw request documents against the prediction request
// schema before they are decoded.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the request schema. When requirePricePerSqft is set
// price_per_sqft becomes a required field.
func NewValidator(requirePricePerSqft bool) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(requestSchema(requirePricePerSqft)))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Decode validates raw and decodes it into a request.
func (v *Validator) Decode(raw []byte) (features.Request, error) {
	var req features.Request

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return req, &ValidationError{Details: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return req, &ValidationError{Details: errs}
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		return req, &ValidationError{Details: []string{err.Error()}}
	}
	return req, nil
}

func requestSchema(requirePricePerSqft bool) map[string]interface{} {
	required := []interface{}{
		features.FeatureSqft, features.FeatureBedrooms, features.FeatureBathrooms,
		features.FeatureLocation, features.FeatureYearBuilt, features.FeatureCondition,
	}
	if requirePricePerSqft {
		required = append(required, features.FeaturePricePerSqft)
	}

	return map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": required,
		"properties": map[string]interface{}{
			features.FeatureSqft: map[string]interface{}{
				"type":             "number",
				"exclusiveMinimum": common.MinSqft,
				"exclusiveMaximum": common.MaxSqft,
			},
			features.FeatureBedrooms: map[string]interface{}{
				"type":    "integer",
				"minimum": common.MinBedrooms,
				"maximum": common.MaxBedrooms,
			},
			features.FeatureBathrooms: map[string]interface{}{
				"type":             "number",
				"exclusiveMinimum": common.MinBathrooms,
				"maximum":          common.MaxBathrooms,
			},
			features.FeatureLocation: map[string]interface{}{
				"type": "string",
				"enum": toInterfaces(common.Locations),
			},
			features.FeatureYearBuilt: map[string]interface{}{
				"type":    "integer",
				"minimum": common.MinYearBuilt,
				"maximum": common.MaxYearBuilt,
			},
			features.FeatureCondition: map[string]interface{}{
				"type": "string",
				"enum": toInterfaces(common.Conditions),
			},
			features.FeaturePricePerSqft: map[string]interface{}{
				"type":             "number",
				"exclusiveMinimum": common.MinPricePerSqft,
				"exclusiveMaximum": common.MaxPricePerSqft,
			},
		},
	}
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
