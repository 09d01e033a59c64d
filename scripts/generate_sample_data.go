package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"house-pricer/internal/features"
	"house-pricer/internal/loadgen"
	"house-pricer/internal/ml"
)

func main() {
	var (
		outPath = flag.String("out", "data/sales.csv", "Output CSV path")
		count   = flag.Int("n", 500, "Number of sales to generate")
		noise   = flag.Float64("noise", 0.08, "Relative price noise (standard deviation)")
		omitPPS = flag.Float64("omit-pps", 0.3, "Share of rows without price_per_sqft")
		seed    = flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	fmt.Printf("Generating %d sample sales...\n", *count)
	fmt.Printf("  Noise: %.2f\n", *noise)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Output: %s\n", *outPath)

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	file, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer file.Close()

	if err := generateSales(file, *count, *noise, *omitPPS, rand.New(rand.NewSource(*seed))); err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}

	fmt.Printf("✓ Generated %d sales\n", *count)
}

// generateSales writes random valid houses priced at sqft times the
// market rate per sqft, with multiplicative noise.
func generateSales(f *os.File, count int, noise, omitPPS float64, rng *rand.Rand) error {
	deriver := features.NewDeriver(features.DefaultPricingTables())

	w := csv.NewWriter(f)
	header := []string{
		features.FeatureSqft, features.FeatureBedrooms, features.FeatureBathrooms, features.FeatureLocation,
		features.FeatureYearBuilt, features.FeatureCondition, features.FeaturePricePerSqft, "price",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		req := loadgen.RandomRequest(rng, omitPPS)
		rec, err := deriver.Derive(req)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}

		price := ml.RoundCurrency(req.Sqft * rec.PricePerSqft() * (1 + noise*rng.NormFloat64()))
		if price <= 0 {
			price = ml.RoundCurrency(req.Sqft * rec.PricePerSqft())
		}

		pps := ""
		if req.PricePerSqft != nil {
			pps = strconv.FormatFloat(*req.PricePerSqft, 'f', -1, 64)
		}
		row := []string{
			strconv.FormatFloat(req.Sqft, 'f', -1, 64),
			strconv.Itoa(req.Bedrooms),
			strconv.FormatFloat(req.Bathrooms, 'f', -1, 64),
			req.Location,
			strconv.Itoa(req.YearBuilt),
			req.Condition,
			pps,
			strconv.FormatFloat(price, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
