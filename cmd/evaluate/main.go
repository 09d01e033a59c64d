package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"house-pricer/internal/cfg"
	"house-pricer/internal/evaluate"
	"house-pricer/internal/features"
	"house-pricer/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath     = flag.String("data", "data/sales.csv", "Labelled dataset (.csv or .json)")
		artifactsDir = flag.String("artifacts", "", "Artifacts directory (overrides config)")
		outputPath   = flag.String("output", "", "Output directory for reports")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *artifactsDir != "" {
		config.ArtifactsDir = *artifactsDir
	}
	if *outputPath == "" {
		*outputPath = filepath.Join("reports", "evaluation_"+time.Now().Format("20060102_150405"))
	}

	fmt.Println("=== Evaluation Configuration ===")
	fmt.Printf("Dataset: %s\n", *dataPath)
	fmt.Printf("Artifacts: %s\n", config.ArtifactsDir)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Println("================================")

	samples, err := evaluate.LoadFile(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	arts, err := ml.LoadArtifacts(ml.ArtifactConfig{
		Dir:              config.ArtifactsDir,
		PreprocessorFile: config.PreprocessorFile,
		ModelFile:        config.ModelFile,
		ExpectedVersion:  config.ModelVersion,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load artifacts")
	}

	// Evaluation always isolates items so one bad row does not hide the rest.
	pipeline, err := ml.NewPipeline(features.NewDeriver(config.Pricing), arts, ml.PipelineOptions{
		BatchWorkers: config.BatchWorkers,
		MaxBatchSize: config.MaxBatchSize,
		BatchPolicy:  ml.BatchIsolate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	results, err := evaluate.NewEngine(pipeline, config.MaxBatchSize).Run(context.Background(), samples)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	reporter := evaluate.NewReporter(results, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate report")
	}
	reporter.PrintSummary()
}
