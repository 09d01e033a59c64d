package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"house-pricer/internal/common"
	"house-pricer/internal/features"

	"github.com/rs/zerolog/log"
)

// VersionResolver resolves the artifact version that should be served.
// The returned directory may be relative to ArtifactConfig.Dir.
type VersionResolver interface {
	ResolveActive() (version, dir string, err error)
}

// ArtifactConfig locates the artifacts on disk.
type ArtifactConfig struct {
	Dir              string
	PreprocessorFile string
	ModelFile        string
	ExpectedVersion  string          // optional pin
	Resolver         VersionResolver // optional registry
}

// Artifacts is the loaded, read-only transform and scoring pair.
type Artifacts struct {
	Transformer Transformer
	Scorer      Scorer
	Version     string
	Dir         string
	LoadedAt    time.Time
	ModifiedAt  time.Time // newest artifact file mtime
}

// LoadArtifacts loads and cross-checks the transform and scoring artifacts.
// Every failure is a STARTUP_FAILURE; callers must not serve traffic
// without a successful load.
func LoadArtifacts(cfg ArtifactConfig) (*Artifacts, error) {
	dir := cfg.Dir
	expected := cfg.ExpectedVersion

	if cfg.Resolver != nil {
		version, vdir, err := cfg.Resolver.ResolveActive()
		if err != nil {
			return nil, common.StartupFailure("resolve_version", err)
		}
		if !filepath.IsAbs(vdir) {
			vdir = filepath.Join(cfg.Dir, vdir)
		}
		if expected != "" && expected != version {
			return nil, common.StartupFailure("resolve_version",
				fmt.Errorf("registry active version %s does not match pinned version %s", version, expected))
		}
		dir, expected = vdir, version
	}

	prePath := filepath.Join(dir, orDefault(cfg.PreprocessorFile, common.DefaultPreprocessorFile))
	modelPath := filepath.Join(dir, orDefault(cfg.ModelFile, common.DefaultModelFile))

	pre := &Preprocessor{}
	preMod, err := decodeArtifact(prePath, pre)
	if err != nil {
		return nil, common.StartupFailure("load_preprocessor", err)
	}
	if err := pre.Init(); err != nil {
		return nil, common.StartupFailure("load_preprocessor", fmt.Errorf("%s: %w", prePath, err))
	}

	model := &LinearModel{}
	modelMod, err := decodeArtifact(modelPath, model)
	if err != nil {
		return nil, common.StartupFailure("load_model", err)
	}
	if err := model.Init(); err != nil {
		return nil, common.StartupFailure("load_model", fmt.Errorf("%s: %w", modelPath, err))
	}

	if err := checkCompatibility(pre, model, expected); err != nil {
		return nil, common.StartupFailure("version_check", err)
	}

	modified := preMod
	if modelMod.After(modified) {
		modified = modelMod
	}

	log.Info().
		Str("dir", dir).
		Str("version", model.Version()).
		Int("input_features", len(pre.InputFeatures())).
		Int("vector_size", len(pre.OutputFeatures())).
		Time("trained_at", model.TrainedAt).
		Msg("artifacts loaded")

	return &Artifacts{
		Transformer: pre,
		Scorer:      model,
		Version:     model.Version(),
		Dir:         dir,
		LoadedAt:    time.Now(),
		ModifiedAt:  modified,
	}, nil
}

// checkCompatibility enforces the contract between the two artifacts and
// the feature order owned by the features package.
func checkCompatibility(pre *Preprocessor, model *LinearModel, expected string) error {
	if pre.Format != ArtifactFormat {
		return fmt.Errorf("preprocessor format %q, want %q", pre.Format, ArtifactFormat)
	}
	if model.Format != ArtifactFormat {
		return fmt.Errorf("model format %q, want %q", model.Format, ArtifactFormat)
	}
	if pre.Version() == "" || model.Version() == "" {
		return fmt.Errorf("artifacts must declare a version")
	}
	if pre.Version() != model.Version() {
		return fmt.Errorf("preprocessor version %s does not match model version %s", pre.Version(), model.Version())
	}
	if expected != "" && model.Version() != expected {
		return fmt.Errorf("artifact version %s, want %s", model.Version(), expected)
	}
	if !sameNames(pre.InputFeatures(), features.Order) {
		return fmt.Errorf("preprocessor inputs %v do not match feature order %v", pre.InputFeatures(), features.Order)
	}
	if !sameNames(pre.OutputFeatures(), model.FeatureNames()) {
		return fmt.Errorf("model features %v do not match preprocessor outputs %v", model.FeatureNames(), pre.OutputFeatures())
	}
	return nil
}

// decodeArtifact decodes the JSON artifact at path into v and returns the
// file's modification time.
func decodeArtifact(path string, v interface{}) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("artifact %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return time.Time{}, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return info.ModTime(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
