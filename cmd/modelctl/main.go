// Command modelctl manages the artifact version registry: it registers
// fitted artifact directories, switches the active version and rolls back.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"house-pricer/internal/common"
	"house-pricer/internal/ml"
	"house-pricer/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: modelctl [-registry path] [-dir artifacts] <command> [args]

commands:
  add <version> [path] [notes]   verify and register an artifact directory
  activate <version>             serve version on next start
  rollback                       activate the previously registered version
  list                           show registered versions
`

func main() {
	registryPath := flag.String("registry", "models/registry.db", "Path to the registry database")
	artifactsDir := flag.String("dir", common.DefaultArtifactsDir, "Artifacts root directory")
	activate := flag.Bool("activate", false, "Activate the version after add")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	registry, err := storage.Open(*registryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("registry open failed")
	}
	defer registry.Close()

	switch args[0] {
	case "add":
		err = addVersion(registry, *artifactsDir, args[1:], *activate)
	case "activate":
		if len(args) != 2 {
			err = fmt.Errorf("activate takes exactly one version")
			break
		}
		err = registry.Activate(args[1])
		if err == nil {
			log.Info().Str("version", args[1]).Msg("version activated")
		}
	case "rollback":
		var v storage.ArtifactVersion
		v, err = registry.Rollback()
		if err == nil {
			log.Info().Str("version", v.Version).Msg("rolled back")
		}
	case "list":
		err = listVersions(registry)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		registry.Close()
		log.Fatal().Err(err).Str("command", args[0]).Msg("command failed")
	}
}

// addVersion loads the artifacts exactly as the service would before
// registering them, so a broken directory never becomes activatable.
func addVersion(registry *storage.Registry, root string, args []string, activate bool) error {
	if len(args) == 0 {
		return fmt.Errorf("add needs a version")
	}
	v := storage.ArtifactVersion{Version: args[0]}
	if len(args) > 1 {
		v.Path = args[1]
	}
	if len(args) > 2 {
		v.Notes = args[2]
	}

	dir := v.Path
	if dir == "" {
		dir = v.Version
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}

	arts, err := ml.LoadArtifacts(ml.ArtifactConfig{Dir: dir, ExpectedVersion: v.Version})
	if err != nil {
		return err
	}

	if err := registry.AddVersion(v); err != nil {
		return err
	}
	log.Info().
		Str("version", v.Version).
		Str("dir", arts.Dir).
		Int("output_features", len(arts.Transformer.OutputFeatures())).
		Msg("version registered")

	if activate {
		if err := registry.Activate(v.Version); err != nil {
			return err
		}
		log.Info().Str("version", v.Version).Msg("version activated")
	}
	return nil
}

func listVersions(registry *storage.Registry) error {
	versions, err := registry.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTIVE\tVERSION\tPATH\tCREATED\tNOTES")
	for _, v := range versions {
		mark := ""
		if v.IsActive {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, v.Version, v.Path, v.CreatedAt.Format(time.RFC3339), v.Notes)
	}
	return w.Flush()
}
