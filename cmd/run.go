package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lehigh-university-libraries/scenetiler/internal/config"
	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/ledger"
	"github.com/lehigh-university-libraries/scenetiler/internal/manifest"
	"github.com/lehigh-university-libraries/scenetiler/internal/pipeline"
	"github.com/lehigh-university-libraries/scenetiler/internal/raster"
	"github.com/lehigh-university-libraries/scenetiler/internal/scene"
)

type runOptions struct {
	configPath string

	name    string
	label   string
	scratch string
	output  string
	ledger  string

	gridSize         int
	landThreshold    int
	landSensitivity  int
	cloudThreshold   int
	cloudSensitivity int
	workers          int

	clean       bool
	tempScratch bool

	full      bool
	generate  bool
	sortTiles bool
	removeAll bool

	assemble      bool
	generateTiles bool
	generateMask  bool
	removeLand    bool
	removeClouds  bool
	reject        bool
	visualize     bool
	manifest      bool
	annotate      bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run SCENE_DIR",
		Short: "Run pipeline stages over one scene",
		Long: `Runs the enabled stages over the scene in SCENE_DIR.

Stages run in a fixed order: assemble, generate-tiles, generate-mask, reject
(with remove-land/remove-clouds), visualize, manifest, annotate. Stages that are
not enabled are skipped. Intermediate rasters live in a per-scene scratch
directory that is reused between runs unless --clean is given.`,
		Example: `  # Run every stage from scratch
  scenetiler run --full input/20QPD

  # Re-sort existing tiles with a stricter cloud threshold
  scenetiler run --sort-tiles --manifest --cloud-threshold 40 input/20QPD

  # Label accepted tiles for a before/after comparison
  scenetiler run --annotate --label Before --name 20QPD input/foo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd.Flags(), opts, args[0])
			if err != nil {
				return err
			}
			return executeRun(cmd.Context(), cmd, cfg)
		},
	}

	bindRunFlags(cmd.Flags(), &opts)

	return cmd
}

func bindRunFlags(f *pflag.FlagSet, opts *runOptions) {
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")

	f.StringVar(&opts.name, "name", "", "Scene name (default: scene directory name)")
	f.StringVar(&opts.label, "label", config.DefaultLabel, "Label drawn on annotated tiles")
	f.StringVar(&opts.scratch, "scratch", config.DefaultScratchRoot, "Scratch root directory")
	f.StringVar(&opts.output, "output", config.DefaultOutputRoot, "Output root directory")
	f.StringVar(&opts.ledger, "ledger", "", "SQLite run ledger path (default: $"+LedgerEnv+", empty disables)")

	f.IntVar(&opts.gridSize, "grid-size", config.DefaultGridSize, "Tile edge length in pixels")
	f.IntVar(&opts.landThreshold, "land-threshold", config.DefaultLandThreshold, "Minimum water percentage a tile must keep")
	f.IntVar(&opts.landSensitivity, "land-sensitivity", config.DefaultLandSensitivity, "Infrared intensity (0-255) marking a land pixel")
	f.IntVar(&opts.cloudThreshold, "cloud-threshold", config.DefaultCloudThreshold, "Maximum cloud percentage a tile may have")
	f.IntVar(&opts.cloudSensitivity, "cloud-sensitivity", config.DefaultCloudSensitivity, "Blue intensity (0-255) marking a cloud pixel")
	f.IntVar(&opts.workers, "workers", 1, "Tiles classified concurrently")

	f.BoolVar(&opts.clean, "clean", false, "Recreate the scratch directory")
	f.BoolVar(&opts.tempScratch, "temp-scratch", false, "Remove the scratch directory after the run")

	f.BoolVar(&opts.full, "full", false, "Run the full pipeline (implies --clean and --temp-scratch)")
	f.BoolVar(&opts.generate, "generate", false, "Perform all scene tile generation tasks")
	f.BoolVar(&opts.sortTiles, "sort-tiles", false, "Perform all tile sorting tasks")
	f.BoolVar(&opts.removeAll, "remove-all", false, "Reject tiles that are only land or too cloudy")

	f.BoolVar(&opts.assemble, "assemble", false, "Perform color adjustment and build the color composite")
	f.BoolVar(&opts.generateTiles, "generate-tiles", false, "Build color tiles of the scene")
	f.BoolVar(&opts.generateMask, "generate-mask", false, "Regenerate mask tiles")
	f.BoolVar(&opts.removeLand, "remove-land", false, "Reject tiles that are only land")
	f.BoolVar(&opts.removeClouds, "remove-clouds", false, "Reject tiles that are too cloudy")
	f.BoolVar(&opts.reject, "reject", false, "Sort tiles into accepted and rejected folders")
	f.BoolVar(&opts.visualize, "visualize", false, "Chart which tiles were rejected")
	f.BoolVar(&opts.manifest, "manifest", false, "Build the manifest for subject upload")
	f.BoolVar(&opts.annotate, "annotate", false, "Draw the label on accepted tiles")
}

// buildConfig layers defaults, the YAML file, the environment and explicitly
// set flags, in that order.
func buildConfig(flags *pflag.FlagSet, opts runOptions, sceneDir string) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if v := os.Getenv(LedgerEnv); v != "" {
		cfg.LedgerPath = v
	}

	cfg.SceneDir = sceneDir
	setString(flags, "name", &cfg.SceneName, opts.name)
	setString(flags, "label", &cfg.Label, opts.label)
	setString(flags, "scratch", &cfg.ScratchRoot, opts.scratch)
	setString(flags, "output", &cfg.OutputRoot, opts.output)
	setString(flags, "ledger", &cfg.LedgerPath, opts.ledger)

	setInt(flags, "grid-size", &cfg.GridSize, opts.gridSize)
	setInt(flags, "land-threshold", &cfg.LandThreshold, opts.landThreshold)
	setInt(flags, "land-sensitivity", &cfg.LandSensitivity, opts.landSensitivity)
	setInt(flags, "cloud-threshold", &cfg.CloudThreshold, opts.cloudThreshold)
	setInt(flags, "cloud-sensitivity", &cfg.CloudSensitivity, opts.cloudSensitivity)
	setInt(flags, "workers", &cfg.Workers, opts.workers)

	cfg.Rebuild = cfg.Rebuild || opts.clean
	cfg.TempScratch = cfg.TempScratch || opts.tempScratch

	s := &cfg.Stages
	s.Assemble = s.Assemble || opts.assemble
	s.Slice = s.Slice || opts.generateTiles
	s.GenerateMask = s.GenerateMask || opts.generateMask
	s.RemoveLand = s.RemoveLand || opts.removeLand
	s.RemoveClouds = s.RemoveClouds || opts.removeClouds
	s.Reject = s.Reject || opts.reject
	s.Visualize = s.Visualize || opts.visualize
	s.Manifest = s.Manifest || opts.manifest
	s.Annotate = s.Annotate || opts.annotate

	if opts.full {
		cfg.EnableFull()
	}
	if opts.generate {
		cfg.EnableGenerate()
	}
	if opts.sortTiles {
		cfg.EnableSortTiles()
	}
	if opts.removeAll {
		cfg.EnableRemoveAll()
	}

	cfg = cfg.WithSceneName(scene.FindSceneName)

	if !cfg.Stages.Any() {
		return cfg, fmt.Errorf("%w: no stages enabled; pass --full or individual stage flags", errs.ErrInvalidConfiguration)
	}
	return cfg, cfg.Validate()
}

func setString(flags *pflag.FlagSet, name string, dst *string, v string) {
	if flags.Changed(name) {
		*dst = v
	}
}

func setInt(flags *pflag.FlagSet, name string, dst *int, v int) {
	if flags.Changed(name) {
		*dst = v
	}
}

func executeRun(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	slog.Info("Starting run", "scene", cfg.SceneName, "dir", cfg.SceneDir, "grid_size", cfg.GridSize)

	runner := pipeline.NewRunner(cfg, raster.NewProcessor(), scene.NewLoader(), manifest.NewCSVWriter(), slog.Default())

	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer l.Close()
		runner.Ledger = l
	}

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scene %s: %d accepted, %d rejected, %d manifest records\n",
		cfg.SceneName, len(res.Accepted), len(res.Rejected), len(res.Records))
	fmt.Fprintf(out, "Run %s finished; output in %s\n", res.RunID, cfg.OutputDir())
	return nil
}
