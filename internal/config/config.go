// Package config holds the immutable run configuration. It is built once by the
// CLI and passed by value to every component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

// Default pipeline settings.
const (
	DefaultGridSize           = 350
	DefaultLandThreshold      = 10
	DefaultLandSensitivity    = 60
	DefaultCloudThreshold     = 70
	DefaultCloudSensitivity   = 200
	DefaultReflectanceCeiling = 4000
	DefaultGreenBoost         = 1.2
	DefaultLabel              = "Before"
	DefaultScratchRoot        = "scratch"
	DefaultOutputRoot         = "output"
	DefaultTileExt            = "png"
)

// Bands names the single-band rasters inside the scene directory.
type Bands struct {
	Red      string `yaml:"red"`
	Green    string `yaml:"green"`
	Blue     string `yaml:"blue"`
	Infrared string `yaml:"infrared"`
}

// Stages is the declarative set of enabled pipeline stages.
type Stages struct {
	Assemble     bool `yaml:"assemble"`
	Slice        bool `yaml:"slice"`
	GenerateMask bool `yaml:"generate_mask"`
	RemoveLand   bool `yaml:"remove_land"`
	RemoveClouds bool `yaml:"remove_clouds"`
	Reject       bool `yaml:"reject"`
	Visualize    bool `yaml:"visualize"`
	Manifest     bool `yaml:"manifest"`
	Annotate     bool `yaml:"annotate"`
}

// Any reports whether at least one stage is enabled.
func (s Stages) Any() bool {
	return s.Assemble || s.Slice || s.GenerateMask || s.RemoveLand || s.RemoveClouds ||
		s.Reject || s.Visualize || s.Manifest || s.Annotate
}

// Config is the complete configuration for one run.
type Config struct {
	SceneDir  string `yaml:"scene_dir"`
	SceneName string `yaml:"scene_name"`
	Label     string `yaml:"label"`

	ScratchRoot string `yaml:"scratch_root"`
	OutputRoot  string `yaml:"output_root"`
	LedgerPath  string `yaml:"ledger_path"`

	GridSize           int     `yaml:"grid_size"`
	LandThreshold      int     `yaml:"land_threshold"`
	LandSensitivity    int     `yaml:"land_sensitivity"`
	CloudThreshold     int     `yaml:"cloud_threshold"`
	CloudSensitivity   int     `yaml:"cloud_sensitivity"`
	ReflectanceCeiling int     `yaml:"reflectance_ceiling"`
	GreenBoost         float64 `yaml:"green_boost"`
	Workers            int     `yaml:"workers"`

	Rebuild     bool `yaml:"rebuild"`
	TempScratch bool `yaml:"temp_scratch"`

	Bands  Bands  `yaml:"bands"`
	Stages Stages `yaml:"stages"`
}

// Default returns a Config with every default applied and no stage enabled.
func Default() Config {
	return Config{
		Label:              DefaultLabel,
		ScratchRoot:        DefaultScratchRoot,
		OutputRoot:         DefaultOutputRoot,
		GridSize:           DefaultGridSize,
		LandThreshold:      DefaultLandThreshold,
		LandSensitivity:    DefaultLandSensitivity,
		CloudThreshold:     DefaultCloudThreshold,
		CloudSensitivity:   DefaultCloudSensitivity,
		ReflectanceCeiling: DefaultReflectanceCeiling,
		GreenBoost:         DefaultGreenBoost,
		Workers:            1,
		Bands: Bands{
			Red:      "B04.tif",
			Green:    "B03.tif",
			Blue:     "B02.tif",
			Infrared: "B08.tif",
		},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: failed to parse config YAML: %v", errs.ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// EnableFull turns on every stage, a scratch rebuild and temporary scratch.
func (c *Config) EnableFull() {
	c.Rebuild = true
	c.TempScratch = true
	c.Stages = Stages{
		Assemble:     true,
		Slice:        true,
		GenerateMask: true,
		RemoveLand:   true,
		RemoveClouds: true,
		Reject:       true,
		Visualize:    true,
		Manifest:     true,
		Annotate:     c.Stages.Annotate,
	}
}

// EnableGenerate turns on scene assembly and slicing.
func (c *Config) EnableGenerate() {
	c.Stages.Assemble = true
	c.Stages.Slice = true
}

// EnableSortTiles turns on mask generation, both rejection rules and routing.
func (c *Config) EnableSortTiles() {
	c.Stages.GenerateMask = true
	c.Stages.RemoveLand = true
	c.Stages.RemoveClouds = true
	c.Stages.Reject = true
}

// EnableRemoveAll turns on both rejection rules.
func (c *Config) EnableRemoveAll() {
	c.Stages.RemoveLand = true
	c.Stages.RemoveClouds = true
}

// WithSceneName fills SceneName from the scene directory when it is unset.
func (c Config) WithSceneName(find func(dir string) string) Config {
	if strings.TrimSpace(c.SceneName) == "" && c.SceneDir != "" {
		c.SceneName = find(c.SceneDir)
	}
	return c
}

// Validate checks the configuration before any stage runs.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.SceneDir) == "" {
		problems = append(problems, "scene directory is required")
	}
	if strings.TrimSpace(c.SceneName) == "" {
		problems = append(problems, "scene name is required")
	}
	if c.GridSize <= 0 {
		problems = append(problems, fmt.Sprintf("grid size must be positive, got %d", c.GridSize))
	}
	for name, v := range map[string]int{"land threshold": c.LandThreshold, "cloud threshold": c.CloudThreshold} {
		if v < 0 || v > 100 {
			problems = append(problems, fmt.Sprintf("%s must be between 0 and 100, got %d", name, v))
		}
	}
	for name, v := range map[string]int{"land sensitivity": c.LandSensitivity, "cloud sensitivity": c.CloudSensitivity} {
		if v < 0 || v > 255 {
			problems = append(problems, fmt.Sprintf("%s must be between 0 and 255, got %d", name, v))
		}
	}
	if c.ReflectanceCeiling <= 0 {
		problems = append(problems, "reflectance ceiling must be positive")
	}
	if c.GreenBoost <= 0 {
		problems = append(problems, "green boost must be positive")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if c.Stages.Annotate && strings.TrimSpace(c.Label) == "" {
		problems = append(problems, "annotation requires a label")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", errs.ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// ScratchDir is the per-scene scratch directory.
func (c Config) ScratchDir() string {
	return filepath.Join(c.ScratchRoot, c.SceneName)
}

// OutputDir is the per-scene output directory.
func (c Config) OutputDir() string {
	return filepath.Join(c.OutputRoot, c.SceneName+"_tiles")
}

// BandPath resolves a band file name inside the scene directory.
func (c Config) BandPath(name string) string {
	return filepath.Join(c.SceneDir, name)
}
