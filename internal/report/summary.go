// Package report writes the per-run artifacts that sit next to the manifest:
// a YAML summary, a Parquet table of every classified tile, and charts of the
// verdicts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/scenetiler/internal/models"
	"github.com/lehigh-university-libraries/scenetiler/internal/stats"
)

// Thresholds records the rule settings a run was classified with.
type Thresholds struct {
	Land             int `yaml:"land"`
	LandSensitivity  int `yaml:"land_sensitivity"`
	Cloud            int `yaml:"cloud"`
	CloudSensitivity int `yaml:"cloud_sensitivity"`
}

// Summary is the content of summary.yaml.
type Summary struct {
	Scene      string         `yaml:"scene"`
	RunID      string         `yaml:"run_id,omitempty"`
	Timestamp  string         `yaml:"timestamp"`
	GridSize   int            `yaml:"grid_size"`
	Thresholds Thresholds     `yaml:"thresholds"`
	Tiles      int            `yaml:"tiles"`
	Accepted   int            `yaml:"accepted"`
	Rejected   int            `yaml:"rejected"`
	Reasons    map[string]int `yaml:"reasons"`
	Statistics stats.Summary  `yaml:"statistics"`
}

// NewSummary aggregates the classified tiles of one run.
func NewSummary(sceneName string, gridSize int, thresholds Thresholds, accepted, rejected []models.Tile) Summary {
	s := Summary{
		Scene:      sceneName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		GridSize:   gridSize,
		Thresholds: thresholds,
		Tiles:      len(accepted) + len(rejected),
		Accepted:   len(accepted),
		Rejected:   len(rejected),
		Reasons:    ReasonCounts(accepted, rejected),
	}

	all := make([]stats.Statistics, 0, s.Tiles)
	for _, t := range accepted {
		all = append(all, t.Stats)
	}
	for _, t := range rejected {
		all = append(all, t.Stats)
	}
	s.Statistics = stats.Summarize(all)
	return s
}

// ReasonCounts counts tiles per outcome reason.
func ReasonCounts(groups ...[]models.Tile) map[string]int {
	counts := make(map[string]int)
	for _, tiles := range groups {
		for _, t := range tiles {
			counts[t.Outcome.Reason]++
		}
	}
	return counts
}

// SortedReasons returns the reasons of counts in lexical order.
func SortedReasons(counts map[string]int) []string {
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return reasons
}

// SaveSummary writes s to path as YAML.
func SaveSummary(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// LoadSummary reads a summary written by SaveSummary.
func LoadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read summary: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse summary YAML: %w", err)
	}
	return s, nil
}
