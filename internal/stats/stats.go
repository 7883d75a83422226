// Package stats turns raster coverage readings into the fixed-shape statistics
// tuple consumed by the rule engine.
package stats

import (
	"fmt"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

// Arity is the number of signals in a Statistics tuple, in Values order.
const Arity = 2

// Statistics holds the per-tile signals, both as percentages in [0, 100].
type Statistics struct {
	Land  float64
	Cloud float64
}

// Values returns the positional tuple (land, cloud).
func (s Statistics) Values() []float64 {
	return []float64{s.Land, s.Cloud}
}

// FromValues builds Statistics from a positional tuple, checking its arity.
func FromValues(values []float64) (Statistics, error) {
	if len(values) != Arity {
		return Statistics{}, fmt.Errorf("%w: expected %d statistics, got %d", errs.ErrTileUnreadable, Arity, len(values))
	}
	return Statistics{Land: values[0], Cloud: values[1]}, nil
}

// CoverageReader reports per-channel coverage percentages for a mask tile.
type CoverageReader interface {
	Coverage(path string) ([]float64, error)
}

// Adapter wraps a CoverageReader so callers get typed Statistics.
type Adapter struct {
	Source CoverageReader
}

// NewAdapter creates a statistics adapter over the given coverage source.
func NewAdapter(source CoverageReader) *Adapter {
	return &Adapter{Source: source}
}

// Statistics reads one mask tile and returns its statistics tuple.
func (a *Adapter) Statistics(path string) (Statistics, error) {
	values, err := a.Source.Coverage(path)
	if err != nil {
		return Statistics{}, fmt.Errorf("%w: %s: %v", errs.ErrTileUnreadable, path, err)
	}
	s, err := FromValues(values)
	if err != nil {
		return Statistics{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
