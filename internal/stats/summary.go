package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Signal summarises one statistic across a set of tiles.
type Signal struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`
	Max    float64 `yaml:"max"`
}

// Summary summarises land and cloud coverage across a set of tiles.
type Summary struct {
	Tiles int    `yaml:"tiles"`
	Land  Signal `yaml:"land"`
	Cloud Signal `yaml:"cloud"`
}

// Summarize computes mean, standard deviation and maximum of each signal.
// An empty input yields a zero Summary.
func Summarize(all []Statistics) Summary {
	summary := Summary{Tiles: len(all)}
	if len(all) == 0 {
		return summary
	}

	land := make([]float64, len(all))
	cloud := make([]float64, len(all))
	for i, s := range all {
		land[i] = s.Land
		cloud[i] = s.Cloud
	}

	summary.Land = signalOf(land)
	summary.Cloud = signalOf(cloud)
	return summary
}

func signalOf(values []float64) Signal {
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return Signal{Mean: mean, StdDev: std, Max: floats.Max(values)}
}
