// Package rules classifies tiles by evaluating an ordered list of predicates
// over their statistics. The first failing rule names the rejection.
package rules

import (
	"github.com/lehigh-university-libraries/scenetiler/internal/models"
	"github.com/lehigh-university-libraries/scenetiler/internal/stats"
)

// Rule names used in rejection reasons.
const (
	LandRuleName  = "land_rule"
	CloudRuleName = "cloud_rule"
)

// Rule is a named pass/fail predicate over a tile's statistics.
type Rule interface {
	Name() string
	Check(s stats.Statistics) bool
}

// Classify evaluates rules in order and stops at the first failure.
// A tile is accepted only when every rule passes.
func Classify(s stats.Statistics, rules []Rule) models.Outcome {
	for _, r := range rules {
		if !r.Check(s) {
			return models.Reject(r.Name())
		}
	}
	return models.Accept()
}

// LandRule rejects tiles that are (nearly) all land. Threshold is the minimum
// percentage of water a tile must keep; Sensitivity is the infrared intensity
// at which a pixel is masked as land.
type LandRule struct {
	Threshold   int
	Sensitivity int
}

func (LandRule) Name() string { return LandRuleName }

func (r LandRule) Check(s stats.Statistics) bool {
	return s.Land < float64(100-r.Threshold)
}

// CloudRule rejects tiles whose cloud cover exceeds Threshold percent.
// Sensitivity is the blue-band intensity at which a pixel is masked as cloud.
type CloudRule struct {
	Threshold   int
	Sensitivity int
}

func (CloudRule) Name() string { return CloudRuleName }

func (r CloudRule) Check(s stats.Statistics) bool {
	return s.Cloud <= float64(r.Threshold)
}

type funcRule struct {
	name string
	fn   func(stats.Statistics) bool
}

func (f funcRule) Name() string                  { return f.name }
func (f funcRule) Check(s stats.Statistics) bool { return f.fn(s) }

// Func adapts a plain predicate into a named Rule.
func Func(name string, fn func(stats.Statistics) bool) Rule {
	return funcRule{name: name, fn: fn}
}
