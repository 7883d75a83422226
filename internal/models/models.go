package models

import "github.com/lehigh-university-libraries/scenetiler/internal/stats"

// ReasonAccepted is the reason recorded for tiles that pass every rule.
const ReasonAccepted = "Accepted"

// Outcome is the verdict for one tile
type Outcome struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"` // rejecting rule name, or ReasonAccepted
}

// Accept returns the accepted outcome
func Accept() Outcome {
	return Outcome{Accepted: true, Reason: ReasonAccepted}
}

// Reject returns a rejection carrying the failing rule's name
func Reject(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Tile is one sliced tile flowing through classification
type Tile struct {
	Filename string           `json:"filename"`
	Index    int              `json:"index"`
	Stats    stats.Statistics `json:"stats"`
	Outcome  Outcome          `json:"outcome"`
}
