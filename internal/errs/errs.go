// Package errs holds the failure taxonomy shared by every stage of a run.
// All of these are fatal: the orchestrator stops at the first one.
package errs

import "errors"

var (
	// ErrInvalidConfiguration covers bad grid sizes, thresholds and missing scene inputs.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrTileUnreadable is returned when a tile (or mask tile) cannot be decoded.
	ErrTileUnreadable = errors.New("tile unreadable")
	// ErrInvalidSceneMetadata is returned for missing or malformed projection parameters.
	ErrInvalidSceneMetadata = errors.New("invalid scene metadata")
	// ErrScratchState is returned when scratch artifacts a stage depends on are missing.
	ErrScratchState = errors.New("scratch state error")
)
