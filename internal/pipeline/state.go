package pipeline

import "fmt"

// State is a point in the linear traversal of one run.
type State int

const (
	Init State = iota
	ScratchReady
	ChannelsClamped
	Assembled
	Sliced
	MasksGenerated
	Classified
	Visualized
	ManifestWritten
	Annotated
	Done
)

var stateNames = [...]string{
	Init:            "Init",
	ScratchReady:    "ScratchReady",
	ChannelsClamped: "ChannelsClamped",
	Assembled:       "Assembled",
	Sliced:          "Sliced",
	MasksGenerated:  "MasksGenerated",
	Classified:      "Classified",
	Visualized:      "Visualized",
	ManifestWritten: "ManifestWritten",
	Annotated:       "Annotated",
	Done:            "Done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// StageError reports the stage a run failed in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
