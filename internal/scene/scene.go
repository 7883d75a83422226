// Package scene describes the satellite capture processed by one run and reads
// its metadata files.
package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/geo"
)

// Scene is created once per run and not modified afterwards.
type Scene struct {
	Name       string
	Dir        string
	Width      int
	Height     int
	GridSize   int
	Projection geo.Projection
	Metadata   map[string]string
}

// New assembles a Scene from the raster dimensions and parsed metadata.
// The metadata map is copied so later edits by the caller do not leak in.
func New(name, dir string, width, height, gridSize int, md Metadata) (Scene, error) {
	if width <= 0 || height <= 0 {
		return Scene{}, fmt.Errorf("%w: scene dimensions %dx%d", errs.ErrInvalidSceneMetadata, width, height)
	}
	if gridSize <= 0 {
		return Scene{}, fmt.Errorf("%w: grid size must be positive, got %d", errs.ErrInvalidConfiguration, gridSize)
	}
	if err := md.Projection.Validate(); err != nil {
		return Scene{}, err
	}

	fields := make(map[string]string, len(md.Fields))
	for k, v := range md.Fields {
		fields[k] = v
	}

	return Scene{
		Name:       name,
		Dir:        dir,
		Width:      width,
		Height:     height,
		GridSize:   gridSize,
		Projection: md.Projection,
		Metadata:   fields,
	}, nil
}

// FindSceneName derives a scene name from its directory, e.g. input/20QPD -> 20QPD.
func FindSceneName(dir string) string {
	name := filepath.Base(filepath.Clean(dir))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSpace(name)
}
