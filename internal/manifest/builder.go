package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/geo"
	"github.com/lehigh-university-libraries/scenetiler/internal/grid"
	"github.com/lehigh-university-libraries/scenetiler/internal/scene"
)

// Reserved field names, in the order they open every record.
const (
	FieldAfter  = "#filename1"
	FieldBefore = "#filename2"
	FieldReason = "#reason"
	FieldRow    = "#row"
	FieldColumn = "#column"
	FieldWidth  = "#width"
	FieldHeight = "#height"
)

// Filename prefixes for the paired annotation images.
const (
	AfterPrefix  = "after_"
	BeforePrefix = "before_"
)

// DimensionReader reports an image's pixel dimensions.
type DimensionReader interface {
	Dimensions(path string) (width, height int, err error)
}

// Builder assembles manifest records for tiles stored in TileDir.
type Builder struct {
	Dims    DimensionReader
	TileDir string
}

// NewBuilder creates a Builder reading tiles from dir.
func NewBuilder(dims DimensionReader, dir string) *Builder {
	return &Builder{Dims: dims, TileDir: dir}
}

// Build returns the record for one tile: reserved fields, then the coordinate
// block, then the scene metadata in sorted key order. Metadata keys may
// overwrite earlier fields.
func (b *Builder) Build(filename, reason string, sc scene.Scene) (*Record, error) {
	index, err := grid.ParseTileIndex(filename)
	if err != nil {
		return nil, err
	}

	width, height, err := b.Dims.Dimensions(filepath.Join(b.TileDir, filename))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrTileUnreadable, filename, err)
	}

	loc, err := grid.IndexToLocation(index, sc.Width, sc.GridSize)
	if err != nil {
		return nil, err
	}

	coords, err := geo.ComputeCoordinateMetadata(loc.Row, loc.Column, width, height, sc.GridSize, sc.Projection)
	if err != nil {
		return nil, fmt.Errorf("coordinates for %s: %w", filename, err)
	}

	r := NewRecord()
	r.Set(FieldAfter, AfterPrefix+filename)
	r.Set(FieldBefore, BeforePrefix+filename)
	r.Set(FieldReason, reason)
	r.Set(FieldRow, strconv.Itoa(loc.Row))
	r.Set(FieldColumn, strconv.Itoa(loc.Column))
	r.Set(FieldWidth, strconv.Itoa(width))
	r.Set(FieldHeight, strconv.Itoa(height))

	for _, f := range coords {
		r.Set(f.Name, f.Value)
	}

	keys := make([]string, 0, len(sc.Metadata))
	for k := range sc.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Set(k, sc.Metadata[k])
	}

	return r, nil
}
