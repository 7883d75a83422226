package geo

import (
	"fmt"
	"strconv"

	"github.com/golang/geo/s2"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

// S2Level is the cell level reported for tile centres (roughly 1 km cells).
const S2Level = 13

// Coordinate field names, in output order. They do not depend on the CRS.
const (
	FieldULX       = "#tile_UL_x"
	FieldULY       = "#tile_UL_y"
	FieldLRX       = "#tile_LR_x"
	FieldLRY       = "#tile_LR_y"
	FieldULLon     = "#tile_UL_lon"
	FieldULLat     = "#tile_UL_lat"
	FieldLRLon     = "#tile_LR_lon"
	FieldLRLat     = "#tile_LR_lat"
	FieldCenterLon = "#tile_center_lon"
	FieldCenterLat = "#tile_center_lat"
	FieldS2Cell    = "#tile_s2_cell"
	FieldCRS       = "#crs"
)

// Fields lists every coordinate field in output order.
var Fields = []string{
	FieldULX, FieldULY, FieldLRX, FieldLRY,
	FieldULLon, FieldULLat, FieldLRLon, FieldLRLat,
	FieldCenterLon, FieldCenterLat, FieldS2Cell, FieldCRS,
}

// Field is one named coordinate value.
type Field struct {
	Name  string
	Value string
}

// CoordinateBlock is the ordered set of coordinate fields for one tile.
type CoordinateBlock []Field

// Get returns the value of a named field.
func (b CoordinateBlock) Get(name string) (string, bool) {
	for _, f := range b {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Bounds is a tile's extent in projected units and WGS84 degrees.
type Bounds struct {
	ULX, ULY, LRX, LRY         float64
	ULLon, ULLat, LRLon, LRLat float64
	CenterLon, CenterLat       float64
}

// TileBounds computes the extent of the tile at (row, column). width and height
// are the tile's own pixel dimensions; gridSize is the slicing step.
func TileBounds(row, column, width, height, gridSize int, p Projection) (Bounds, error) {
	if row < 0 || column < 0 || width < 0 || height < 0 {
		return Bounds{}, fmt.Errorf("%w: negative tile position or size", errs.ErrInvalidConfiguration)
	}
	if gridSize <= 0 {
		return Bounds{}, fmt.Errorf("%w: grid size must be positive, got %d", errs.ErrInvalidConfiguration, gridSize)
	}
	if err := p.Validate(); err != nil {
		return Bounds{}, err
	}
	toLonLat, err := p.toLonLat()
	if err != nil {
		return Bounds{}, err
	}

	var b Bounds
	b.ULX = p.OriginX + float64(column*gridSize)*p.PixelWidth
	b.ULY = p.OriginY + float64(row*gridSize)*p.PixelHeight
	b.LRX = b.ULX + float64(width)*p.PixelWidth
	b.LRY = b.ULY + float64(height)*p.PixelHeight

	if b.ULLon, b.ULLat, err = toLonLat(b.ULX, b.ULY); err != nil {
		return Bounds{}, err
	}
	if b.LRLon, b.LRLat, err = toLonLat(b.LRX, b.LRY); err != nil {
		return Bounds{}, err
	}
	if b.CenterLon, b.CenterLat, err = toLonLat((b.ULX+b.LRX)/2, (b.ULY+b.LRY)/2); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// ComputeCoordinateMetadata returns the coordinate block merged into a manifest
// record. The row and column are trusted as given; they are not re-derived.
func ComputeCoordinateMetadata(row, column, width, height, gridSize int, p Projection) (CoordinateBlock, error) {
	b, err := TileBounds(row, column, width, height, gridSize, p)
	if err != nil {
		return nil, err
	}

	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(b.CenterLat, b.CenterLon)).Parent(S2Level)

	return CoordinateBlock{
		{FieldULX, metres(b.ULX)},
		{FieldULY, metres(b.ULY)},
		{FieldLRX, metres(b.LRX)},
		{FieldLRY, metres(b.LRY)},
		{FieldULLon, degrees(b.ULLon)},
		{FieldULLat, degrees(b.ULLat)},
		{FieldLRLon, degrees(b.LRLon)},
		{FieldLRLat, degrees(b.LRLat)},
		{FieldCenterLon, degrees(b.CenterLon)},
		{FieldCenterLat, degrees(b.CenterLat)},
		{FieldS2Cell, cell.ToToken()},
		{FieldCRS, p.CRS},
	}, nil
}

func metres(v float64) string  { return strconv.FormatFloat(v, 'f', 2, 64) }
func degrees(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
