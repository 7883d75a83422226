// Package grid maps sliced tile indices to their row and column in the scene grid.
package grid

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

const tilePrefix = "tile_"

// Location is a tile's position in the grid, zero-based from the top-left.
type Location struct {
	Row    int
	Column int
}

// TilesPerRow returns width/gridSize + 1.
//
// The extra column is reserved even when width is an exact multiple of gridSize,
// in which case the trailing column addresses tiles the slicer never writes.
func TilesPerRow(width, gridSize int) (int, error) {
	if gridSize <= 0 {
		return 0, fmt.Errorf("%w: grid size must be positive, got %d", errs.ErrInvalidConfiguration, gridSize)
	}
	if width < 0 {
		return 0, fmt.Errorf("%w: width must not be negative, got %d", errs.ErrInvalidConfiguration, width)
	}
	return width/gridSize + 1, nil
}

// IndexToLocation converts a raster-scan tile index to its grid location.
// No bounds check is made against the number of tiles actually produced.
func IndexToLocation(index, width, gridSize int) (Location, error) {
	perRow, err := TilesPerRow(width, gridSize)
	if err != nil {
		return Location{}, err
	}
	if index < 0 {
		return Location{}, fmt.Errorf("%w: tile index must not be negative, got %d", errs.ErrInvalidConfiguration, index)
	}
	return Location{Row: index / perRow, Column: index % perRow}, nil
}

// ExactFit reports whether width divides evenly into grid cells, the case where
// addressing reserves an empty trailing column.
func ExactFit(width, gridSize int) bool {
	return gridSize > 0 && width%gridSize == 0
}

// TileFilename returns the on-disk name for a tile index, e.g. tile_7.png.
func TileFilename(index int, ext string) string {
	return tilePrefix + strconv.Itoa(index) + "." + strings.TrimPrefix(ext, ".")
}

// ParseTileIndex extracts the index from a tile filename such as tile_7.png.
// Only the canonical spelling is accepted; tile_07.png is not a tile.
func ParseTileIndex(filename string) (int, error) {
	base := filepath.Base(filename)
	if !strings.HasPrefix(base, tilePrefix) {
		return 0, fmt.Errorf("%w: %q is not a tile filename", errs.ErrInvalidConfiguration, base)
	}
	rest := strings.TrimPrefix(base, tilePrefix)
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		rest = rest[:dot]
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 || strconv.Itoa(idx) != rest {
		return 0, fmt.Errorf("%w: %q has no tile index", errs.ErrInvalidConfiguration, base)
	}
	return idx, nil
}

// SortByIndex orders tile filenames by numeric index so tile_10 follows tile_9.
// Names without a parsable index sort last, lexically.
func SortByIndex(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, errA := ParseTileIndex(names[i])
		b, errB := ParseTileIndex(names[j])
		switch {
		case errA != nil && errB != nil:
			return names[i] < names[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a < b
	})
}
