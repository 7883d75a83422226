// Package geo maps tile grid positions to projected and geographic bounds.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/im7mortal/UTM"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

// Projection is the affine georeference of a scene raster.
type Projection struct {
	OriginX     float64 `yaml:"origin_x"`     // x of the upper-left corner
	OriginY     float64 `yaml:"origin_y"`     // y of the upper-left corner
	PixelWidth  float64 `yaml:"pixel_width"`  // x step per pixel column
	PixelHeight float64 `yaml:"pixel_height"` // y step per pixel row, negative for north-up
	CRS         string  `yaml:"crs"`          // e.g. EPSG:32620
}

// Validate checks that the projection can georeference pixels.
func (p Projection) Validate() error {
	if p.PixelWidth == 0 || p.PixelHeight == 0 {
		return fmt.Errorf("%w: pixel scale missing", errs.ErrInvalidSceneMetadata)
	}
	if math.IsNaN(p.OriginX) || math.IsNaN(p.OriginY) {
		return fmt.Errorf("%w: origin missing", errs.ErrInvalidSceneMetadata)
	}
	if strings.TrimSpace(p.CRS) == "" {
		return fmt.Errorf("%w: CRS missing", errs.ErrInvalidSceneMetadata)
	}
	_, err := p.toLonLat()
	return err
}

// lonLatFunc converts projected coordinates to WGS84 degrees.
type lonLatFunc func(x, y float64) (lon, lat float64, err error)

func (p Projection) toLonLat() (lonLatFunc, error) {
	code, err := epsgCode(p.CRS)
	if err != nil {
		return nil, err
	}

	switch {
	case code == 4326:
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	case code > 32600 && code <= 32660:
		zone := code - 32600
		return func(x, y float64) (float64, float64, error) { return utmToLonLat(x, y, zone, true) }, nil
	case code > 32700 && code <= 32760:
		zone := code - 32700
		return func(x, y float64) (float64, float64, error) { return utmToLonLat(x, y, zone, false) }, nil
	}
	return nil, fmt.Errorf("%w: unsupported CRS %q", errs.ErrInvalidSceneMetadata, p.CRS)
}

// epsgCode accepts "EPSG:32620", "epsg:32620" and OGC URNs ending in the code.
func epsgCode(crs string) (int, error) {
	s := strings.TrimSpace(crs)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot read EPSG code from %q", errs.ErrInvalidSceneMetadata, crs)
	}
	return code, nil
}

// utmToLonLat inverts a WGS84 UTM coordinate in the given zone.
func utmToLonLat(easting, northing float64, zone int, north bool) (lon, lat float64, err error) {
	lat, lon, err = UTM.ToLatLon(easting, northing, zone, "", north)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: UTM %.2f,%.2f zone %d: %v", errs.ErrInvalidSceneMetadata, easting, northing, zone, err)
	}
	return lon, lat, nil
}
