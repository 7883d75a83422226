package geo

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

func sentinelProjection() Projection {
	return Projection{
		OriginX:     399960,
		OriginY:     2000040,
		PixelWidth:  10,
		PixelHeight: -10,
		CRS:         "EPSG:32620",
	}
}

func TestComputeCoordinateMetadataProjectedBounds(t *testing.T) {
	block, err := ComputeCoordinateMetadata(1, 1, 1000, 1000, 1000, sentinelProjection())
	require.NoError(t, err)

	want := map[string]string{
		FieldULX: "409960.00",
		FieldULY: "1990040.00",
		FieldLRX: "419960.00",
		FieldLRY: "1980040.00",
		FieldCRS: "EPSG:32620",
	}
	for name, value := range want {
		got, ok := block.Get(name)
		require.True(t, ok, "missing field %s", name)
		assert.Equal(t, value, got, name)
	}
}

func TestComputeCoordinateMetadataEdgeTile(t *testing.T) {
	// A trailing tile narrower than the grid step keeps its grid origin.
	block, err := ComputeCoordinateMetadata(0, 5, 490, 1000, 1000, sentinelProjection())
	require.NoError(t, err)

	ulx, _ := block.Get(FieldULX)
	lrx, _ := block.Get(FieldLRX)
	assert.Equal(t, "449960.00", ulx)
	assert.Equal(t, "454860.00", lrx)
}

func TestComputeCoordinateMetadataSchemaIsFixed(t *testing.T) {
	utm, err := ComputeCoordinateMetadata(0, 0, 10, 10, 10, sentinelProjection())
	require.NoError(t, err)
	wgs, err := ComputeCoordinateMetadata(0, 0, 10, 10, 10, Projection{OriginX: -70, OriginY: 43, PixelWidth: 0.001, PixelHeight: -0.001, CRS: "EPSG:4326"})
	require.NoError(t, err)

	names := func(b CoordinateBlock) []string {
		out := make([]string, len(b))
		for i, f := range b {
			out[i] = f.Name
		}
		return out
	}
	if diff := cmp.Diff(Fields, names(utm)); diff != "" {
		t.Errorf("UTM field names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(names(utm), names(wgs)); diff != "" {
		t.Errorf("field names depend on CRS (-utm +wgs84):\n%s", diff)
	}

	lon, _ := wgs.Get(FieldULLon)
	lat, _ := wgs.Get(FieldULLat)
	assert.Equal(t, "-70.000000", lon)
	assert.Equal(t, "43.000000", lat)
}

func TestComputeCoordinateMetadataIsPure(t *testing.T) {
	p := sentinelProjection()
	first, err := ComputeCoordinateMetadata(3, 4, 350, 350, 350, p)
	require.NoError(t, err)
	second, err := ComputeCoordinateMetadata(3, 4, 350, 350, 350, p)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated call differs (-first +second):\n%s", diff)
	}
}

func TestComputeCoordinateMetadataInvalidScene(t *testing.T) {
	tests := []struct {
		name string
		p    Projection
	}{
		{name: "missing scale", p: Projection{OriginX: 1, OriginY: 1, CRS: "EPSG:32620"}},
		{name: "missing crs", p: Projection{PixelWidth: 10, PixelHeight: -10}},
		{name: "unsupported crs", p: Projection{PixelWidth: 10, PixelHeight: -10, CRS: "EPSG:3857"}},
		{name: "garbage crs", p: Projection{PixelWidth: 10, PixelHeight: -10, CRS: "utm"}},
		{name: "nan origin", p: Projection{OriginX: math.NaN(), PixelWidth: 10, PixelHeight: -10, CRS: "EPSG:32620"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeCoordinateMetadata(0, 0, 10, 10, 10, tt.p)
			assert.ErrorIs(t, err, errs.ErrInvalidSceneMetadata)
		})
	}

	_, err := ComputeCoordinateMetadata(0, 0, 10, 10, 0, sentinelProjection())
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestUTMToLonLat(t *testing.T) {
	lon, lat, err := utmToLonLat(500000, 0, 31, true)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, lon, 1e-9)
	assert.InDelta(t, 0.0, lat, 1e-9)

	// One degree of latitude along the central meridian at the equator.
	lon, lat, err = utmToLonLat(500000, 110530.07, 31, true)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, lon, 1e-9)
	assert.InDelta(t, 1.0, lat, 1e-5)

	_, south, err := utmToLonLat(500000, 10000000-110530.07, 31, false)
	require.NoError(t, err)
	assert.InDelta(t, -lat, south, 1e-6)

	lon, lat, err = utmToLonLat(399960, 1900020, 20, true)
	require.NoError(t, err)
	assert.InDelta(t, -63.9407, lon, 1e-3)
	assert.InDelta(t, 17.1828, lat, 1e-3)

	_, _, err = utmToLonLat(50, 1900020, 20, true)
	assert.ErrorIs(t, err, errs.ErrInvalidSceneMetadata, "easting outside the zone")
}

func TestEPSGCode(t *testing.T) {
	for _, crs := range []string{"EPSG:32620", "epsg:32620", "urn:ogc:def:crs:EPSG:8.8.1:32620", " 32620 "} {
		code, err := epsgCode(crs)
		require.NoError(t, err, crs)
		assert.Equal(t, 32620, code, crs)
	}
}
