package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/geo"
)

func TestLoaderLoad(t *testing.T) {
	md, err := NewLoader().Load(filepath.Join("testdata", "20QPD"))
	require.NoError(t, err)

	assert.Equal(t, geo.Projection{
		OriginX:     600000,
		OriginY:     2000040,
		PixelWidth:  10,
		PixelHeight: -10,
		CRS:         "EPSG:32620",
	}, md.Projection)

	assert.Equal(t, "2016-12-20T14:53:12.026Z", md.Fields["#scene_sensing_time"])
	assert.Equal(t, "20", md.Fields["#scene_utm_zone"])
	assert.Equal(t, "PD", md.Fields["#scene_grid_square"])
	assert.Equal(t, "100", md.Fields["#scene_data_coverage_percentage"])
	// tileInfo.json wins over the XML quality indicator.
	assert.Equal(t, "4.21", md.Fields["#scene_cloudy_pixel_percentage"])
	assert.Contains(t, md.Fields["#scene_product_name"], "T20QPD")
}

func TestLoaderWithoutTileInfo(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join("testdata", "20QPD", MetadataFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), src, 0644))

	md, err := NewLoader().Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "12.5", md.Fields["#scene_cloudy_pixel_percentage"])
	_, hasZone := md.Fields["#scene_utm_zone"]
	assert.False(t, hasZone)
}

func TestLoaderCRSFromTileInfo(t *testing.T) {
	dir := t.TempDir()
	xmlDoc := `<Tile><Geometric_Info><Tile_Geocoding>
<Geoposition resolution="10"><ULX>600000</ULX><ULY>2000040</ULY><XDIM>10</XDIM><YDIM>-10</YDIM></Geoposition>
</Tile_Geocoding></Geometric_Info></Tile>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte(xmlDoc), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TileInfoFile),
		[]byte(`{"tileGeometry":{"crs":{"properties":{"name":"urn:ogc:def:crs:EPSG:8.8.1:32620"}}}}`), 0644))

	md, err := NewLoader().Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "urn:ogc:def:crs:EPSG:8.8.1:32620", md.Projection.CRS)
}

func TestLoaderInvalidMetadata(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{name: "not xml", xml: "{"},
		{name: "no geoposition", xml: `<Tile><Geometric_Info><Tile_Geocoding><HORIZONTAL_CS_CODE>EPSG:32620</HORIZONTAL_CS_CODE></Tile_Geocoding></Geometric_Info></Tile>`},
		{name: "bad number", xml: `<Tile><Geometric_Info><Tile_Geocoding><HORIZONTAL_CS_CODE>EPSG:32620</HORIZONTAL_CS_CODE>
<Geoposition resolution="10"><ULX>abc</ULX><ULY>1</ULY><XDIM>10</XDIM><YDIM>-10</YDIM></Geoposition></Tile_Geocoding></Geometric_Info></Tile>`},
		{name: "no crs", xml: `<Tile><Geometric_Info><Tile_Geocoding>
<Geoposition resolution="10"><ULX>1</ULX><ULY>1</ULY><XDIM>10</XDIM><YDIM>-10</YDIM></Geoposition></Tile_Geocoding></Geometric_Info></Tile>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte(tt.xml), 0644))
			_, err := NewLoader().Load(dir)
			assert.ErrorIs(t, err, errs.ErrInvalidSceneMetadata)
		})
	}

	_, err := NewLoader().Load(t.TempDir())
	assert.ErrorIs(t, err, errs.ErrInvalidSceneMetadata, "missing metadata.xml")
}

func TestNewCopiesMetadata(t *testing.T) {
	md := Metadata{
		Projection: geo.Projection{PixelWidth: 10, PixelHeight: -10, CRS: "EPSG:32620"},
		Fields:     map[string]string{"#scene_tile_id": "T1"},
	}
	s, err := New("20QPD", "input/20QPD", 5490, 5490, 1000, md)
	require.NoError(t, err)

	md.Fields["#scene_tile_id"] = "changed"
	assert.Equal(t, "T1", s.Metadata["#scene_tile_id"])

	_, err = New("x", "x", 0, 10, 10, md)
	assert.ErrorIs(t, err, errs.ErrInvalidSceneMetadata)
	_, err = New("x", "x", 10, 10, 0, md)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestFindSceneName(t *testing.T) {
	assert.Equal(t, "20QPD", FindSceneName("input/20QPD"))
	assert.Equal(t, "20QPD", FindSceneName("input/20QPD/"))
	assert.Equal(t, "", FindSceneName("."))
}
