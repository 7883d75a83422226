package report

import (
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scenetiler/internal/models"
	"github.com/lehigh-university-libraries/scenetiler/internal/stats"
)

func sampleTiles() (accepted, rejected []models.Tile) {
	accepted = []models.Tile{
		{Filename: "tile_0.png", Index: 0, Stats: stats.Statistics{Land: 5, Cloud: 20}, Outcome: models.Accept()},
		{Filename: "tile_4.png", Index: 4, Stats: stats.Statistics{Land: 15, Cloud: 10}, Outcome: models.Accept()},
	}
	rejected = []models.Tile{
		{Filename: "tile_1.png", Index: 1, Stats: stats.Statistics{Land: 95, Cloud: 0}, Outcome: models.Reject("land_rule")},
		{Filename: "tile_3.png", Index: 3, Stats: stats.Statistics{Land: 5, Cloud: 90}, Outcome: models.Reject("cloud_rule")},
	}
	return accepted, rejected
}

func TestNewSummary(t *testing.T) {
	accepted, rejected := sampleTiles()
	s := NewSummary("20QPD", 350, Thresholds{Land: 10, Cloud: 70}, accepted, rejected)

	assert.Equal(t, 4, s.Tiles)
	assert.Equal(t, 2, s.Accepted)
	assert.Equal(t, 2, s.Rejected)
	assert.Equal(t, map[string]int{"Accepted": 2, "land_rule": 1, "cloud_rule": 1}, s.Reasons)
	assert.Equal(t, 4, s.Statistics.Tiles)
	assert.InDelta(t, 30.0, s.Statistics.Land.Mean, 1e-9)
	assert.InDelta(t, 90.0, s.Statistics.Cloud.Max, 1e-9)
}

func TestSaveAndLoadSummary(t *testing.T) {
	accepted, rejected := sampleTiles()
	s := NewSummary("20QPD", 350, Thresholds{Land: 10, LandSensitivity: 60, Cloud: 70, CloudSensitivity: 200}, accepted, rejected)
	s.RunID = "run-1"

	path := filepath.Join(t.TempDir(), "out", "summary.yaml")
	require.NoError(t, SaveSummary(path, s))

	got, err := LoadSummary(path)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSortedReasons(t *testing.T) {
	got := SortedReasons(map[string]int{"land_rule": 1, "Accepted": 3, "cloud_rule": 2})
	assert.Equal(t, []string{"Accepted", "cloud_rule", "land_rule"}, got)
}

func TestTileRowsAndParquetRoundTrip(t *testing.T) {
	accepted, rejected := sampleTiles()
	rows, err := TileRows(1000, 350, accepted, rejected)
	require.NoError(t, err)

	indices := make([]int64, len(rows))
	for i, r := range rows {
		indices[i] = r.Index
	}
	assert.Equal(t, []int64{0, 1, 3, 4}, indices)
	// perRow is 1000/350+1 = 3, so tile 4 is row 1 column 1.
	assert.Equal(t, TileRow{Filename: "tile_4.png", Index: 4, Row: 1, Column: 1, Land: 15, Cloud: 10, Accepted: true, Reason: "Accepted"}, rows[3])

	path := filepath.Join(t.TempDir(), "tiles.parquet")
	require.NoError(t, WriteTiles(path, rows))

	got, err := ReadTiles(path)
	require.NoError(t, err)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("parquet rows mismatch (-want +got):\n%s", diff)
	}
}

func TestPlotVerdicts(t *testing.T) {
	accepted, rejected := sampleTiles()
	rows, err := TileRows(1000, 350, accepted, rejected)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "verdicts.png")
	require.NoError(t, PlotVerdicts(path, "20QPD", rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Greater(t, cfg.Width, 0)
}

func TestReasonsChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reasons.html")
	require.NoError(t, ReasonsChart(path, "20QPD", map[string]int{"Accepted": 2, "land_rule": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.True(t, strings.Contains(html, "land_rule"))
	assert.True(t, strings.Contains(html, "Tile reasons"))
}
