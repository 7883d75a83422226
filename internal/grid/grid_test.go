package grid

import (
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

func TestIndexToLocation(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		width    int
		gridSize int
		expected Location
	}{
		{name: "first tile", index: 0, width: 5490, gridSize: 1000, expected: Location{0, 0}},
		{name: "scene example", index: 7, width: 5490, gridSize: 1000, expected: Location{1, 1}},
		{name: "last column of first row", index: 5, width: 5490, gridSize: 1000, expected: Location{0, 5}},
		{name: "exact multiple keeps extra column", index: 5, width: 5000, gridSize: 1000, expected: Location{0, 5}},
		{name: "exact multiple wraps after extra column", index: 6, width: 5000, gridSize: 1000, expected: Location{1, 0}},
		{name: "index past produced tiles", index: 1000, width: 700, gridSize: 350, expected: Location{333, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := IndexToLocation(tt.index, tt.width, tt.gridSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if loc != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, loc)
			}
		})
	}
}

func TestIndexToLocationRoundTrip(t *testing.T) {
	for _, width := range []int{0, 1, 349, 350, 351, 5490, 10980} {
		for _, gridSize := range []int{1, 7, 350, 1000} {
			perRow, err := TilesPerRow(width, gridSize)
			if err != nil {
				t.Fatalf("TilesPerRow(%d, %d): %v", width, gridSize, err)
			}
			if perRow != width/gridSize+1 {
				t.Fatalf("TilesPerRow(%d, %d) = %d", width, gridSize, perRow)
			}
			for index := 0; index < 200; index++ {
				loc, err := IndexToLocation(index, width, gridSize)
				if err != nil {
					t.Fatalf("IndexToLocation: %v", err)
				}
				if got := loc.Row*perRow + loc.Column; got != index {
					t.Fatalf("width=%d grid=%d index=%d: row*perRow+column = %d", width, gridSize, index, got)
				}
				again, _ := IndexToLocation(index, width, gridSize)
				if again != loc {
					t.Fatalf("non-deterministic location for index %d", index)
				}
			}
		}
	}
}

func TestIndexToLocationInvalid(t *testing.T) {
	cases := []struct {
		index, width, gridSize int
	}{
		{0, 100, 0},
		{0, 100, -5},
		{-1, 100, 10},
		{0, -1, 10},
	}
	for _, c := range cases {
		if _, err := IndexToLocation(c.index, c.width, c.gridSize); !errors.Is(err, errs.ErrInvalidConfiguration) {
			t.Errorf("IndexToLocation(%d, %d, %d): expected ErrInvalidConfiguration, got %v", c.index, c.width, c.gridSize, err)
		}
	}
}

func TestParseTileIndex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "png", input: "tile_7.png", want: 7},
		{name: "path", input: "scratch/scene/tile_42.png", want: 42},
		{name: "no extension", input: "tile_3", want: 3},
		{name: "foreign", input: "mask.png", wantErr: true},
		{name: "not numeric", input: "tile_x.png", wantErr: true},
		{name: "zero padded", input: "tile_01.png", wantErr: true},
		{name: "signed", input: "tile_+1.png", wantErr: true},
		{name: "zero", input: "tile_0.png", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTileIndex(tt.input)
			if tt.wantErr {
				if !errors.Is(err, errs.ErrInvalidConfiguration) {
					t.Errorf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}

	if name := TileFilename(12, ".png"); name != "tile_12.png" {
		t.Errorf("TileFilename = %q", name)
	}
}

func TestSortByIndex(t *testing.T) {
	names := []string{"tile_10.png", "tile_2.png", "notes.txt", "tile_1.png", "tile_0.png"}
	SortByIndex(names)
	want := []string{"tile_0.png", "tile_1.png", "tile_2.png", "tile_10.png", "notes.txt"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, names)
		}
	}
}

func TestExactFit(t *testing.T) {
	if !ExactFit(5000, 1000) {
		t.Error("5000/1000 should be an exact fit")
	}
	if ExactFit(5490, 1000) {
		t.Error("5490/1000 should not be an exact fit")
	}
}
