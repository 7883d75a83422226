package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/scenetiler/internal/grid"
	"github.com/lehigh-university-libraries/scenetiler/internal/models"
)

// TileRow is one row of tiles.parquet.
type TileRow struct {
	Filename string  `parquet:"filename"`
	Index    int64   `parquet:"index"`
	Row      int64   `parquet:"row"`
	Column   int64   `parquet:"column"`
	Land     float64 `parquet:"land"`
	Cloud    float64 `parquet:"cloud"`
	Accepted bool    `parquet:"accepted"`
	Reason   string  `parquet:"reason"`
}

// TileRows flattens classified tiles into rows ordered by tile index.
func TileRows(width, gridSize int, groups ...[]models.Tile) ([]TileRow, error) {
	var rows []TileRow
	for _, tiles := range groups {
		for _, t := range tiles {
			loc, err := grid.IndexToLocation(t.Index, width, gridSize)
			if err != nil {
				return nil, err
			}
			rows = append(rows, TileRow{
				Filename: t.Filename,
				Index:    int64(t.Index),
				Row:      int64(loc.Row),
				Column:   int64(loc.Column),
				Land:     t.Stats.Land,
				Cloud:    t.Stats.Cloud,
				Accepted: t.Outcome.Accepted,
				Reason:   t.Outcome.Reason,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows, nil
}

// WriteTiles writes rows to a Parquet file.
func WriteTiles(path string, rows []TileRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[TileRow](file)
	if _, err := writer.Write(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return file.Close()
}

// ReadTiles loads every row of a Parquet file written by WriteTiles.
func ReadTiles(path string) ([]TileRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet file opened", "path", path, "num_rows", pf.NumRows())

	reader := parquet.NewGenericReader[TileRow](pf)
	defer reader.Close()

	var rows []TileRow
	batch := make([]TileRow, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return rows, nil
}
