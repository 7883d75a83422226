package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lehigh-university-libraries/scenetiler/internal/models"
)

// ErrSchemaMismatch is returned when records in one manifest carry different fields.
var ErrSchemaMismatch = errors.New("manifest schema mismatch")

// RejectsHeader is the header row of the rejects file.
var RejectsHeader = []string{"filename", "index", "reason", "land", "cloud"}

// CSVWriter writes manifests and reject lists as CSV files.
type CSVWriter struct{}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// WriteManifest writes records to path. The header is the first record's field
// order and every other record must carry the same fields. With no records the
// file is created empty.
func (w *CSVWriter) WriteManifest(path string, records []*Record) error {
	var header []string
	if len(records) > 0 {
		header = records[0].Keys()
	}
	for i, r := range records {
		if !r.sameKeys(header) {
			return fmt.Errorf("%w: record %d has %d fields, header has %d", ErrSchemaMismatch, i, r.Len(), len(header))
		}
	}

	return writeAtomic(path, func(out io.Writer) error {
		if len(records) == 0 {
			return nil
		}
		cw := csv.NewWriter(out)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write(r.Values(header)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteRejects writes one row per rejected tile with its statistics.
func (w *CSVWriter) WriteRejects(path string, tiles []models.Tile) error {
	return writeAtomic(path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(RejectsHeader); err != nil {
			return err
		}
		for _, t := range tiles {
			row := []string{
				t.Filename,
				strconv.Itoa(t.Index),
				t.Outcome.Reason,
				strconv.FormatFloat(t.Stats.Land, 'f', 2, 64),
				strconv.FormatFloat(t.Stats.Cloud, 'f', 2, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteCSV writes records to path with a default CSVWriter.
func WriteCSV(path string, records []*Record) error {
	return NewCSVWriter().WriteManifest(path, records)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
