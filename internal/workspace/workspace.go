// Package workspace owns the on-disk layout of a run: the per-scene scratch
// directory holding intermediate rasters, and the output directory holding
// routed tiles and reports.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/grid"
)

const (
	bandsDir     = "bands"
	tilesDir     = "tiles"
	masksDir     = "masks"
	compositePNG = "composite.png"
	acceptedDir  = "accepted"
	rejectedDir  = "rejected"
	annotatedDir = "annotated"
	gridStamp    = ".grid"
)

// Layout resolves every path a run reads or writes.
type Layout struct {
	Scratch string
	Output  string
}

// New creates a Layout rooted at the given scratch and output directories.
func New(scratch, output string) Layout {
	return Layout{Scratch: scratch, Output: output}
}

// PrepareScratch makes the scratch directory usable. An existing scratch is
// reused untouched unless rebuild is set, in which case it is destroyed and
// recreated. It reports whether the existing scratch was reused.
func (l Layout) PrepareScratch(rebuild bool) (bool, error) {
	if Exists(l.Scratch) && !rebuild {
		return true, nil
	}
	if err := os.RemoveAll(l.Scratch); err != nil {
		return false, fmt.Errorf("failed to remove scratch %s: %w", l.Scratch, err)
	}
	for _, dir := range []string{l.BandDir(), l.TileDir(), l.MaskDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
		}
	}
	return false, nil
}

// ResetOutput empties the routing subdirectories of the output directory,
// creating them if needed. Tiles routed by an earlier run do not survive.
func (l Layout) ResetOutput() error {
	for _, dir := range []string{l.AcceptedDir(), l.RejectedDir()} {
		if err := ResetDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// ResetDir removes everything in dir and recreates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteGridStamp records the grid size the tiles in dir were cut at.
func WriteGridStamp(dir string, gridSize int) error {
	path := filepath.Join(dir, gridStamp)
	if err := os.WriteFile(path, []byte(strconv.Itoa(gridSize)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write grid stamp %s: %w", path, err)
	}
	return nil
}

// ReadGridStamp returns the grid size recorded in dir. ok is false when no
// stamp exists.
func ReadGridStamp(dir string) (gridSize int, ok bool, err error) {
	path := filepath.Join(dir, gridStamp)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read grid stamp %s: %w", path, err)
	}
	gridSize, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false, fmt.Errorf("%w: corrupt grid stamp %s", errs.ErrScratchState, path)
	}
	return gridSize, true, nil
}

// RemoveScratch deletes the scratch directory and everything in it.
func (l Layout) RemoveScratch() error {
	if err := os.RemoveAll(l.Scratch); err != nil {
		return fmt.Errorf("failed to remove scratch %s: %w", l.Scratch, err)
	}
	return nil
}

func (l Layout) BandDir() string      { return filepath.Join(l.Scratch, bandsDir) }
func (l Layout) TileDir() string      { return filepath.Join(l.Scratch, tilesDir) }
func (l Layout) MaskDir() string      { return filepath.Join(l.Scratch, masksDir) }
func (l Layout) Composite() string    { return filepath.Join(l.Scratch, compositePNG) }
func (l Layout) AcceptedDir() string  { return filepath.Join(l.Output, acceptedDir) }
func (l Layout) RejectedDir() string  { return filepath.Join(l.Output, rejectedDir) }
func (l Layout) AnnotatedDir() string { return filepath.Join(l.Output, annotatedDir) }

// ClampedBand is the scratch path of a clamped copy of the named band file.
func (l Layout) ClampedBand(band string) string {
	base := filepath.Base(band)
	return filepath.Join(l.BandDir(), strings.TrimSuffix(base, filepath.Ext(base))+".png")
}

// OutputFile is a report file directly under the output directory.
func (l Layout) OutputFile(name string) string {
	return filepath.Join(l.Output, name)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListTiles returns the tile filenames in dir with the given extension, in
// numeric index order. Other files are ignored. A missing directory is a
// scratch state error.
func ListTiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: tile directory %s does not exist", errs.ErrScratchState, dir)
		}
		return nil, fmt.Errorf("failed to list tiles in %s: %w", dir, err)
	}

	suffix := "." + strings.TrimPrefix(ext, ".")
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		if _, err := grid.ParseTileIndex(entry.Name()); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}

	grid.SortByIndex(names)
	return names, nil
}

// HasTiles reports whether dir holds at least one tile with the extension.
func HasTiles(dir, ext string) bool {
	names, err := ListTiles(dir, ext)
	return err == nil && len(names) > 0
}

// CopyFile copies src to dst, creating dst's directory if needed.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
