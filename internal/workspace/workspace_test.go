package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0644))
}

func TestPrepareScratch(t *testing.T) {
	root := t.TempDir()
	l := New(filepath.Join(root, "scratch", "S1"), filepath.Join(root, "output", "S1_tiles"))

	reused, err := l.PrepareScratch(false)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.DirExists(t, l.TileDir())
	assert.DirExists(t, l.MaskDir())
	assert.DirExists(t, l.BandDir())

	marker := filepath.Join(l.TileDir(), "tile_0.png")
	touch(t, marker)

	reused, err = l.PrepareScratch(false)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.FileExists(t, marker)

	reused, err = l.PrepareScratch(true)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NoFileExists(t, marker)
	assert.DirExists(t, l.TileDir())

	require.NoError(t, l.RemoveScratch())
	assert.NoDirExists(t, l.Scratch)
}

func TestResetOutput(t *testing.T) {
	l := New(t.TempDir(), filepath.Join(t.TempDir(), "S1_tiles"))
	require.NoError(t, l.ResetOutput())
	assert.DirExists(t, l.AcceptedDir())
	assert.DirExists(t, l.RejectedDir())

	stale := filepath.Join(l.AcceptedDir(), "tile_1.png")
	touch(t, stale)
	touch(t, filepath.Join(l.RejectedDir(), "tile_3.png"))
	report := l.OutputFile("manifest.csv")
	touch(t, report)

	require.NoError(t, l.ResetOutput())
	assert.NoFileExists(t, stale)
	assert.False(t, HasTiles(l.RejectedDir(), "png"))
	assert.DirExists(t, l.AcceptedDir())
	assert.FileExists(t, report, "reports outside the routing directories are kept")
}

func TestGridStamp(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := ReadGridStamp(dir)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteGridStamp(dir, 350))
	size, ok, err := ReadGridStamp(dir)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 350, size)

	touch(t, filepath.Join(dir, "tile_0.png"))
	names, err := ListTiles(dir, "png")
	require.NoError(t, err)
	assert.Equal(t, []string{"tile_0.png"}, names, "the stamp is not a tile")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".grid"), []byte("big"), 0644))
	_, _, err = ReadGridStamp(dir)
	assert.ErrorIs(t, err, errs.ErrScratchState)
}

func TestClampedBand(t *testing.T) {
	l := New("scratch/S1", "output/S1_tiles")
	assert.Equal(t, filepath.Join("scratch", "S1", "bands", "B04.png"), l.ClampedBand("B04.tif"))
	assert.Equal(t, filepath.Join("scratch", "S1", "bands", "B08.png"), l.ClampedBand("/data/S1/B08.tif"))
}

func TestListTiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tile_10.png", "tile_2.png", "tile_0.png", "tile_1.jpg", "notes.txt", "tile_x.png"} {
		touch(t, filepath.Join(dir, name))
	}

	touch(t, filepath.Join(dir, "tile_02.png"))

	names, err := ListTiles(dir, "png")
	require.NoError(t, err)
	assert.Equal(t, []string{"tile_0.png", "tile_2.png", "tile_10.png"}, names)
	assert.True(t, HasTiles(dir, ".png"))
	assert.False(t, HasTiles(dir, "gif"))
}

func TestListTilesMissingDir(t *testing.T) {
	_, err := ListTiles(filepath.Join(t.TempDir(), "absent"), "png")
	assert.ErrorIs(t, err, errs.ErrScratchState)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tile_3.png")
	touch(t, src)

	dst := filepath.Join(dir, "out", "accepted", "tile_3.png")
	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "tile_3.png", string(data))

	assert.Error(t, CopyFile(filepath.Join(dir, "missing.png"), dst))
}
