package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scenetiler/internal/config"
	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
)

func parseRun(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var opts runOptions
	f := pflag.NewFlagSet("run", pflag.ContinueOnError)
	bindRunFlags(f, &opts)
	require.NoError(t, f.Parse(args))
	return buildConfig(f, opts, "input/20QPD")
}

func TestBuildConfigDefaults(t *testing.T) {
	t.Setenv(LedgerEnv, "")
	cfg, err := parseRun(t, "--generate")
	require.NoError(t, err)

	assert.Equal(t, "20QPD", cfg.SceneName)
	assert.Equal(t, config.DefaultGridSize, cfg.GridSize)
	assert.True(t, cfg.Stages.Assemble)
	assert.True(t, cfg.Stages.Slice)
	assert.False(t, cfg.Stages.Reject)
	assert.Empty(t, cfg.LedgerPath)
}

func TestBuildConfigFull(t *testing.T) {
	cfg, err := parseRun(t, "--full", "--annotate", "--name", "foo")
	require.NoError(t, err)

	assert.Equal(t, "foo", cfg.SceneName)
	assert.True(t, cfg.Rebuild)
	assert.True(t, cfg.TempScratch)
	assert.True(t, cfg.Stages.Manifest)
	assert.True(t, cfg.Stages.Annotate)
}

func TestBuildConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenetiler.yaml")
	yaml := "grid_size: 500\ncloud_threshold: 30\nledger_path: from-file.db\nstages:\n  manifest: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv(LedgerEnv, "from-env.db")

	cfg, err := parseRun(t, "--config", path, "--cloud-threshold", "40")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.GridSize, "file over default")
	assert.Equal(t, 40, cfg.CloudThreshold, "flag over file")
	assert.Equal(t, "from-env.db", cfg.LedgerPath, "env over file")
	assert.True(t, cfg.Stages.Manifest)

	cfg, err = parseRun(t, "--config", path, "--ledger", "flag.db")
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.LedgerPath, "flag over env")
}

func TestBuildConfigErrors(t *testing.T) {
	_, err := parseRun(t)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	_, err = parseRun(t, "--generate", "--grid-size", "0")
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}
