// Package pipeline sequences the stages of one scene run: scratch setup,
// band clamping, compositing, slicing, mask generation, classification,
// visualisation, manifest writing and annotation.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/scenetiler/internal/config"
	"github.com/lehigh-university-libraries/scenetiler/internal/manifest"
	"github.com/lehigh-university-libraries/scenetiler/internal/models"
	"github.com/lehigh-university-libraries/scenetiler/internal/scene"
	"github.com/lehigh-university-libraries/scenetiler/internal/workspace"
)

// Output file names inside the scene's output directory.
const (
	ManifestFile = "manifest.csv"
	RejectsFile  = "rejects.csv"
	TilesFile    = "tiles.parquet"
	SummaryFile  = "summary.yaml"
	VerdictsFile = "verdicts.png"
	ReasonsFile  = "reasons.html"
)

// Imager is the image collaborator used by every raster stage.
type Imager interface {
	Dimensions(path string) (width, height int, err error)
	Clamp(src, dst string, ceiling int) error
	Assemble(red, green, blue, dst string, greenBoost float64) error
	Slice(src, dir string, gridSize int) (int, error)
	GenerateMasks(infrared, blue, dir string, gridSize, landSensitivity, cloudSensitivity int) (int, error)
	Coverage(path string) ([]float64, error)
	Annotate(src, dst, label string) error
}

// MetadataLoader reads scene metadata from the scene directory.
type MetadataLoader interface {
	Load(dir string) (scene.Metadata, error)
}

// ManifestWriter persists the manifest and the reject list.
type ManifestWriter interface {
	WriteManifest(path string, records []*manifest.Record) error
	WriteRejects(path string, tiles []models.Tile) error
}

// Ledger records run history. It is optional.
type Ledger interface {
	StartRun(ctx context.Context, scene string) (string, error)
	RecordTiles(ctx context.Context, runID string, tiles []models.Tile) error
	FinishRun(ctx context.Context, runID, state string, accepted, rejected int, runErr error) error
}

// Runner executes runs for one configuration.
type Runner struct {
	Config   config.Config
	Imager   Imager
	Metadata MetadataLoader
	Writer   ManifestWriter
	Ledger   Ledger
	Logger   *slog.Logger
}

// Result describes a finished (or failed) run.
type Result struct {
	RunID    string
	State    State
	Reused   bool
	Skipped  []State
	Scene    *scene.Scene
	Accepted []models.Tile
	Rejected []models.Tile
	Records  []*manifest.Record
}

// NewRunner creates a Runner without a ledger.
func NewRunner(cfg config.Config, imager Imager, md MetadataLoader, writer ManifestWriter, logger *slog.Logger) *Runner {
	return &Runner{
		Config:   cfg,
		Imager:   imager,
		Metadata: md,
		Writer:   writer,
		Logger:   logger,
	}
}

// Run traverses every state once. Disabled stages are skipped; the first
// failing stage stops the run with a *StageError and nothing after it runs.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("scene", r.Config.SceneName)

	res := &Result{State: Init}
	if err := r.Config.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return res, &StageError{Stage: Init, Err: err}
	}

	ru := &run{
		Runner: r,
		cfg:    r.Config,
		layout: workspace.New(r.Config.ScratchDir(), r.Config.OutputDir()),
		logger: logger,
		result: res,
	}

	res.RunID = ru.startLedger(ctx)
	err := ru.execute(ctx)
	ru.finishLedger(ctx, err)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (ru *run) startLedger(ctx context.Context) string {
	if ru.Ledger == nil {
		return uuid.NewString()
	}
	id, err := ru.Ledger.StartRun(ctx, ru.cfg.SceneName)
	if err != nil {
		ru.logger.Warn("Failed to record run start", "error", err)
		return uuid.NewString()
	}
	ru.ledgerRun = id
	return id
}

func (ru *run) finishLedger(ctx context.Context, runErr error) {
	if ru.Ledger == nil || ru.ledgerRun == "" {
		return
	}
	// The run context may already be cancelled; the ledger write still has to land.
	ctx = context.WithoutCancel(ctx)
	res := ru.result
	if err := ru.Ledger.FinishRun(ctx, ru.ledgerRun, res.State.String(), len(res.Accepted), len(res.Rejected), runErr); err != nil {
		ru.logger.Warn("Failed to record run result", "error", err)
	}
}
