package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/scenetiler/internal/config"
	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/grid"
	"github.com/lehigh-university-libraries/scenetiler/internal/manifest"
	"github.com/lehigh-university-libraries/scenetiler/internal/models"
	"github.com/lehigh-university-libraries/scenetiler/internal/report"
	"github.com/lehigh-university-libraries/scenetiler/internal/rules"
	"github.com/lehigh-university-libraries/scenetiler/internal/scene"
	"github.com/lehigh-university-libraries/scenetiler/internal/stats"
	"github.com/lehigh-university-libraries/scenetiler/internal/workspace"
)

// run holds the mutable state of one traversal.
type run struct {
	*Runner
	cfg    config.Config
	layout workspace.Layout
	logger *slog.Logger
	result *Result

	ledgerRun  string
	reused     bool
	classified bool
	scene      *scene.Scene
}

type stage struct {
	state   State
	enabled bool
	exec    func(ctx context.Context) error
}

func (ru *run) stages() []stage {
	st := ru.cfg.Stages
	return []stage{
		{ScratchReady, st.Assemble || st.Slice || st.GenerateMask || ru.cfg.Rebuild, ru.prepareScratch},
		{ChannelsClamped, st.Assemble || st.GenerateMask, ru.clampChannels},
		{Assembled, st.Assemble, ru.assemble},
		{Sliced, st.Slice, ru.slice},
		{MasksGenerated, st.GenerateMask, ru.generateMasks},
		{Classified, st.Reject, ru.classify},
		{Visualized, st.Visualize, ru.visualize},
		{ManifestWritten, st.Manifest, ru.writeManifest},
		{Annotated, st.Annotate, ru.annotate},
	}
}

func (ru *run) execute(ctx context.Context) error {
	for _, s := range ru.stages() {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: s.state, Err: err}
		}

		if !s.enabled {
			ru.logger.Info("Skipping stage", "stage", s.state.String())
			ru.result.Skipped = append(ru.result.Skipped, s.state)
			ru.result.State = s.state
			continue
		}

		ru.logger.Info("Starting stage", "stage", s.state.String())
		if err := s.exec(ctx); err != nil {
			ru.logger.Error("Stage failed", "stage", s.state.String(), "error", err)
			return &StageError{Stage: s.state, Err: err}
		}
		ru.result.State = s.state
	}

	if ru.cfg.TempScratch {
		if err := ru.layout.RemoveScratch(); err != nil {
			return &StageError{Stage: Done, Err: err}
		}
		ru.logger.Debug("Removed temporary scratch", "path", ru.layout.Scratch)
	}

	ru.result.State = Done
	ru.logger.Info("Run complete",
		"accepted", len(ru.result.Accepted),
		"rejected", len(ru.result.Rejected),
		"records", len(ru.result.Records))
	return nil
}

func (ru *run) prepareScratch(ctx context.Context) error {
	reused, err := ru.layout.PrepareScratch(ru.cfg.Rebuild)
	if err != nil {
		return err
	}
	ru.reused = reused
	ru.result.Reused = reused
	if reused {
		ru.logger.Info("Reusing existing scratch", "path", ru.layout.Scratch)
	}
	return nil
}

// reuse reports whether a reused scratch already holds an artifact.
func (ru *run) reuse(what string, present bool) bool {
	if ru.reused && present {
		ru.logger.Info("Reusing artifact", "artifact", what)
		return true
	}
	return false
}

// cutAtGrid reports whether dir holds tiles stamped with the configured grid
// size. Tiles cut at another size, or never stamped, are stale.
func (ru *run) cutAtGrid(dir string) bool {
	if !workspace.HasTiles(dir, config.DefaultTileExt) {
		return false
	}
	size, ok, err := workspace.ReadGridStamp(dir)
	if err == nil && ok && size == ru.cfg.GridSize {
		return true
	}
	ru.logger.Warn("Scratch tiles do not match the grid size; regenerating",
		"dir", dir, "stamped", size, "grid_size", ru.cfg.GridSize)
	return false
}

// checkGrid fails when dir carries a stamp for another grid size. Unstamped
// directories are trusted.
func (ru *run) checkGrid(dir string) error {
	size, ok, err := workspace.ReadGridStamp(dir)
	if err != nil {
		return err
	}
	if ok && size != ru.cfg.GridSize {
		return fmt.Errorf("%w: tiles in %s were cut at grid size %d, not %d; regenerate them or rebuild scratch",
			errs.ErrScratchState, dir, size, ru.cfg.GridSize)
	}
	return nil
}

func (ru *run) neededBands() []string {
	b := ru.cfg.Bands
	var bands []string
	if ru.cfg.Stages.Assemble {
		bands = append(bands, b.Red, b.Green, b.Blue)
	}
	if ru.cfg.Stages.GenerateMask {
		if !ru.cfg.Stages.Assemble {
			bands = append(bands, b.Blue)
		}
		bands = append(bands, b.Infrared)
	}
	return bands
}

func (ru *run) clampChannels(ctx context.Context) error {
	bands := ru.neededBands()

	present := true
	for _, band := range bands {
		if !workspace.Exists(ru.layout.ClampedBand(band)) {
			present = false
			break
		}
	}
	if ru.reuse("clamped bands", present) {
		return nil
	}

	for _, band := range bands {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := ru.cfg.BandPath(band)
		ru.logger.Debug("Clamping band", "band", band, "ceiling", ru.cfg.ReflectanceCeiling)
		if err := ru.Imager.Clamp(src, ru.layout.ClampedBand(band), ru.cfg.ReflectanceCeiling); err != nil {
			return fmt.Errorf("failed to clamp %s: %w", band, err)
		}
	}
	return nil
}

func (ru *run) assemble(ctx context.Context) error {
	if ru.reuse("composite", workspace.Exists(ru.layout.Composite())) {
		return nil
	}

	b := ru.cfg.Bands
	red, green, blue := ru.layout.ClampedBand(b.Red), ru.layout.ClampedBand(b.Green), ru.layout.ClampedBand(b.Blue)
	if err := ru.Imager.Assemble(red, green, blue, ru.layout.Composite(), ru.cfg.GreenBoost); err != nil {
		return fmt.Errorf("failed to assemble composite: %w", err)
	}
	return nil
}

func (ru *run) slice(ctx context.Context) error {
	dir := ru.layout.TileDir()
	if ru.reuse("tiles", ru.cutAtGrid(dir)) {
		return nil
	}
	if !workspace.Exists(ru.layout.Composite()) {
		return fmt.Errorf("%w: composite %s is missing", errs.ErrScratchState, ru.layout.Composite())
	}
	if err := workspace.ResetDir(dir); err != nil {
		return err
	}

	n, err := ru.Imager.Slice(ru.layout.Composite(), dir, ru.cfg.GridSize)
	if err != nil {
		return fmt.Errorf("failed to slice composite: %w", err)
	}
	if err := workspace.WriteGridStamp(dir, ru.cfg.GridSize); err != nil {
		return err
	}
	ru.logger.Info("Sliced composite", "tiles", n, "grid_size", ru.cfg.GridSize)
	return nil
}

func (ru *run) generateMasks(ctx context.Context) error {
	dir := ru.layout.MaskDir()
	if ru.reuse("masks", ru.cutAtGrid(dir)) {
		return nil
	}

	infrared := ru.layout.ClampedBand(ru.cfg.Bands.Infrared)
	blue := ru.layout.ClampedBand(ru.cfg.Bands.Blue)
	for _, p := range []string{infrared, blue} {
		if !workspace.Exists(p) {
			return fmt.Errorf("%w: clamped band %s is missing", errs.ErrScratchState, p)
		}
	}

	if err := workspace.ResetDir(dir); err != nil {
		return err
	}

	n, err := ru.Imager.GenerateMasks(infrared, blue, dir, ru.cfg.GridSize, ru.cfg.LandSensitivity, ru.cfg.CloudSensitivity)
	if err != nil {
		return fmt.Errorf("failed to generate masks: %w", err)
	}
	if err := workspace.WriteGridStamp(dir, ru.cfg.GridSize); err != nil {
		return err
	}
	ru.logger.Info("Generated masks", "tiles", n)
	return nil
}

func (ru *run) classify(ctx context.Context) error {
	candidates, err := workspace.ListTiles(ru.layout.TileDir(), config.DefaultTileExt)
	if err != nil {
		return err
	}
	if err := ru.checkGrid(ru.layout.TileDir()); err != nil {
		return err
	}

	accepted, rejected, err := ru.partition(ctx, candidates)
	if err != nil {
		return err
	}

	if err := ru.layout.ResetOutput(); err != nil {
		return err
	}
	for _, t := range accepted {
		if err := workspace.CopyFile(filepath.Join(ru.layout.TileDir(), t.Filename), filepath.Join(ru.layout.AcceptedDir(), t.Filename)); err != nil {
			return err
		}
	}
	for _, t := range rejected {
		if err := workspace.CopyFile(filepath.Join(ru.layout.TileDir(), t.Filename), filepath.Join(ru.layout.RejectedDir(), t.Filename)); err != nil {
			return err
		}
	}

	ru.classified = true
	ru.result.Accepted = accepted
	ru.result.Rejected = rejected
	ru.logger.Info("Classified tiles", "accepted", len(accepted), "rejected", len(rejected))

	if ru.Ledger != nil && ru.ledgerRun != "" {
		all := append(append([]models.Tile{}, accepted...), rejected...)
		if err := ru.Ledger.RecordTiles(ctx, ru.ledgerRun, all); err != nil {
			ru.logger.Warn("Failed to record tiles", "error", err)
		}
	}
	return nil
}

// partition runs the land pass over every tile and the cloud pass over the
// survivors. Rejects of both passes are concatenated in pass order. With no
// rule enabled every tile is accepted without reading its mask.
func (ru *run) partition(ctx context.Context, candidates []string) (accepted, rejected []models.Tile, err error) {
	var passes [][]rules.Rule
	if ru.cfg.Stages.RemoveLand {
		passes = append(passes, []rules.Rule{rules.LandRule{Threshold: ru.cfg.LandThreshold, Sensitivity: ru.cfg.LandSensitivity}})
	}
	if ru.cfg.Stages.RemoveClouds {
		passes = append(passes, []rules.Rule{rules.CloudRule{Threshold: ru.cfg.CloudThreshold, Sensitivity: ru.cfg.CloudSensitivity}})
	}

	if len(passes) == 0 {
		accepted = make([]models.Tile, 0, len(candidates))
		for _, name := range candidates {
			index, err := grid.ParseTileIndex(name)
			if err != nil {
				return nil, nil, err
			}
			accepted = append(accepted, models.Tile{Filename: name, Index: index, Outcome: models.Accept()})
		}
		return accepted, nil, nil
	}

	if !workspace.HasTiles(ru.layout.MaskDir(), config.DefaultTileExt) {
		return nil, nil, fmt.Errorf("%w: no mask tiles in %s", errs.ErrScratchState, ru.layout.MaskDir())
	}
	if err := ru.checkGrid(ru.layout.MaskDir()); err != nil {
		return nil, nil, err
	}

	stater := stats.NewAdapter(ru.Imager)
	for _, pass := range passes {
		kept, dropped, err := rules.ApplyRulesParallel(ctx, candidates, ru.layout.MaskDir(), pass, stater, ru.logger, ru.cfg.Workers)
		if err != nil {
			return nil, nil, err
		}
		rejected = append(rejected, dropped...)
		accepted = kept

		candidates = make([]string, len(kept))
		for i, t := range kept {
			candidates[i] = t.Filename
		}
	}
	return accepted, rejected, nil
}

// acceptedTiles returns this run's accepted tiles, or the tiles already in the
// accepted directory when classification did not run.
func (ru *run) acceptedTiles() ([]models.Tile, error) {
	if ru.classified {
		return ru.result.Accepted, nil
	}
	if err := ru.checkGrid(ru.layout.TileDir()); err != nil {
		return nil, err
	}
	names, err := workspace.ListTiles(ru.layout.AcceptedDir(), config.DefaultTileExt)
	if err != nil {
		return nil, err
	}
	tiles := make([]models.Tile, 0, len(names))
	for _, name := range names {
		index, err := grid.ParseTileIndex(name)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, models.Tile{Filename: name, Index: index, Outcome: models.Accept()})
	}
	return tiles, nil
}

// loadScene reads the scene's dimensions and metadata once per run.
func (ru *run) loadScene() (*scene.Scene, error) {
	if ru.scene != nil {
		return ru.scene, nil
	}

	width, height, err := ru.Imager.Dimensions(ru.cfg.BandPath(ru.cfg.Bands.Red))
	if err != nil {
		return nil, fmt.Errorf("failed to read scene dimensions: %w", err)
	}
	if grid.ExactFit(width, ru.cfg.GridSize) {
		ru.logger.Warn("Scene width is an exact multiple of the grid size; the last addressed column holds no tiles",
			"width", width, "grid_size", ru.cfg.GridSize)
	}

	md, err := ru.Metadata.Load(ru.cfg.SceneDir)
	if err != nil {
		return nil, err
	}

	sc, err := scene.New(ru.cfg.SceneName, ru.cfg.SceneDir, width, height, ru.cfg.GridSize, md)
	if err != nil {
		return nil, err
	}
	ru.scene = &sc
	ru.result.Scene = &sc
	return ru.scene, nil
}

func (ru *run) visualize(ctx context.Context) error {
	if !ru.classified {
		ru.logger.Info("No classified tiles to visualize")
		return nil
	}
	sc, err := ru.loadScene()
	if err != nil {
		return err
	}

	rows, err := report.TileRows(sc.Width, sc.GridSize, ru.result.Accepted, ru.result.Rejected)
	if err != nil {
		return err
	}
	if err := report.PlotVerdicts(ru.layout.OutputFile(VerdictsFile), sc.Name, rows); err != nil {
		return err
	}
	counts := report.ReasonCounts(ru.result.Accepted, ru.result.Rejected)
	return report.ReasonsChart(ru.layout.OutputFile(ReasonsFile), sc.Name, counts)
}

func (ru *run) writeManifest(ctx context.Context) error {
	sc, err := ru.loadScene()
	if err != nil {
		return err
	}
	accepted, err := ru.acceptedTiles()
	if err != nil {
		return err
	}

	builder := manifest.NewBuilder(ru.Imager, ru.layout.AcceptedDir())
	records := make([]*manifest.Record, 0, len(accepted))
	for _, t := range accepted {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := builder.Build(t.Filename, t.Outcome.Reason, *sc)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	if err := ru.Writer.WriteManifest(ru.layout.OutputFile(ManifestFile), records); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	ru.result.Records = records
	ru.logger.Info("Wrote manifest", "records", len(records), "path", ru.layout.OutputFile(ManifestFile))

	if !ru.classified {
		return nil
	}
	return ru.writeReports(sc)
}

func (ru *run) writeReports(sc *scene.Scene) error {
	if err := ru.Writer.WriteRejects(ru.layout.OutputFile(RejectsFile), ru.result.Rejected); err != nil {
		return fmt.Errorf("failed to write rejects: %w", err)
	}

	rows, err := report.TileRows(sc.Width, sc.GridSize, ru.result.Accepted, ru.result.Rejected)
	if err != nil {
		return err
	}
	if err := report.WriteTiles(ru.layout.OutputFile(TilesFile), rows); err != nil {
		return err
	}

	summary := report.NewSummary(sc.Name, sc.GridSize, report.Thresholds{
		Land:             ru.cfg.LandThreshold,
		LandSensitivity:  ru.cfg.LandSensitivity,
		Cloud:            ru.cfg.CloudThreshold,
		CloudSensitivity: ru.cfg.CloudSensitivity,
	}, ru.result.Accepted, ru.result.Rejected)
	summary.RunID = ru.result.RunID
	return report.SaveSummary(ru.layout.OutputFile(SummaryFile), summary)
}

func (ru *run) annotate(ctx context.Context) error {
	accepted, err := ru.acceptedTiles()
	if err != nil {
		return err
	}

	if err := workspace.ResetDir(ru.layout.AnnotatedDir()); err != nil {
		return err
	}

	prefix := strings.ToLower(ru.cfg.Label) + "_"
	for _, t := range accepted {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(ru.layout.AcceptedDir(), t.Filename)
		dst := filepath.Join(ru.layout.AnnotatedDir(), prefix+t.Filename)
		if err := ru.Imager.Annotate(src, dst, ru.cfg.Label); err != nil {
			return fmt.Errorf("failed to annotate %s: %w", t.Filename, err)
		}
	}
	ru.logger.Info("Annotated tiles", "count", len(accepted), "label", ru.cfg.Label)
	return nil
}
