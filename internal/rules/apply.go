package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/grid"
	"github.com/lehigh-university-libraries/scenetiler/internal/models"
	"github.com/lehigh-university-libraries/scenetiler/internal/stats"
	"github.com/lehigh-university-libraries/scenetiler/internal/storage"
)

// Stater computes the statistics tuple for one tile file.
type Stater interface {
	Statistics(path string) (stats.Statistics, error)
}

// ApplyRules classifies candidates read from dir, one at a time, in input order.
// Accepted and rejected tiles are returned as a stable partition of the input.
func ApplyRules(ctx context.Context, candidates []string, dir string, rules []Rule, stater Stater, logger *slog.Logger) (accepted, rejected []models.Tile, err error) {
	logExamining(logger, candidates, dir)

	accepted = make([]models.Tile, 0, len(candidates))
	for _, filename := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		tile, err := classifyFile(filename, dir, rules, stater)
		if err != nil {
			return nil, nil, err
		}

		if tile.Outcome.Accepted {
			accepted = append(accepted, tile)
		} else {
			rejected = append(rejected, tile)
		}
	}

	return accepted, rejected, nil
}

// ApplyRulesParallel is ApplyRules with statistics computed by up to workers
// goroutines. Results are re-sorted by tile index, so the partition matches the
// sequential form for candidates given in index order.
func ApplyRulesParallel(ctx context.Context, candidates []string, dir string, rules []Rule, stater Stater, logger *slog.Logger, workers int) (accepted, rejected []models.Tile, err error) {
	if workers <= 1 {
		return ApplyRules(ctx, candidates, dir, rules, stater, logger)
	}

	logExamining(logger, candidates, dir)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := storage.New()
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	semaphore := make(chan struct{}, workers)

	for _, filename := range candidates {
		wg.Add(1)
		go func(filename string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			if ctx.Err() != nil {
				return
			}

			tile, err := classifyFile(filename, dir, rules, stater)
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			store.Set(tile)
		}(filename)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if store.Len() != len(candidates) {
		return nil, nil, fmt.Errorf("%w: %d candidates share %d tile indexes in %s", errs.ErrScratchState, len(candidates), store.Len(), dir)
	}

	accepted = make([]models.Tile, 0, len(candidates))
	for _, tile := range store.Sorted() {
		if tile.Outcome.Accepted {
			accepted = append(accepted, tile)
		} else {
			rejected = append(rejected, tile)
		}
	}
	return accepted, rejected, nil
}

func classifyFile(filename, dir string, rules []Rule, stater Stater) (models.Tile, error) {
	index, err := grid.ParseTileIndex(filename)
	if err != nil {
		return models.Tile{}, err
	}

	s, err := stater.Statistics(filepath.Join(dir, filename))
	if err != nil {
		return models.Tile{}, fmt.Errorf("statistics for %s: %w", filename, err)
	}

	return models.Tile{
		Filename: filename,
		Index:    index,
		Stats:    s,
		Outcome:  Classify(s, rules),
	}, nil
}

func logExamining(logger *slog.Logger, candidates []string, dir string) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Examining tiles", "count", len(candidates), "subdirectory", filepath.Base(dir))
}
