// Package ledger keeps a SQLite history of pipeline runs and the verdict of
// every tile they classified.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lehigh-university-libraries/scenetiler/internal/models"
	"github.com/lehigh-university-libraries/scenetiler/internal/stats"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Run is one row of the runs table.
type Run struct {
	ID         string
	Scene      string
	StartedAt  time.Time
	FinishedAt time.Time
	State      string
	Accepted   int
	Rejected   int
	Error      string
}

// Ledger is an open run history database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	// m is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun records a new run for scene and returns its identifier.
func (l *Ledger) StartRun(ctx context.Context, scene string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, scene, started_at) VALUES (?, ?, ?)`,
		id, scene, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	slog.Debug("Run started", "run_id", id, "scene", scene)
	return id, nil
}

// RecordTiles stores the verdicts of a run's tiles in one transaction.
// Recording a tile index twice for the same run replaces the earlier row.
func (l *Ledger) RecordTiles(ctx context.Context, runID string, tiles []models.Tile) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO tiles (run_id, tile_index, filename, land, cloud, accepted, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare tile insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tiles {
		if _, err := stmt.ExecContext(ctx, runID, t.Index, t.Filename, t.Stats.Land, t.Stats.Cloud, t.Outcome.Accepted, t.Outcome.Reason); err != nil {
			return fmt.Errorf("failed to insert tile %s: %w", t.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tiles: %w", err)
	}
	return nil
}

// FinishRun records the final state and counts of a run. A non-nil runErr
// marks the run as failed.
func (l *Ledger) FinishRun(ctx context.Context, runID, state string, accepted, rejected int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, state = ?, accepted = ?, rejected = ?, error = ?
		WHERE run_id = ?`,
		formatTime(time.Now()), state, accepted, rejected, msg, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, scene, started_at, COALESCE(finished_at, ''), state, accepted, rejected, error
		FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Scene, &started, &finished, &r.State, &r.Accepted, &r.Rejected, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Tiles returns the tiles recorded for a run in index order.
func (l *Ledger) Tiles(ctx context.Context, runID string) ([]models.Tile, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT tile_index, filename, land, cloud, accepted, reason
		FROM tiles WHERE run_id = ? ORDER BY tile_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiles: %w", err)
	}
	defer rows.Close()

	var tiles []models.Tile
	for rows.Next() {
		var (
			t           models.Tile
			land, cloud float64
		)
		if err := rows.Scan(&t.Index, &t.Filename, &land, &cloud, &t.Outcome.Accepted, &t.Outcome.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		t.Stats = stats.Statistics{Land: land, Cloud: cloud}
		tiles = append(tiles, t)
	}
	return tiles, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
