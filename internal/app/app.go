// Package app wires configuration into the collaborators a game session
// needs. The HTTP server and the desktop shell share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/MJE43/photohunt/internal/assets"
	"github.com/MJE43/photohunt/internal/config"
	"github.com/MJE43/photohunt/internal/dataset"
	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/highscore"
	"github.com/MJE43/photohunt/internal/store"
)

// Runtime holds the long-lived services behind every session.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *store.SQLiteDB // nil when the database could not be opened
	Scores *highscore.Store
	Sets   dataset.Loader
	Images *assets.Loader
}

// Open builds a Runtime. A database that cannot be opened or migrated is
// logged and the high-score table falls back to memory.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	var backend highscore.Backend
	db, err := openDB(cfg.DBPath)
	if err != nil {
		logger.Warn("database unavailable, high scores will not persist", "path", cfg.DBPath, "error", err)
	} else {
		rt.DB = db
		backend = db
	}
	rt.Scores = highscore.Open(ctx, highscore.Options{
		GameID:   cfg.Game.GameID,
		Capacity: cfg.Game.HighScoreCapacity,
		Backend:  backend,
		Logger:   logger,
	})

	if cfg.DatasetURL != "" {
		rt.Sets = dataset.NewHTTPLoader(dataset.HTTPConfig{URL: cfg.DatasetURL, Logger: logger})
	} else {
		rt.Sets = dataset.FileLoader{Path: cfg.DatasetPath}
	}
	rt.Images = assets.NewLoader(cfg.ImageRoot, cfg.ImageBaseURL, cfg.Game.ImageTimeout, logger)
	return rt, nil
}

func openDB(path string) (*store.SQLiteDB, error) {
	db, err := store.NewSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return db, nil
}

// Deps returns session dependencies that emit to emitter.
func (rt *Runtime) Deps(emitter game.Emitter) game.Deps {
	deps := game.Deps{
		Sets:    rt.Sets,
		Images:  rt.Images,
		Scores:  rt.Scores,
		Emitter: emitter,
		Logger:  rt.Logger,
	}
	if rt.DB != nil {
		deps.Recorder = ResultRecorder{DB: rt.DB, GameID: rt.Config.Game.GameID}
	}
	return deps
}

// Close releases the database.
func (rt *Runtime) Close() error {
	if rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}

// ResultRecorder stores finished games in the results table.
type ResultRecorder struct {
	DB     *store.SQLiteDB
	GameID string
}

func (r ResultRecorder) RecordResult(ctx context.Context, res game.Result) error {
	return r.DB.RecordResult(ctx, store.Result{
		GameID:        r.GameID,
		Score:         res.Score,
		RoundsCleared: res.RoundsCleared,
		Outcome:       string(res.Outcome),
		FinishedAt:    res.FinishedAt,
	})
}
