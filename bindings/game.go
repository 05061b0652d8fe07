// Package bindings exposes a single Photo Hunt session to the desktop
// frontend through Wails.
package bindings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/photohunt/internal/app"
	"github.com/MJE43/photohunt/internal/config"
	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/highscore"
	"github.com/MJE43/photohunt/internal/scripting"
	"github.com/MJE43/photohunt/internal/store"
)

// ErrNotReady is returned by every call made before Startup succeeded.
var ErrNotReady = errors.New("game is not ready")

// GameModule is the Wails-bound struct driving the desktop game.
type GameModule struct {
	cfg     *config.Config
	logger  *slog.Logger
	emitter *wailsEmitter

	mu       sync.RWMutex
	ctx      context.Context
	rt       *app.Runtime
	session  *game.Session
	autoplay *scripting.Engine
}

// AutoplayState is the frontend-facing view of the autoplay engine.
type AutoplayState struct {
	scripting.Snapshot
	Logs []scripting.LogEntry `json:"logs"`
}

func New(cfg *config.Config, logger *slog.Logger) *GameModule {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameModule{cfg: cfg, logger: logger, emitter: newWailsEmitter()}
}

// Startup opens the database and dataset and creates the session. Errors
// are logged; calls made afterwards return ErrNotReady.
func (m *GameModule) Startup(ctx context.Context) {
	m.emitter.attach(ctx)
	rt, err := app.Open(ctx, m.cfg, m.logger)
	if err != nil {
		m.logger.Error("game startup failed", "error", err)
		return
	}
	m.mu.Lock()
	m.ctx = ctx
	m.rt = rt
	m.mu.Unlock()
	m.attach(rt.Deps(m.emitter))
}

func (m *GameModule) attach(deps game.Deps) {
	sess := game.NewSession(uuid.NewString(), m.cfg.Game, deps)
	m.mu.Lock()
	m.session = sess
	m.autoplay = scripting.NewEngine(m.emitter, m.logger)
	m.mu.Unlock()
}

// Shutdown stops autoplay, ends the session and closes the database.
func (m *GameModule) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sess, auto, rt := m.session, m.autoplay, m.rt
	m.session, m.autoplay, m.rt = nil, nil, nil
	m.mu.Unlock()

	if auto != nil && auto.GetState().State == scripting.StateRunning {
		_ = auto.Stop()
	}
	if sess != nil {
		sess.Close()
	}
	if rt != nil {
		if err := rt.Close(); err != nil {
			m.logger.Warn("database close failed", "error", err)
		}
	}
	m.emitter.attach(nil)
}

func (m *GameModule) current() (*game.Session, context.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, nil, ErrNotReady
	}
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return m.session, ctx, nil
}

// NewGame abandons any game in progress and starts a new one.
func (m *GameModule) NewGame() (game.Snapshot, error) {
	sess, ctx, err := m.current()
	if err != nil {
		return game.Snapshot{}, err
	}
	if err := sess.Restart(ctx); err != nil {
		return sess.Snapshot(), err
	}
	return sess.Snapshot(), nil
}

// Click reports a click at (x, y) inside the rendered image box of the
// given side ("left" or "right").
func (m *GameModule) Click(image string, x, y, boxWidth, boxHeight float64) (game.ClickResult, error) {
	sess, _, err := m.current()
	if err != nil {
		return game.ClickResult{}, err
	}
	side, err := engine.ParseSide(strings.ToLower(image))
	if err != nil {
		return game.ClickResult{}, err
	}
	return sess.Click(engine.Click{Side: side, X: x, Y: y, BoxWidth: boxWidth, BoxHeight: boxHeight})
}

// UseHint reveals one unfound difference and returns its index.
func (m *GameModule) UseHint() (int, error) {
	sess, _, err := m.current()
	if err != nil {
		return -1, err
	}
	return sess.UseHint()
}

func (m *GameModule) Pause() error {
	sess, _, err := m.current()
	if err != nil {
		return err
	}
	return sess.Pause()
}

func (m *GameModule) Resume() error {
	sess, _, err := m.current()
	if err != nil {
		return err
	}
	return sess.Resume()
}

func (m *GameModule) Quit() error {
	sess, _, err := m.current()
	if err != nil {
		return err
	}
	sess.Quit()
	return nil
}

// SubmitName records the pending high score under name and returns its rank.
func (m *GameModule) SubmitName(name string) (int, error) {
	sess, ctx, err := m.current()
	if err != nil {
		return 0, err
	}
	return sess.SubmitName(ctx, name)
}

func (m *GameModule) CancelNameEntry() error {
	sess, _, err := m.current()
	if err != nil {
		return err
	}
	return sess.CancelNameEntry()
}

func (m *GameModule) Snapshot() (game.Snapshot, error) {
	sess, _, err := m.current()
	if err != nil {
		return game.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (m *GameModule) HighScores() ([]highscore.Entry, error) {
	m.mu.RLock()
	rt := m.rt
	m.mu.RUnlock()
	if rt == nil {
		return nil, ErrNotReady
	}
	return rt.Scores.Scores(), nil
}

// RecentResults lists finished games, newest first. It returns an empty
// list when results are not being persisted.
func (m *GameModule) RecentResults(limit int) ([]store.Result, error) {
	m.mu.RLock()
	rt, ctx := m.rt, m.ctx
	m.mu.RUnlock()
	if rt == nil {
		return nil, ErrNotReady
	}
	if rt.DB == nil {
		return []store.Result{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rt.DB.RecentResults(ctx, m.cfg.Game.GameID, limit)
}

// StartAutoplay runs script against the session. intervalMs overrides the
// pause between play() calls when positive.
func (m *GameModule) StartAutoplay(script string, intervalMs int) (AutoplayState, error) {
	sess, _, err := m.current()
	if err != nil {
		return AutoplayState{}, err
	}
	m.mu.Lock()
	auto := m.autoplay
	if auto.GetState().State == scripting.StateRunning {
		m.mu.Unlock()
		return AutoplayState{}, fmt.Errorf("autoplay is already running")
	}
	auto = scripting.NewEngine(m.emitter, m.logger)
	if intervalMs > 0 {
		auto.SetInterval(time.Duration(intervalMs) * time.Millisecond)
	}
	m.autoplay = auto
	m.mu.Unlock()

	if err := auto.Start(script, sess); err != nil {
		return m.autoplayState(auto), err
	}
	return m.autoplayState(auto), nil
}

func (m *GameModule) StopAutoplay() (AutoplayState, error) {
	auto, err := m.engine()
	if err != nil {
		return AutoplayState{}, err
	}
	if err := auto.Stop(); err != nil {
		return m.autoplayState(auto), err
	}
	return m.autoplayState(auto), nil
}

func (m *GameModule) GetAutoplayState() (AutoplayState, error) {
	auto, err := m.engine()
	if err != nil {
		return AutoplayState{}, err
	}
	return m.autoplayState(auto), nil
}

func (m *GameModule) engine() (*scripting.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.autoplay == nil {
		return nil, ErrNotReady
	}
	return m.autoplay, nil
}

func (m *GameModule) autoplayState(auto *scripting.Engine) AutoplayState {
	logs := auto.GetLogs()
	if logs == nil {
		logs = []scripting.LogEntry{}
	}
	return AutoplayState{Snapshot: auto.GetState(), Logs: logs}
}
