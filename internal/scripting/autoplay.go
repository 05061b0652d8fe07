// Package scripting drives a game session from a sandboxed JavaScript
// play() function. It backs attract mode and soak tests.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/game"
)

// State is the autoplay engine's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// DefaultInterval is the pause between play() calls when the script does
// not call sleep().
const DefaultInterval = 250 * time.Millisecond

// Player is the slice of a game session autoplay needs. *game.Session
// satisfies it.
type Player interface {
	Snapshot() game.Snapshot
	Unfound() []game.FoundDifference
	Click(c engine.Click) (game.ClickResult, error)
	UseHint() (int, error)
}

// EventEmitter receives engine state changes.
type EventEmitter interface {
	EmitAutoplayState(snap Snapshot)
}

// Stats counts what the script did.
type Stats struct {
	Calls    int `json:"calls"`
	Clicks   int `json:"clicks"`
	Hits     int `json:"hits"`
	Misses   int `json:"misses"`
	Hints    int `json:"hints"`
	Rejected int `json:"rejected"`
}

// Snapshot is a serializable view of the engine.
type Snapshot struct {
	State   State  `json:"state"`
	Error   string `json:"error,omitempty"`
	Session string `json:"session,omitempty"`
	Stats   Stats  `json:"stats"`
}

// Engine runs one script against one player at a time.
type Engine struct {
	mu      sync.RWMutex
	state   State
	err     error
	cancel  context.CancelFunc
	done    chan struct{}
	session string
	stats   Stats

	vm       *VM
	interval time.Duration
	emitter  EventEmitter
	logger   *slog.Logger
}

func NewEngine(emitter EventEmitter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		state:    StateIdle,
		interval: DefaultInterval,
		emitter:  emitter,
		logger:   logger,
	}
}

// SetInterval changes the default pause between play() calls. Must be
// called before Start.
func (e *Engine) SetInterval(d time.Duration) {
	if d > 0 {
		e.interval = d
	}
}

// Start executes script and begins calling play() against p in the
// background. The loop ends when the game leaves play, the script calls
// stop(), or Stop is called.
func (e *Engine) Start(script string, p Player) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("autoplay is already running")
	}
	vm := NewVM()
	e.vm = vm
	e.state = StateRunning
	e.err = nil
	e.stats = Stats{}
	e.session = p.Snapshot().ID
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	if err := vm.Execute(script); err != nil {
		cancel()
		e.setError(err)
		close(done)
		return err
	}
	if !vm.HasPlay() {
		cancel()
		err := fmt.Errorf("script must define a play() function")
		e.setError(err)
		close(done)
		return err
	}

	e.emitState()
	go e.loop(ctx, vm, p, done)
	return nil
}

// Stop ends the loop and waits for it to exit.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("autoplay is not running")
	}
	e.cancel()
	done := e.done
	e.mu.Unlock()

	<-done
	return nil
}

// Wait blocks until the current run has ended or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) GetState() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

func (e *Engine) GetLogs() []LogEntry {
	e.mu.RLock()
	vm := e.vm
	e.mu.RUnlock()
	if vm == nil {
		return nil
	}
	return vm.GetLogs()
}

func (e *Engine) loop(ctx context.Context, vm *VM, p Player, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			e.setError(fmt.Errorf("script panic: %v", r))
		}
	}()

	for {
		if ctx.Err() != nil || vm.IsStopRequested() {
			e.finish()
			return
		}

		snap := p.Snapshot()
		switch snap.State {
		case game.StateIdle, game.StateHighScoreCapture:
			e.finish()
			return
		case game.StateActive:
			if err := e.step(vm, p, snap); err != nil {
				e.setError(err)
				return
			}
		}

		wait := e.interval
		if d := vm.TakeSleep(); d > 0 {
			wait = d
		}
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
}

func (e *Engine) step(vm *VM, p Player, snap game.Snapshot) error {
	view := View{
		Round:          snap.Round,
		Score:          snap.Score,
		TimeRemaining:  snap.Remaining,
		SearchValue:    snap.Search,
		HintsRemaining: snap.HintsRemaining,
		HintReady:      snap.HintReady,
		Found:          snap.FoundCount,
		Total:          snap.Total,
		Remaining:      p.Unfound(),
	}
	val, err := vm.CallPlay(view)
	if err != nil {
		return err
	}
	action, err := parseAction(val)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.stats.Calls++
	e.mu.Unlock()

	switch action.Kind {
	case ActionClick:
		res, err := p.Click(action.Click)
		if errors.Is(err, game.ErrNotAccepting) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("click failed: %w", err)
		}
		e.mu.Lock()
		e.stats.Clicks++
		if res.Hit {
			e.stats.Hits++
		} else {
			e.stats.Misses++
		}
		e.mu.Unlock()
	case ActionHint:
		_, err := p.UseHint()
		switch {
		case err == nil:
			e.mu.Lock()
			e.stats.Hints++
			e.mu.Unlock()
		case errors.Is(err, engine.ErrNoHintsLeft), errors.Is(err, engine.ErrHintCooldown), errors.Is(err, engine.ErrNothingToHint):
			e.mu.Lock()
			e.stats.Rejected++
			e.mu.Unlock()
		case errors.Is(err, game.ErrNotAccepting):
		default:
			return fmt.Errorf("hint failed: %w", err)
		}
	}
	return nil
}

func (e *Engine) finish() {
	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StateStopped
	}
	stats, session := e.stats, e.session
	e.mu.Unlock()
	e.logger.Info("autoplay finished", "session", session, "clicks", stats.Clicks, "hits", stats.Hits)
	e.emitState()
}

func (e *Engine) setError(err error) {
	e.mu.Lock()
	e.state = StateError
	e.err = err
	session := e.session
	e.mu.Unlock()
	e.logger.Warn("autoplay failed", "session", session, "error", err)
	e.emitState()
}

func (e *Engine) snapshot() Snapshot {
	snap := Snapshot{State: e.state, Session: e.session, Stats: e.stats}
	if e.err != nil {
		snap.Error = e.err.Error()
	}
	return snap
}

func (e *Engine) emitState() {
	if e.emitter == nil {
		return
	}
	e.mu.RLock()
	snap := e.snapshot()
	e.mu.RUnlock()
	e.emitter.EmitAutoplayState(snap)
}
