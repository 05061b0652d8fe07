package bindings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MJE43/photohunt/internal/assets"
	"github.com/MJE43/photohunt/internal/clock"
	"github.com/MJE43/photohunt/internal/config"
	"github.com/MJE43/photohunt/internal/dataset"
	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/highscore"
	"github.com/MJE43/photohunt/internal/scripting"
)

type squareImages struct{}

func (squareImages) LoadPair(_ context.Context, _ dataset.Set) (assets.Pair, error) {
	sz := engine.Size{Width: 1000, Height: 1000}
	return assets.Pair{Left: sz, Right: sz}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) emit(_ context.Context, name string, _ ...interface{}) {
	r.mu.Lock()
	r.events = append(r.events, name)
	r.mu.Unlock()
}

func (r *recorder) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == name {
			return true
		}
	}
	return false
}

func newTestModule(t *testing.T) (*GameModule, *recorder) {
	t.Helper()
	cfg := &config.Config{Game: engine.DefaultSettings()}
	m := New(cfg, nil)
	rec := &recorder{}
	m.emitter.emit = rec.emit
	m.emitter.attach(context.Background())

	sets := []dataset.Set{{
		ID:         1,
		Image1:     "images/set1/a.png",
		Image2:     "images/set1/b.png",
		Difficulty: dataset.Easy,
		Differences: []dataset.Difference{
			{X: 100, Y: 100, Width: 50, Height: 50},
			{X: 600, Y: 600, Width: 50, Height: 50},
		},
	}}
	m.attach(game.Deps{
		Sets:    dataset.Static{Collection: &dataset.Collection{Sets: sets}},
		Images:  squareImages{},
		Scores:  highscore.Open(context.Background(), highscore.Options{GameID: "photohunt", Capacity: 8, Backend: highscore.NewMemoryBackend()}),
		Emitter: m.emitter,
		Clock:   clock.NewManual(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
	})
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m, rec
}

func TestCallsBeforeStartup(t *testing.T) {
	m := New(&config.Config{Game: engine.DefaultSettings()}, nil)
	if _, err := m.NewGame(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if _, err := m.Click("left", 1, 1, 10, 10); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if _, err := m.HighScores(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if _, err := m.GetAutoplayState(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestPlayRound(t *testing.T) {
	m, rec := newTestModule(t)

	snap, err := m.NewGame()
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	if snap.State != game.StateActive || snap.Total != 2 {
		t.Fatalf("expected an active round with 2 differences, got %+v", snap)
	}

	if _, err := m.Click("middle", 1, 1, 10, 10); err == nil {
		t.Error("expected an error for an unknown side")
	}

	res, err := m.Click("LEFT", 125, 125, 1000, 1000)
	if err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if !res.Hit || res.Index != 0 || res.Points <= 0 {
		t.Errorf("expected a scoring hit on difference 0, got %+v", res)
	}
	if !rec.has("game:round_start") || !rec.has("game:difference_found") {
		t.Errorf("expected round_start and difference_found events, got %v", rec.events)
	}

	if err := m.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if snap, _ := m.Snapshot(); snap.State != game.StatePaused {
		t.Errorf("expected paused, got %s", snap.State)
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	if err := m.Quit(); err != nil {
		t.Fatalf("Quit failed: %v", err)
	}
	if snap, _ := m.Snapshot(); snap.State != game.StateIdle {
		t.Errorf("expected idle after quit, got %s", snap.State)
	}
	if !rec.has("game:return_to_menu") {
		t.Error("expected a return_to_menu event")
	}
}

func TestAutoplayBinding(t *testing.T) {
	m, rec := newTestModule(t)
	if _, err := m.NewGame(); err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}

	script := `function play() {
		if (remaining.length === 0) return null;
		var d = remaining[0];
		return {type: "click", image: "right", x: d.right.x + d.right.width / 2, y: d.right.y + d.right.height / 2};
	}`
	state, err := m.StartAutoplay(script, 1)
	if err != nil {
		t.Fatalf("StartAutoplay failed: %v", err)
	}
	if state.State != scripting.StateRunning {
		t.Errorf("expected running, got %s", state.State)
	}
	if _, err := m.StartAutoplay(script, 1); err == nil {
		t.Error("expected an error starting autoplay twice")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, _ := m.Snapshot()
		if snap.FoundCount == snap.Total || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap, _ := m.Snapshot(); snap.FoundCount != 2 {
		t.Errorf("expected autoplay to find both differences, found %d", snap.FoundCount)
	}

	if st, _ := m.GetAutoplayState(); st.State == scripting.StateRunning {
		if _, err := m.StopAutoplay(); err != nil {
			t.Fatalf("StopAutoplay failed: %v", err)
		}
	}
	if !rec.has(autoplayStateEvent) {
		t.Error("expected autoplay state events")
	}
}

func TestEmitterSilentWithoutContext(t *testing.T) {
	e := newWailsEmitter()
	called := false
	e.emit = func(context.Context, string, ...interface{}) { called = true }
	e.Emit(game.Signal{Type: game.SignalTick})
	if called {
		t.Error("expected no event without a runtime context")
	}
	e.attach(context.Background())
	e.Emit(game.Signal{Type: game.SignalTick})
	if !called {
		t.Error("expected an event once attached")
	}
}
