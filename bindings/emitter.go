package bindings

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/scripting"
)

// Event names pushed to the frontend. Game signals go out as
// "game:<signal type>", e.g. "game:difference_found".
const (
	gameEventPrefix    = "game:"
	autoplayStateEvent = "autoplay:state"
)

// wailsEmitter bridges session signals and autoplay state to Wails runtime
// events. Nothing is sent until the runtime context is attached.
type wailsEmitter struct {
	mu   sync.RWMutex
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})
}

func newWailsEmitter() *wailsEmitter {
	return &wailsEmitter{emit: runtime.EventsEmit}
}

func (e *wailsEmitter) attach(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
}

func (e *wailsEmitter) send(name string, data interface{}) {
	e.mu.RLock()
	ctx := e.ctx
	e.mu.RUnlock()
	if ctx == nil {
		return
	}
	e.emit(ctx, name, data)
}

func (e *wailsEmitter) Emit(sig game.Signal) {
	e.send(gameEventPrefix+string(sig.Type), sig)
}

func (e *wailsEmitter) EmitAutoplayState(snap scripting.Snapshot) {
	e.send(autoplayStateEvent, snap)
}
