// Package events fans game signals out to live subscribers.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MJE43/photohunt/internal/game"
)

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 256

type subscriber struct {
	session string
	ch      chan game.Signal
	dropped atomic.Int64
}

// Hub is a game.Emitter that forwards signals to subscribers of a session.
// A slow subscriber loses signals rather than stalling the game.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), buffer: buffer, logger: logger}
}

// Subscribe returns a channel of signals for session, or for every session
// when session is empty. cancel closes the channel.
func (h *Hub) Subscribe(session string) (<-chan game.Signal, func()) {
	sub := &subscriber{session: session, ch: make(chan game.Signal, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Emit implements game.Emitter.
func (h *Hub) Emit(sig game.Signal) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.session != "" && sub.session != sig.Session {
			continue
		}
		select {
		case sub.ch <- sig:
		default:
			if n := sub.dropped.Add(1); n == 1 || n%100 == 0 {
				h.logger.Warn("subscriber lagging, signal dropped", "session", sig.Session, "dropped", n)
			}
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Fanout forwards every signal to each emitter in turn.
type Fanout []game.Emitter

func (f Fanout) Emit(sig game.Signal) {
	for _, e := range f {
		if e != nil {
			e.Emit(sig)
		}
	}
}
