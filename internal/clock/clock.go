// Package clock abstracts wall-clock scheduling so game timers can run against
// real time in production and against a manually advanced clock in tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
// Stop does not wait for a callback that is already running, and a periodic
// callback may still fire once after Stop returns. Callers must guard state.
type Timer interface {
	Stop()
}

// Clock schedules one-shot and periodic callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return stdTimer{time.AfterFunc(d, f)}
}

type stdTimer struct{ t *time.Timer }

func (s stdTimer) Stop() { s.t.Stop() }

func (realClock) Every(d time.Duration, f func()) Timer {
	t := &ticker{quit: make(chan struct{})}
	tk := time.NewTicker(d)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-tk.C:
				f()
			}
		}
	}()
	return t
}

type ticker struct {
	once sync.Once
	quit chan struct{}
}

func (t *ticker) Stop() {
	t.once.Do(func() { close(t.quit) })
}
