package engine

import (
	"errors"
	"math/rand/v2"
	"time"
)

var (
	ErrNoHintsLeft   = errors.New("engine: no hints left")
	ErrHintCooldown  = errors.New("engine: hint cooling down")
	ErrNothingToHint = errors.New("engine: every difference already found")
)

// Hints tracks the per-round hint budget and cooldown.
type Hints struct {
	budget    int
	cooldown  time.Duration
	remaining int
	usedMask  uint32
	until     time.Time
}

func NewHints(budget int, cooldown time.Duration) *Hints {
	h := &Hints{budget: budget, cooldown: cooldown}
	h.Reset()
	return h
}

// Reset restores the full budget for a new round.
func (h *Hints) Reset() {
	h.remaining = h.budget
	h.usedMask = 0
	h.until = time.Time{}
}

// Use picks one of the unfound difference indices uniformly at random.
// A rejected request leaves all state untouched.
func (h *Hints) Use(now time.Time, unfound []int, rng *rand.Rand) (int, error) {
	if h.remaining <= 0 {
		return -1, ErrNoHintsLeft
	}
	if now.Before(h.until) {
		return -1, ErrHintCooldown
	}
	if len(unfound) == 0 {
		return -1, ErrNothingToHint
	}
	pick := unfound[rng.IntN(len(unfound))]
	slot := h.budget - h.remaining
	h.usedMask |= 1 << uint(slot)
	h.remaining--
	h.until = now.Add(h.cooldown)
	return pick, nil
}

// Available reports whether a hint could be used at now.
func (h *Hints) Available(now time.Time) bool {
	return h.remaining > 0 && !now.Before(h.until)
}

func (h *Hints) Remaining() int   { return h.remaining }
func (h *Hints) Budget() int      { return h.budget }
func (h *Hints) UsedMask() uint32 { return h.usedMask }
