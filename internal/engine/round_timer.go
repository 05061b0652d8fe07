package engine

import "time"

// TimerState is the round timer's lifecycle state.
type TimerState string

const (
	TimerIdle     TimerState = "idle"
	TimerRunning  TimerState = "running"
	TimerPaused   TimerState = "paused"
	TimerDepleted TimerState = "depleted"
)

// Band is the presentational colour band of a pellet.
type Band string

const (
	BandWarning Band = "warning"
	BandCaution Band = "caution"
	BandSafe    Band = "safe"
)

// RoundTimer is the per-round countdown rendered as a row of pellets.
// It is not safe for concurrent use; the owning session serialises access.
type RoundTimer struct {
	pellets         int
	warningFraction float64
	cautionFraction float64

	state     TimerState
	budget    time.Duration
	remaining time.Duration
	reported  bool
}

// NewRoundTimer returns an idle timer with the given pellet layout.
func NewRoundTimer(pellets int, warningFraction, cautionFraction float64) *RoundTimer {
	if pellets < 1 {
		pellets = 1
	}
	return &RoundTimer{
		pellets:         pellets,
		warningFraction: warningFraction,
		cautionFraction: cautionFraction,
		state:           TimerIdle,
	}
}

// Start arms the timer with a fresh budget.
func (t *RoundTimer) Start(budget time.Duration) {
	if budget < 0 {
		budget = 0
	}
	t.budget = budget
	t.remaining = budget
	t.reported = false
	t.state = TimerRunning
	if budget == 0 {
		t.state = TimerDepleted
	}
}

// Stop freezes the timer without depleting it. Remaining time is kept so the
// clearing bonus can drain it.
func (t *RoundTimer) Stop() {
	if t.state == TimerRunning || t.state == TimerPaused {
		t.state = TimerIdle
	}
}

func (t *RoundTimer) Pause() {
	if t.state == TimerRunning {
		t.state = TimerPaused
	}
}

func (t *RoundTimer) Resume() {
	if t.state == TimerPaused {
		t.state = TimerRunning
	}
}

// Tick removes step from the remaining time while running. It returns true
// exactly once, on the tick that depletes the timer.
func (t *RoundTimer) Tick(step time.Duration) bool {
	if t.state != TimerRunning {
		return false
	}
	return t.adjust(-step)
}

// Adjust adds delta (negative for penalties) to the remaining time, clamped
// to [0, budget]. It returns true exactly once if the change depletes the timer.
func (t *RoundTimer) Adjust(delta time.Duration) bool {
	if t.state == TimerDepleted {
		return false
	}
	return t.adjust(delta)
}

// Penalize is Adjust(-d).
func (t *RoundTimer) Penalize(d time.Duration) bool {
	return t.Adjust(-d)
}

func (t *RoundTimer) adjust(delta time.Duration) bool {
	t.remaining += delta
	if t.remaining > t.budget {
		t.remaining = t.budget
	}
	if t.remaining > 0 {
		return false
	}
	t.remaining = 0
	if t.state == TimerIdle {
		return false
	}
	t.state = TimerDepleted
	if t.reported {
		return false
	}
	t.reported = true
	return true
}

// DrainPellet removes one pellet's slice of time, leaving the remainder on the
// pellet boundary below. It never reports depletion. It returns false when no
// pellet was active.
func (t *RoundTimer) DrainPellet() bool {
	active := t.ActivePellets()
	if active == 0 {
		return false
	}
	t.remaining = time.Duration(int64(t.budget) * int64(active-1) / int64(t.pellets))
	return true
}

// ActivePellets is ceil(remaining / (budget / pellets)), clamped to [0, pellets].
func (t *RoundTimer) ActivePellets() int {
	if t.budget <= 0 || t.remaining <= 0 {
		return 0
	}
	b := int64(t.budget)
	n := int((int64(t.remaining)*int64(t.pellets) + b - 1) / b)
	switch {
	case n < 0:
		return 0
	case n > t.pellets:
		return t.pellets
	}
	return n
}

// InWarningBand reports whether the active pellets have fallen into the
// warning band.
func (t *RoundTimer) InWarningBand() bool {
	return float64(t.ActivePellets()) <= float64(t.pellets)*t.warningFraction
}

// BandOf returns the band of pellet i, counted from the last pellet to drain.
func (t *RoundTimer) BandOf(i int) Band {
	warn, caution := t.bandSizes()
	switch {
	case i < warn:
		return BandWarning
	case i < warn+caution:
		return BandCaution
	}
	return BandSafe
}

// Bands returns the band of every pellet, index 0 draining last.
func (t *RoundTimer) Bands() []Band {
	out := make([]Band, t.pellets)
	for i := range out {
		out[i] = t.BandOf(i)
	}
	return out
}

func (t *RoundTimer) bandSizes() (warn, caution int) {
	warn = int(float64(t.pellets)*t.warningFraction + 0.5)
	caution = int(float64(t.pellets)*t.cautionFraction + 0.5)
	return warn, caution
}

func (t *RoundTimer) State() TimerState        { return t.state }
func (t *RoundTimer) Remaining() time.Duration { return t.remaining }
func (t *RoundTimer) Budget() time.Duration    { return t.budget }
func (t *RoundTimer) Pellets() int             { return t.pellets }
