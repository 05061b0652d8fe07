package game

import (
	"time"

	"github.com/MJE43/photohunt/internal/engine"
)

// State is the sequencer's current stage.
type State string

const (
	StateIdle             State = "idle"
	StateLoading          State = "loading"
	StateActive           State = "active"
	StatePaused           State = "paused"
	StateRoundClearing    State = "round_clearing"
	StateNextRoundPending State = "next_round_pending"
	StateGameComplete     State = "game_complete"
	StateTimedOut         State = "timed_out"
	StateRevealingMissed  State = "revealing_missed"
	StateGameOverPending  State = "game_over_pending"
	StateHighScoreCapture State = "high_score_capture"
)

// SignalType names a presentation signal.
type SignalType string

const (
	SignalRoundStart      SignalType = "round_start"
	SignalTick            SignalType = "tick"
	SignalDifferenceFound SignalType = "difference_found"
	SignalMiss            SignalType = "miss"
	SignalRoundCleared    SignalType = "round_cleared"
	SignalPelletBonus     SignalType = "pellet_bonus"
	SignalHintBonus       SignalType = "hint_bonus"
	SignalTimeout         SignalType = "timeout"
	SignalRevealMissed    SignalType = "reveal_missed"
	SignalHintUsed        SignalType = "hint_used"
	SignalHintRejected    SignalType = "hint_rejected"
	SignalHintAvailable   SignalType = "hint_available"
	SignalRoundSkipped    SignalType = "round_skipped"
	SignalPaused          SignalType = "paused"
	SignalResumed         SignalType = "resumed"
	SignalGameComplete    SignalType = "game_complete"
	SignalGameOver        SignalType = "game_over"
	SignalNameEntry       SignalType = "name_entry"
	SignalHighScoreSaved  SignalType = "high_score_saved"
	SignalReturnToMenu    SignalType = "return_to_menu"
	SignalError           SignalType = "error"
)

// Point is a click position relative to the clicked image box.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Signal is one event for the presentation layer. Only the fields relevant
// to Type are set.
type Signal struct {
	Type    SignalType `json:"type"`
	Session string     `json:"session"`
	Seq     uint64     `json:"seq"`
	State   State      `json:"state"`
	Round   int        `json:"round"`
	Score   int        `json:"score"`

	SetID     int          `json:"setId,omitempty"`
	Index     *int         `json:"index,omitempty"`
	Side      string       `json:"side,omitempty"`
	Left      *engine.Rect `json:"left,omitempty"`
	Right     *engine.Rect `json:"right,omitempty"`
	Position  *Point       `json:"position,omitempty"`
	Points    int          `json:"points,omitempty"`
	Found     int          `json:"found,omitempty"`
	Total     int          `json:"total,omitempty"`
	Remaining float64      `json:"remaining,omitempty"`
	Budget    float64      `json:"budget,omitempty"`
	Pellets   int          `json:"pellets,omitempty"`
	Search    int          `json:"search,omitempty"`
	HintsLeft int          `json:"hintsLeft,omitempty"`
	Rank      int          `json:"rank,omitempty"`
	Name      string       `json:"name,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Time      time.Time    `json:"time"`
}

// Emitter receives signals in order. Emit is called without the session lock
// held but must not call back into the emitting session synchronously.
type Emitter interface {
	Emit(Signal)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Signal)

func (f EmitterFunc) Emit(s Signal) { f(s) }

// Discard drops every signal.
var Discard Emitter = EmitterFunc(func(Signal) {})
