package game

import "github.com/MJE43/photohunt/internal/engine"

// FoundDifference is a difference already marked on both images.
type FoundDifference struct {
	Index int         `json:"index"`
	Left  engine.Rect `json:"left"`
	Right engine.Rect `json:"right"`
}

// Snapshot is a read model of a session for UIs and the API.
type Snapshot struct {
	ID             string            `json:"id"`
	State          State             `json:"state"`
	Round          int               `json:"round"`
	Rounds         int               `json:"rounds"`
	Score          int               `json:"score"`
	SetID          int               `json:"setId,omitempty"`
	Image1         string            `json:"image1,omitempty"`
	Image2         string            `json:"image2,omitempty"`
	LeftSize       engine.Size       `json:"leftSize"`
	RightSize      engine.Size       `json:"rightSize"`
	Found          []FoundDifference `json:"found"`
	FoundCount     int               `json:"foundCount"`
	Total          int               `json:"total"`
	Budget         float64           `json:"budget"`
	Remaining      float64           `json:"remaining"`
	Pellets        int               `json:"pellets"`
	PelletsTotal   int               `json:"pelletsTotal"`
	Bands          []engine.Band     `json:"bands"`
	TimerState     engine.TimerState `json:"timerState"`
	Search         int               `json:"search"`
	HintsRemaining int               `json:"hintsRemaining"`
	HintsUsedMask  uint32            `json:"hintsUsedMask"`
	HintReady      bool              `json:"hintReady"`
	PendingRank    int               `json:"pendingRank,omitempty"`
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:             s.id,
		State:          s.state,
		Round:          s.roundIndex + 1,
		Rounds:         len(s.order),
		Score:          s.score,
		Found:          []FoundDifference{},
		PelletsTotal:   s.timer.Pellets(),
		Bands:          s.timer.Bands(),
		Search:         s.search.Value(),
		HintsRemaining: s.hints.Remaining(),
		HintsUsedMask:  s.hints.UsedMask(),
		PendingRank:    s.pendingRank,
	}
	if s.state == StateIdle || s.round == nil {
		return snap
	}

	snap.SetID = s.set.ID
	snap.Image1 = s.set.Image1
	snap.Image2 = s.set.Image2
	snap.LeftSize, snap.RightSize = s.round.Sizes()
	snap.FoundCount = s.round.FoundCount()
	snap.Total = s.round.Total()
	snap.Budget = s.timer.Budget().Seconds()
	snap.Remaining = s.timer.Remaining().Seconds()
	snap.Pellets = s.timer.ActivePellets()
	snap.TimerState = s.timer.State()
	snap.HintReady = s.state == StateActive && s.hints.Available(s.deps.Clock.Now())
	for i := 0; i < s.round.Total(); i++ {
		if s.round.Found(i) {
			l, r := s.round.Rects(i)
			snap.Found = append(snap.Found, FoundDifference{Index: i, Left: l, Right: r})
		}
	}
	return snap
}

// Score returns the running score.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// State returns the current stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Settings returns the tuning the session was built with.
func (s *Session) Settings() engine.Settings { return s.cfg }

// Unfound returns the differences still hidden in the current round.
func (s *Session) Unfound() []FoundDifference {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []FoundDifference{}
	if s.round == nil {
		return out
	}
	for _, i := range s.round.Unfound() {
		l, r := s.round.Rects(i)
		out = append(out, FoundDifference{Index: i, Left: l, Right: r})
	}
	return out
}
