// Package game sequences rounds of play: loading a set, running the timers,
// scoring hits, the clearing bonus, the timeout reveal and high-score capture.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MJE43/photohunt/internal/assets"
	"github.com/MJE43/photohunt/internal/clock"
	"github.com/MJE43/photohunt/internal/dataset"
	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/highscore"
)

var (
	ErrNotAccepting = errors.New("game: input not accepted in current state")
	ErrBusy         = errors.New("game: a game is already in progress")
	ErrNoNameEntry  = errors.New("game: no high score awaiting a name")
	ErrClosed       = errors.New("game: session closed")
	ErrAborted      = errors.New("game: start aborted")
)

// ImageLoader loads and measures both images of a set.
type ImageLoader interface {
	LoadPair(ctx context.Context, set dataset.Set) (assets.Pair, error)
}

// HighScores is the ranked table a finished game is offered to.
type HighScores interface {
	IsHighScore(score int) bool
	GetRank(score int) int
	AddScore(ctx context.Context, name string, score int) int
}

// Outcome is how a game ended.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeTimeout  Outcome = "timeout"
)

// Result describes a finished game.
type Result struct {
	SessionID     string
	Score         int
	RoundsCleared int
	Outcome       Outcome
	FinishedAt    time.Time
}

// Recorder stores finished games. Optional.
type Recorder interface {
	RecordResult(ctx context.Context, r Result) error
}

// Deps are the collaborators of a Session.
type Deps struct {
	Sets     dataset.Loader
	Images   ImageLoader
	Scores   HighScores
	Emitter  Emitter
	Recorder Recorder
	Clock    clock.Clock
	Rand     *rand.Rand
	Logger   *slog.Logger
}

// Session is one player's game. All exported methods are safe for
// concurrent use.
type Session struct {
	id   string
	cfg  engine.Settings
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	emitMu sync.Mutex
	mu     sync.Mutex
	closed bool

	state State
	gen   uint64
	seq   uint64

	coll          *dataset.Collection
	order         []int
	roundIndex    int
	roundsCleared int
	score         int

	set          dataset.Set
	pair         assets.Pair
	round        *engine.Round
	timer        *engine.RoundTimer
	search       *engine.SearchTimer
	hints        *engine.Hints
	hintNotified bool
	hintBonusDue int
	pendingRank  int

	roundTick  clock.Timer
	searchTick clock.Timer
	stage      clock.Timer
	loadCancel context.CancelFunc

	// tickBase is when the tickers last started. The carries hold how far
	// into its interval each ticker was when play was last paused.
	tickBase    time.Time
	roundCarry  time.Duration
	searchCarry time.Duration

	outbox   []Signal
	deferred []func()
}

// NewSession builds an idle session.
func NewSession(id string, cfg engine.Settings, deps Deps) *Session {
	if deps.Emitter == nil {
		deps.Emitter = Discard
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
		timer:  engine.NewRoundTimer(cfg.Pellets, cfg.WarningFraction, cfg.CautionFraction),
		search: engine.NewSearchTimer(cfg.SearchStart, cfg.SearchFloor, cfg.SearchStep),
		hints:  engine.NewHints(cfg.HintsPerRound, cfg.HintCooldown),
	}
}

func (s *Session) ID() string { return s.id }

// Start fetches the dataset, shuffles the set order and loads the first
// round. A dataset failure returns the session to idle and is returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.cancelScheduledLocked()
	s.resetLocked()
	s.state = StateLoading
	gen := s.gen
	s.mu.Unlock()

	coll, err := s.deps.Sets.Load(ctx)

	s.mu.Lock()
	if s.gen != gen {
		s.flushUnlock()
		return ErrAborted
	}
	if err == nil && (coll == nil || len(coll.Sets) == 0) {
		err = fmt.Errorf("%w: no sets", dataset.ErrMalformed)
	}
	if err != nil {
		s.deps.Logger.Error("dataset load failed", "session", s.id, "error", err)
		s.resetLocked()
		s.state = StateIdle
		s.emitLocked(Signal{Type: SignalError, Reason: err.Error()})
		s.flushUnlock()
		return fmt.Errorf("game: load dataset: %w", err)
	}
	s.coll = coll
	s.order = coll.Order(s.deps.Rand)
	s.roundIndex = 0
	s.deps.Logger.Info("game started", "session", s.id, "sets", len(coll.Sets))
	s.flushUnlock()

	s.loadRound(ctx, gen)
	return nil
}

// Restart abandons any game in progress and starts a new one.
func (s *Session) Restart(ctx context.Context) error {
	s.Quit()
	return s.Start(ctx)
}

// loadRound loads the set at roundIndex, skipping sets whose images fail,
// until a round starts or the sets run out.
func (s *Session) loadRound(ctx context.Context, gen uint64) {
	for {
		s.mu.Lock()
		if s.gen != gen || s.closed {
			s.flushUnlock()
			return
		}
		if s.roundIndex >= len(s.order) {
			s.gameCompleteLocked()
			s.flushUnlock()
			return
		}
		set := s.coll.Sets[s.order[s.roundIndex]].Clone()
		s.state = StateLoading
		loadCtx, cancel := context.WithTimeout(ctx, 2*s.cfg.ImageTimeout)
		s.loadCancel = cancel
		s.flushUnlock()

		pair, err := s.deps.Images.LoadPair(loadCtx, set)
		cancel()

		s.mu.Lock()
		if s.gen != gen || s.closed {
			s.flushUnlock()
			return
		}
		s.loadCancel = nil
		if err != nil {
			s.deps.Logger.Warn("round skipped", "session", s.id, "set", set.ID, "error", err)
			s.emitLocked(Signal{Type: SignalRoundSkipped, SetID: set.ID, Reason: err.Error()})
			s.roundIndex++
			s.flushUnlock()
			continue
		}
		s.startRoundLocked(set, pair)
		s.flushUnlock()
		return
	}
}

func (s *Session) startRoundLocked(set dataset.Set, pair assets.Pair) {
	diffs := make([]engine.Difference, len(set.Differences))
	for i, d := range set.Differences {
		diffs[i] = engine.Difference(d)
	}
	budget := engine.RoundBudget(s.cfg.InitialBudget, s.cfg.DecayRate, s.cfg.DecayFloor, s.roundIndex)

	s.set = set
	s.pair = pair
	s.round = engine.NewRound(diffs, pair.Left, pair.Right)
	s.timer.Start(budget)
	s.search.Reset()
	s.hints.Reset()
	s.hintNotified = false
	s.state = StateActive
	s.roundCarry, s.searchCarry = 0, 0
	s.startTickersLocked()

	s.emitLocked(Signal{
		Type:      SignalRoundStart,
		SetID:     set.ID,
		Total:     s.round.Total(),
		Budget:    budget.Seconds(),
		Remaining: budget.Seconds(),
		Pellets:   s.timer.ActivePellets(),
		Search:    s.search.Value(),
		HintsLeft: s.hints.Remaining(),
	})
}

func (s *Session) startTickersLocked() {
	s.tickBase = s.deps.Clock.Now()
	s.roundTick = s.tickEvery(&s.roundTick, s.cfg.RoundTick, s.roundCarry, s.onRoundTickLocked)
	s.searchTick = s.tickEvery(&s.searchTick, s.cfg.SearchInterval, s.searchCarry, s.onSearchTickLocked)
}

// tickEvery schedules fn every interval. When carry is set the first call
// comes after only interval-carry, and the periodic ticker replaces *slot
// from then on.
func (s *Session) tickEvery(slot *clock.Timer, interval, carry time.Duration, fn func()) clock.Timer {
	if carry <= 0 || carry >= interval {
		return s.deps.Clock.Every(interval, s.guard(fn))
	}
	return s.deps.Clock.AfterFunc(interval-carry, s.guard(func() {
		gen := s.gen
		fn()
		if s.gen == gen && s.state == StateActive {
			*slot = s.deps.Clock.Every(interval, s.guard(fn))
		}
	}))
}

// holdTickersLocked records the partial intervals elapsed since the tickers
// started so Resume can finish them instead of starting over.
func (s *Session) holdTickersLocked() {
	elapsed := s.deps.Clock.Now().Sub(s.tickBase)
	if elapsed < 0 {
		elapsed = 0
	}
	if s.cfg.RoundTick > 0 {
		s.roundCarry = (s.roundCarry + elapsed) % s.cfg.RoundTick
	}
	if s.cfg.SearchInterval > 0 {
		s.searchCarry = (s.searchCarry + elapsed) % s.cfg.SearchInterval
	}
}

// guard wraps a scheduled callback so it runs under the lock and only if
// nothing was cancelled since it was scheduled.
func (s *Session) guard(fn func()) func() {
	gen := s.gen
	return func() {
		s.mu.Lock()
		if s.gen != gen || s.closed {
			s.mu.Unlock()
			return
		}
		fn()
		s.flushUnlock()
	}
}

// after schedules a one-shot stage step.
func (s *Session) after(d time.Duration, fn func()) {
	s.stage = s.deps.Clock.AfterFunc(d, s.guard(fn))
}

// cancelScheduledLocked stops every timer and invalidates callbacks already
// in flight.
func (s *Session) cancelScheduledLocked() {
	for _, t := range []clock.Timer{s.roundTick, s.searchTick, s.stage} {
		if t != nil {
			t.Stop()
		}
	}
	s.roundTick, s.searchTick, s.stage = nil, nil, nil
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.gen++
}

func (s *Session) onRoundTickLocked() {
	if s.state != StateActive {
		return
	}
	depleted := s.timer.Tick(s.cfg.RoundTick)
	s.emitLocked(Signal{
		Type:      SignalTick,
		Remaining: s.timer.Remaining().Seconds(),
		Pellets:   s.timer.ActivePellets(),
		Search:    s.search.Value(),
	})
	s.checkHintAvailableLocked()
	if depleted {
		s.timeoutLocked()
	}
}

func (s *Session) onSearchTickLocked() {
	if s.state != StateActive {
		return
	}
	s.search.Tick()
}

func (s *Session) checkHintAvailableLocked() {
	if s.hintNotified || s.state != StateActive || s.hints.Remaining() == 0 {
		return
	}
	if !s.timer.InWarningBand() || s.timer.Remaining() == 0 {
		return
	}
	s.hintNotified = true
	s.emitLocked(Signal{Type: SignalHintAvailable, HintsLeft: s.hints.Remaining(), Pellets: s.timer.ActivePellets()})
}

// ClickResult reports what a click did.
type ClickResult struct {
	Hit    bool `json:"hit"`
	Index  int  `json:"index"`
	Points int  `json:"points"`
	Score  int  `json:"score"`
}

// Click hit-tests a click on one image. A hit scores the search value; a
// miss costs the miss penalty.
func (s *Session) Click(c engine.Click) (ClickResult, error) {
	s.mu.Lock()
	defer s.flushUnlock()

	if s.state != StateActive {
		return ClickResult{}, ErrNotAccepting
	}
	fx, fy, err := engine.NormalizeClick(c)
	if err != nil {
		return ClickResult{}, err
	}
	pos := &Point{X: c.X, Y: c.Y}

	idx, ok := s.round.HitTest(c.Side, fx, fy)
	if !ok {
		depleted := s.timer.Penalize(s.cfg.MissPenalty)
		s.emitLocked(Signal{
			Type:      SignalMiss,
			Side:      c.Side.String(),
			Position:  pos,
			Remaining: s.timer.Remaining().Seconds(),
			Pellets:   s.timer.ActivePellets(),
		})
		s.checkHintAvailableLocked()
		if depleted {
			s.timeoutLocked()
		}
		return ClickResult{Hit: false, Index: -1, Score: s.score}, nil
	}

	complete, err := s.round.MarkFound(idx)
	if err != nil {
		return ClickResult{}, err
	}
	pts := engine.Points(s.search.Value())
	s.score += pts
	s.search.Reset()
	s.emitFoundLocked(SignalDifferenceFound, idx, c.Side.String(), pos, pts)
	if complete {
		s.clearRoundLocked()
	}
	return ClickResult{Hit: true, Index: idx, Points: pts, Score: s.score}, nil
}

func (s *Session) emitFoundLocked(t SignalType, idx int, side string, pos *Point, pts int) {
	l, r := s.round.Rects(idx)
	s.emitLocked(Signal{
		Type:      t,
		Index:     &idx,
		Side:      side,
		Left:      &l,
		Right:     &r,
		Position:  pos,
		Points:    pts,
		Found:     s.round.FoundCount(),
		Total:     s.round.Total(),
		HintsLeft: s.hints.Remaining(),
	})
}

// UseHint reveals a random unfound difference. Rejections emit
// hint_rejected and return the reason without changing state.
func (s *Session) UseHint() (int, error) {
	s.mu.Lock()
	defer s.flushUnlock()

	if s.state != StateActive {
		return -1, ErrNotAccepting
	}
	idx, err := s.hints.Use(s.deps.Clock.Now(), s.round.Unfound(), s.deps.Rand)
	if err != nil {
		s.emitLocked(Signal{Type: SignalHintRejected, Reason: err.Error(), HintsLeft: s.hints.Remaining()})
		return -1, err
	}
	complete, err := s.round.MarkFound(idx)
	if err != nil {
		return -1, err
	}
	s.emitFoundLocked(SignalHintUsed, idx, "", nil, 0)
	if complete {
		s.clearRoundLocked()
	}
	return idx, nil
}

func (s *Session) clearRoundLocked() {
	s.cancelScheduledLocked()
	s.timer.Stop()
	s.state = StateRoundClearing
	s.roundsCleared++
	s.hintBonusDue = s.hints.Remaining()
	s.emitLocked(Signal{
		Type:      SignalRoundCleared,
		SetID:     s.set.ID,
		Pellets:   s.timer.ActivePellets(),
		HintsLeft: s.hintBonusDue,
		Remaining: s.timer.Remaining().Seconds(),
	})
	s.after(s.cfg.DrainInterval, s.drainStepLocked)
}

func (s *Session) drainStepLocked() {
	if s.timer.DrainPellet() {
		s.score += s.cfg.PelletBonus
		s.emitLocked(Signal{Type: SignalPelletBonus, Points: s.cfg.PelletBonus, Pellets: s.timer.ActivePellets()})
		s.after(s.cfg.DrainInterval, s.drainStepLocked)
		return
	}
	s.hintBonusStepLocked()
}

func (s *Session) hintBonusStepLocked() {
	if s.hintBonusDue == 0 {
		s.advanceLocked()
		return
	}
	s.hintBonusDue--
	s.score += s.cfg.HintBonus
	s.emitLocked(Signal{Type: SignalHintBonus, Points: s.cfg.HintBonus, HintsLeft: s.hintBonusDue})
	s.after(s.cfg.HintStagger, s.hintBonusStepLocked)
}

func (s *Session) advanceLocked() {
	s.roundIndex++
	if s.roundIndex >= len(s.order) {
		s.gameCompleteLocked()
		return
	}
	s.state = StateNextRoundPending
	s.after(s.cfg.NextRoundDelay, func() {
		gen := s.gen
		s.deferLocked(func() { s.loadRound(s.ctx, gen) })
	})
}

func (s *Session) gameCompleteLocked() {
	s.cancelScheduledLocked()
	s.state = StateGameComplete
	s.deps.Logger.Info("game complete", "session", s.id, "score", s.score, "rounds", s.roundsCleared)
	s.emitLocked(Signal{Type: SignalGameComplete})
	s.after(s.cfg.GameOverDelay, func() { s.finalizeLocked(OutcomeComplete) })
}

func (s *Session) timeoutLocked() {
	s.cancelScheduledLocked()
	s.state = StateTimedOut
	s.emitLocked(Signal{Type: SignalTimeout, Found: s.round.FoundCount(), Total: s.round.Total()})

	missed := s.round.Unfound()
	s.state = StateRevealingMissed
	s.after(s.cfg.RevealInterval, func() { s.revealStepLocked(missed) })
}

func (s *Session) revealStepLocked(missed []int) {
	if len(missed) == 0 {
		s.state = StateGameOverPending
		s.deps.Logger.Info("game over", "session", s.id, "score", s.score, "rounds", s.roundsCleared)
		s.emitLocked(Signal{Type: SignalGameOver})
		s.after(s.cfg.GameOverDelay, func() { s.finalizeLocked(OutcomeTimeout) })
		return
	}
	idx := missed[0]
	l, r := s.round.Rects(idx)
	s.emitLocked(Signal{Type: SignalRevealMissed, Index: &idx, Left: &l, Right: &r})
	rest := missed[1:]
	if len(rest) == 0 {
		s.revealStepLocked(rest)
		return
	}
	s.after(s.cfg.RevealInterval, func() { s.revealStepLocked(rest) })
}

// finalizeLocked offers the score to the high-score table.
func (s *Session) finalizeLocked(outcome Outcome) {
	if rec := s.deps.Recorder; rec != nil {
		res := Result{
			SessionID:     s.id,
			Score:         s.score,
			RoundsCleared: s.roundsCleared,
			Outcome:       outcome,
			FinishedAt:    s.deps.Clock.Now(),
		}
		ctx, logger := s.ctx, s.deps.Logger
		s.deferLocked(func() {
			if err := rec.RecordResult(ctx, res); err != nil {
				logger.Warn("game result not recorded", "session", res.SessionID, "error", err)
			}
		})
	}

	if s.deps.Scores != nil && s.score > 0 && s.deps.Scores.IsHighScore(s.score) {
		s.pendingRank = s.deps.Scores.GetRank(s.score)
		s.state = StateHighScoreCapture
		s.emitLocked(Signal{Type: SignalNameEntry, Rank: s.pendingRank})
		return
	}
	s.returnToMenuLocked()
}

// SubmitName records the pending high score under name and returns its rank.
func (s *Session) SubmitName(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.flushUnlock()

	if s.state != StateHighScoreCapture {
		return 0, ErrNoNameEntry
	}
	name = highscore.NormalizeName(name)
	rank := s.deps.Scores.AddScore(ctx, name, s.score)
	s.emitLocked(Signal{Type: SignalHighScoreSaved, Rank: rank, Name: name})
	s.returnToMenuLocked()
	return rank, nil
}

// CancelNameEntry abandons the pending high score.
func (s *Session) CancelNameEntry() error {
	s.mu.Lock()
	defer s.flushUnlock()

	if s.state != StateHighScoreCapture {
		return ErrNoNameEntry
	}
	s.returnToMenuLocked()
	return nil
}

// Pause freezes both timers during active play.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.flushUnlock()

	if s.state != StateActive {
		return ErrNotAccepting
	}
	s.holdTickersLocked()
	s.cancelScheduledLocked()
	s.timer.Pause()
	s.state = StatePaused
	s.emitLocked(Signal{Type: SignalPaused, Remaining: s.timer.Remaining().Seconds()})
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.flushUnlock()

	if s.state != StatePaused {
		return ErrNotAccepting
	}
	s.timer.Resume()
	s.state = StateActive
	s.startTickersLocked()
	s.emitLocked(Signal{Type: SignalResumed, Remaining: s.timer.Remaining().Seconds()})
	return nil
}

// Quit abandons the game from any state and returns to the menu.
func (s *Session) Quit() {
	s.mu.Lock()
	defer s.flushUnlock()

	if s.state == StateIdle {
		s.cancelScheduledLocked()
		return
	}
	s.returnToMenuLocked()
}

// Close quits and releases the session for good.
func (s *Session) Close() {
	s.Quit()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) returnToMenuLocked() {
	s.cancelScheduledLocked()
	s.timer.Stop()
	s.state = StateIdle
	s.emitLocked(Signal{Type: SignalReturnToMenu})
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.coll = nil
	s.order = nil
	s.roundIndex = 0
	s.roundsCleared = 0
	s.score = 0
	s.round = nil
	s.set = dataset.Set{}
	s.pair = assets.Pair{}
	s.hints.Reset()
	s.hintNotified = false
	s.hintBonusDue = 0
	s.pendingRank = 0
}

func (s *Session) emitLocked(sig Signal) {
	s.seq++
	sig.Session = s.id
	sig.Seq = s.seq
	sig.State = s.state
	sig.Round = s.roundIndex + 1
	sig.Score = s.score
	sig.Time = s.deps.Clock.Now()
	s.outbox = append(s.outbox, sig)
}

func (s *Session) deferLocked(fn func()) {
	s.deferred = append(s.deferred, fn)
}

// flushUnlock releases the lock, then delivers queued signals in order and
// runs deferred work.
func (s *Session) flushUnlock() {
	out, work := s.outbox, s.deferred
	s.outbox, s.deferred = nil, nil
	if len(out) == 0 {
		s.mu.Unlock()
	} else {
		s.emitMu.Lock()
		s.mu.Unlock()
		for _, sig := range out {
			s.deps.Emitter.Emit(sig)
		}
		s.emitMu.Unlock()
	}
	for _, fn := range work {
		fn()
	}
}
