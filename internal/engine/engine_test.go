package engine

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

func TestPointsAlwaysEven(t *testing.T) {
	cases := []struct {
		value, want int
	}{
		{999, 1000},
		{998, 998},
		{997, 998},
		{11, 12},
		{10, 10},
		{1, 2},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Points(tc.value); got != tc.want {
			t.Errorf("Points(%d): expected %d, got %d", tc.value, tc.want, got)
		}
	}
	for v := 0; v <= 999; v++ {
		if Points(v)%2 != 0 {
			t.Fatalf("Points(%d) = %d is odd", v, Points(v))
		}
	}
}

func TestRoundBudgetDecay(t *testing.T) {
	initial := 120 * time.Second
	got := RoundBudget(initial, 0.05, 0.15, 10)
	want := time.Duration(math.Max(120*math.Pow(0.95, 10), 120*0.15) * float64(time.Second))
	if diff := got - want; diff > time.Microsecond || diff < -time.Microsecond {
		t.Errorf("expected budget %v, got %v", want, got)
	}

	if got := RoundBudget(initial, 0.05, 0.15, 0); got != initial {
		t.Errorf("expected round 0 budget %v, got %v", initial, got)
	}

	floor := 18 * time.Second
	if got := RoundBudget(initial, 0.05, 0.15, 200); got != floor {
		t.Errorf("expected floored budget %v, got %v", floor, got)
	}

	prev := RoundBudget(initial, 0.05, 0.15, 0)
	for i := 1; i < 60; i++ {
		b := RoundBudget(initial, 0.05, 0.15, i)
		if b > prev {
			t.Fatalf("budget increased at round %d: %v > %v", i, b, prev)
		}
		prev = b
	}
}

func TestHitTestScaledBox(t *testing.T) {
	r := NewRound([]Difference{{X: 100, Y: 100, Width: 50, Height: 50}}, Size{1000, 1000}, Size{1000, 1000})

	fx, fy, err := NormalizeClick(Click{Side: Left, X: 60, Y: 60, BoxWidth: 500, BoxHeight: 500})
	if err != nil {
		t.Fatalf("NormalizeClick failed: %v", err)
	}
	if idx, ok := r.HitTest(Left, fx, fy); !ok || idx != 0 {
		t.Errorf("expected hit on difference 0 at (60,60), got idx=%d ok=%v", idx, ok)
	}

	fx, fy, _ = NormalizeClick(Click{Side: Right, X: 25, Y: 25, BoxWidth: 500, BoxHeight: 500})
	if _, ok := r.HitTest(Right, fx, fy); ok {
		t.Error("expected miss at (25,25)")
	}
}

func TestHitTestUnmeasuredImageNeverHits(t *testing.T) {
	r := NewRound([]Difference{{X: 0, Y: 0, Width: 50, Height: 50}}, Size{1000, 1000}, Size{})

	if idx, ok := r.HitTest(Right, 0, 0); ok {
		t.Errorf("expected no hit on a zero-size image, got idx=%d", idx)
	}
	if idx, ok := r.HitTest(Left, 0, 0); !ok || idx != 0 {
		t.Errorf("expected hit on difference 0 on the measured side, got idx=%d ok=%v", idx, ok)
	}
}

func TestHitTestSkipsFoundAndUsesListOrder(t *testing.T) {
	diffs := []Difference{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 50, Y: 50, Width: 100, Height: 100},
	}
	r := NewRound(diffs, Size{200, 200}, Size{200, 200})

	idx, ok := r.HitTest(Left, 0.4, 0.4)
	if !ok || idx != 0 {
		t.Fatalf("expected overlapping click to hit difference 0, got %d", idx)
	}
	if done, err := r.MarkFound(idx); err != nil || done {
		t.Fatalf("MarkFound: done=%v err=%v", done, err)
	}

	idx, ok = r.HitTest(Left, 0.4, 0.4)
	if !ok || idx != 1 {
		t.Fatalf("expected found difference to be skipped, got %d", idx)
	}
	if _, err := r.MarkFound(0); !errors.Is(err, ErrAlreadyFound) {
		t.Errorf("expected ErrAlreadyFound, got %v", err)
	}
	done, err := r.MarkFound(1)
	if err != nil || !done {
		t.Fatalf("expected round complete, got done=%v err=%v", done, err)
	}
	if r.FoundCount() != r.Total() {
		t.Errorf("expected found %d == total %d", r.FoundCount(), r.Total())
	}
	if _, ok := r.HitTest(Left, 0.4, 0.4); ok {
		t.Error("expected no hit once every difference is found")
	}
}

func TestNewRoundCopiesDifferences(t *testing.T) {
	diffs := []Difference{{X: 1, Y: 1, Width: 1, Height: 1}}
	r := NewRound(diffs, Size{10, 10}, Size{10, 10})
	diffs[0].X = 9
	l, _ := r.Rects(0)
	if l.X != 0.1 {
		t.Errorf("expected round to keep its own copy, got x=%v", l.X)
	}
}

func TestNormalizeClickRejectsEmptyBox(t *testing.T) {
	if _, _, err := NormalizeClick(Click{X: 1, Y: 1}); !errors.Is(err, ErrBadClick) {
		t.Errorf("expected ErrBadClick, got %v", err)
	}
}

func TestRoundTimerActivePellets(t *testing.T) {
	rt := NewRoundTimer(40, 0.2, 0.3)
	rt.Start(120 * time.Second)

	if got := rt.ActivePellets(); got != 40 {
		t.Errorf("expected 40 pellets at start, got %d", got)
	}
	rt.Tick(time.Second)
	// 119 / 3 = 39.67
	if got := rt.ActivePellets(); got != 40 {
		t.Errorf("expected 40 pellets after one tick, got %d", got)
	}
	rt.Adjust(-2 * time.Second)
	if got := rt.ActivePellets(); got != 39 {
		t.Errorf("expected 39 pellets at 117s, got %d", got)
	}
	rt.Adjust(time.Hour)
	if rt.Remaining() != rt.Budget() {
		t.Errorf("expected remaining clamped to budget, got %v", rt.Remaining())
	}
}

func TestRoundTimerPenaltyDepletesOnce(t *testing.T) {
	rt := NewRoundTimer(40, 0.2, 0.3)
	rt.Start(15 * time.Second)

	if rt.Penalize(10 * time.Second) {
		t.Fatal("unexpected depletion at 5s")
	}
	if !rt.Penalize(10 * time.Second) {
		t.Fatal("expected depletion from penalty")
	}
	if rt.Remaining() != 0 {
		t.Errorf("expected remaining 0, got %v", rt.Remaining())
	}
	if rt.State() != TimerDepleted {
		t.Errorf("expected depleted, got %s", rt.State())
	}
	if rt.Tick(time.Second) || rt.Penalize(time.Second) {
		t.Error("depletion reported more than once")
	}
}

func TestRoundTimerPauseStopsTicks(t *testing.T) {
	rt := NewRoundTimer(40, 0.2, 0.3)
	rt.Start(10 * time.Second)
	rt.Pause()
	rt.Tick(time.Second)
	if rt.Remaining() != 10*time.Second {
		t.Errorf("paused timer ticked: %v", rt.Remaining())
	}
	rt.Resume()
	rt.Tick(time.Second)
	if rt.Remaining() != 9*time.Second {
		t.Errorf("expected 9s after resume, got %v", rt.Remaining())
	}
}

func TestRoundTimerDrainPellet(t *testing.T) {
	rt := NewRoundTimer(40, 0.2, 0.3)
	rt.Start(120 * time.Second)
	rt.Tick(time.Second)
	rt.Stop()

	drained := 0
	for rt.DrainPellet() {
		drained++
		if rt.ActivePellets() != 40-drained {
			t.Fatalf("expected %d pellets after %d drains, got %d", 40-drained, drained, rt.ActivePellets())
		}
	}
	if drained != 40 {
		t.Errorf("expected 40 drains, got %d", drained)
	}
	if rt.State() == TimerDepleted {
		t.Error("drain must not deplete the timer")
	}
}

func TestRoundTimerBands(t *testing.T) {
	rt := NewRoundTimer(40, 0.2, 0.3)
	bands := rt.Bands()
	counts := map[Band]int{}
	for _, b := range bands {
		counts[b]++
	}
	if counts[BandWarning] != 8 || counts[BandCaution] != 12 || counts[BandSafe] != 20 {
		t.Errorf("unexpected band counts: %v", counts)
	}
	if rt.BandOf(0) != BandWarning || rt.BandOf(39) != BandSafe {
		t.Errorf("unexpected band ends: %s %s", rt.BandOf(0), rt.BandOf(39))
	}

	rt.Start(40 * time.Second)
	rt.Adjust(-32 * time.Second)
	if !rt.InWarningBand() {
		t.Errorf("expected warning band at %d pellets", rt.ActivePellets())
	}
}

func TestSearchTimerClampsAtFloor(t *testing.T) {
	st := NewSearchTimer(999, 10, 1)
	for i := 0; i < 2000; i++ {
		st.Tick()
	}
	if st.Value() != 10 {
		t.Errorf("expected floor 10, got %d", st.Value())
	}
	st.Reset()
	if st.Value() != 999 {
		t.Errorf("expected reset to 999, got %d", st.Value())
	}
}

func TestHintsBudgetAndCooldown(t *testing.T) {
	h := NewHints(3, 2*time.Second)
	rng := rand.New(rand.NewPCG(1, 2))
	now := time.Unix(100, 0)
	unfound := []int{0, 1, 2, 3}

	pick, err := h.Use(now, unfound, rng)
	if err != nil {
		t.Fatalf("first hint failed: %v", err)
	}
	if pick < 0 || pick > 3 {
		t.Errorf("pick %d not among unfound", pick)
	}
	if h.Remaining() != 2 || h.UsedMask() != 0b1 {
		t.Errorf("expected 2 left and mask 1, got %d and %b", h.Remaining(), h.UsedMask())
	}

	if _, err := h.Use(now.Add(time.Second), unfound, rng); !errors.Is(err, ErrHintCooldown) {
		t.Errorf("expected cooldown rejection, got %v", err)
	}
	if h.Remaining() != 2 {
		t.Errorf("rejected hint changed state: %d left", h.Remaining())
	}

	now = now.Add(2 * time.Second)
	if _, err := h.Use(now, unfound, rng); err != nil {
		t.Fatalf("second hint failed: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := h.Use(now, unfound, rng); err != nil {
		t.Fatalf("third hint failed: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := h.Use(now, unfound, rng); !errors.Is(err, ErrNoHintsLeft) {
		t.Errorf("expected ErrNoHintsLeft, got %v", err)
	}
	if h.UsedMask() != 0b111 {
		t.Errorf("expected mask 111, got %b", h.UsedMask())
	}

	h.Reset()
	if h.Remaining() != 3 || h.UsedMask() != 0 {
		t.Errorf("reset did not restore budget")
	}
}

func TestHintsUniformPick(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	seen := map[int]int{}
	for i := 0; i < 3000; i++ {
		h := NewHints(1, 0)
		pick, err := h.Use(time.Unix(0, 0), []int{2, 5, 9}, rng)
		if err != nil {
			t.Fatal(err)
		}
		seen[pick]++
	}
	for _, idx := range []int{2, 5, 9} {
		if seen[idx] < 800 {
			t.Errorf("index %d picked only %d times", idx, seen[idx])
		}
	}
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"left": Left, "image1": Left, "right": Right, "2": Right} {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Errorf("ParseSide(%q): expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParseSide("top"); err == nil {
		t.Error("expected error for unknown side")
	}
}
