package engine

// SearchTimer is the fast countdown whose value becomes the award for the
// next hit. It drops by step on every tick and holds at floor.
type SearchTimer struct {
	start, floor, step int
	value              int
}

func NewSearchTimer(start, floor, step int) *SearchTimer {
	if floor < 0 {
		floor = 0
	}
	if start < floor {
		start = floor
	}
	if step < 1 {
		step = 1
	}
	return &SearchTimer{start: start, floor: floor, step: step, value: start}
}

// Tick advances one step and returns the new value.
func (s *SearchTimer) Tick() int {
	s.value -= s.step
	if s.value < s.floor {
		s.value = s.floor
	}
	return s.value
}

func (s *SearchTimer) Reset()     { s.value = s.start }
func (s *SearchTimer) Value() int { return s.value }
