package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	two         = decimal.NewFromInt(2)
	nanosPerSec = decimal.NewFromInt(int64(time.Second))
)

// Points converts a search-timer value into an even score award:
// round(value / 2) * 2, halves rounding away from zero.
func Points(value int) int {
	if value <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(value)).Div(two).Round(0).Mul(two).IntPart())
}

// RoundBudget returns the time budget for the zero-based round index:
// max(initial * (1 - rate)^index, initial * floor).
func RoundBudget(initial time.Duration, rate, floor float64, index int) time.Duration {
	if index < 0 {
		index = 0
	}
	secs := decimal.NewFromFloat(initial.Seconds())
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(rate))
	decayed := secs.Mul(factor.Pow(decimal.NewFromInt(int64(index))))
	minimum := secs.Mul(decimal.NewFromFloat(floor))
	budget := decimal.Max(decayed, minimum)
	return time.Duration(budget.Mul(nanosPerSec).Round(0).IntPart())
}
