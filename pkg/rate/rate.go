// Package rate holds the return-rate arithmetic used by reports and statistics.
//
// All functions are pure. Inputs below one unit (gain or capital) yield zero
// instead of a ratio, so that a near-empty plan never reports a huge percentage.
package rate

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// PeriodReturn returns gain as a percentage of baseCapital.
func PeriodReturn(gain, baseCapital decimal.Decimal) decimal.Decimal {
	if gain.LessThan(one) || baseCapital.LessThan(one) {
		return decimal.Zero
	}
	return gain.Div(baseCapital).Mul(hundred)
}

// Growth returns how much finalCapital grew over initialCapital, in percent.
func Growth(finalCapital, initialCapital decimal.Decimal) decimal.Decimal {
	if finalCapital.LessThan(one) || initialCapital.LessThan(one) {
		return decimal.Zero
	}
	return finalCapital.Div(initialCapital).Sub(one).Mul(hundred)
}

// CumulativeReturn is PeriodReturn applied to running totals since plan inception.
func CumulativeReturn(totalGain, initialCapital decimal.Decimal) decimal.Decimal {
	return PeriodReturn(totalGain, initialCapital)
}

// Variation returns the relative change from previous to current, in percent.
// A zero previous value yields zero.
func Variation(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

// Round rounds a percentage to the two decimals stored on reports.
func Round(p decimal.Decimal) decimal.Decimal {
	return p.Round(2)
}

// Mean returns the arithmetic mean of values, or zero for an empty slice.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}
