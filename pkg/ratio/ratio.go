// Package ratio holds the rounding rules shared by the dashboard aggregates.
package ratio

import "github.com/shopspring/decimal"

// Round rounds x to the given number of decimal places, half away from zero.
func Round(x float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}

// Percent returns num/den*100 rounded to one decimal. A zero or negative
// denominator yields 0.
func Percent(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(num)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(den))).
		Round(1)
	f, _ := p.Float64()
	return f
}

// Mean returns the arithmetic mean of values rounded to one decimal, or 0 for
// an empty slice.
func Mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += int64(v)
	}
	m := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(values)))).Round(1)
	f, _ := m.Float64()
	return f
}
