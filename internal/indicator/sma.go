package indicator

import "math"

// RollingMean calculates a trailing simple moving average with min_periods=1
// semantics: the window expands from the first bar until it reaches period,
// then rolls. Output has the same length as prices and never contains NaN.
// Value t uses prices[0..t] only.
func RollingMean(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}

	result := make([]float64, len(prices))

	// run counts identical consecutive prices ending at i; a window made of
	// one repeated price averages to that price exactly
	run := 0
	for i, p := range prices {
		if i > 0 && p == prices[i-1] {
			run++
		} else {
			run = 1
		}

		n := min(i+1, period)
		if run >= n {
			result[i] = p
			continue
		}
		result[i] = windowSum(prices[i+1-n:i+1]) / float64(n)
	}

	return result
}

// windowSum adds values with Neumaier compensation so each window is summed
// afresh and no rounding error carries from one bar to the next
func windowSum(values []float64) float64 {
	var sum, comp float64
	for _, v := range values {
		t := sum + v
		if math.Abs(sum) >= math.Abs(v) {
			comp += (sum - t) + v
		} else {
			comp += (v - t) + sum
		}
		sum = t
	}
	return sum + comp
}

// ExpandingEMA calculates an Exponential Moving Average seeded with the
// first price (adjust=false recursion). Output has the same length as prices.
func ExpandingEMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}

	result := make([]float64, len(prices))
	multiplier := 2.0 / float64(period+1)

	ema := prices[0]
	result[0] = ema
	for i := 1; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result[i] = ema
	}

	return result
}
