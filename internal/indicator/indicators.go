package indicator

import "math"

// All indicator functions are length-preserving: the returned series has the
// same length as the input, with neutral warm-up values while the lookback
// window is still filling.

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA computes a simple moving average. Entries before the window
// fills are zero.
func CalculateSMA(data []float64, period int) []float64 {
	result := make([]float64, len(data))
	if period <= 0 || len(data) < period {
		return result
	}

	var sum float64
	for i, v := range data {
		sum += v
		if i >= period {
			sum -= data[i-period]
		}
		if i >= period-1 {
			result[i] = sum / float64(period)
		}
	}
	return result
}

// CalculateEMA computes an exponential moving average seeded with the SMA of
// the first period values. Entries before the seed are zero.
func CalculateEMA(data []float64, period int) []float64 {
	result := make([]float64, len(data))
	if period <= 0 || len(data) < period {
		return result
	}

	var seed float64
	for i := 0; i < period; i++ {
		seed += data[i]
	}
	seed /= float64(period)
	result[period-1] = seed

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(data); i++ {
		result[i] = (data[i]-result[i-1])*multiplier + result[i-1]
	}
	return result
}

// ============================================================================
// OSCILLATORS
// ============================================================================

// CalculateRSI computes the relative strength index over closing prices.
// Warm-up entries hold the neutral value 50, and a window with no losses
// saturates at 100.
func CalculateRSI(data []float64, period int) []float64 {
	result := make([]float64, len(data))
	for i := range result {
		result[i] = 50
	}
	if period <= 0 || len(data) <= period {
		return result
	}

	for i := period; i < len(data); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			delta := data[j] - data[j-1]
			if delta > 0 {
				gains += delta
			} else {
				losses -= delta
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			result[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		result[i] = 100 - 100/(1+rs)
	}
	return result
}

// StochasticResult holds the %K and %D lines
type StochasticResult struct {
	K []float64
	D []float64
}

// CalculateStochastic computes the stochastic oscillator. %K is neutral 50
// while warming up or when the window has no range; %D is the SMA of %K.
func CalculateStochastic(highs, lows, closes []float64, kPeriod, dPeriod int) StochasticResult {
	k := make([]float64, len(closes))
	for i := range k {
		if i < kPeriod-1 {
			k[i] = 50
			continue
		}

		highest := highs[i]
		lowest := lows[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}

		if highest == lowest {
			k[i] = 50
		} else {
			k[i] = (closes[i] - lowest) / (highest - lowest) * 100
		}
	}

	return StochasticResult{K: k, D: CalculateSMA(k, dPeriod)}
}

// CalculateWilliamsR computes Williams %R. The neutral value is -50, used both
// during warm-up and when the window has no range.
func CalculateWilliamsR(highs, lows, closes []float64, period int) []float64 {
	result := make([]float64, len(closes))
	for i := range result {
		if i < period-1 {
			result[i] = -50
			continue
		}

		highest := highs[i]
		lowest := lows[i]
		for j := i - period + 1; j <= i; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}

		if highest == lowest {
			result[i] = -50
		} else {
			result[i] = (highest - closes[i]) / (highest - lowest) * -100
		}
	}
	return result
}

// CalculateCCI computes the commodity channel index from typical prices.
// Warm-up entries and zero mean deviation both yield 0.
func CalculateCCI(highs, lows, closes []float64, period int) []float64 {
	result := make([]float64, len(closes))

	typical := make([]float64, len(closes))
	for i := range closes {
		typical[i] = (highs[i] + lows[i] + closes[i]) / 3
	}

	for i := period - 1; i < len(closes); i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += typical[j]
		}
		mean := sum / float64(period)

		var dev float64
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(typical[j] - mean)
		}
		meanDev := dev / float64(period)

		if meanDev == 0 {
			result[i] = 0
		} else {
			result[i] = (typical[i] - mean) / (0.015 * meanDev)
		}
	}
	return result
}

// ============================================================================
// TREND AND VOLATILITY
// ============================================================================

// MACDResult holds the MACD line, signal line and histogram
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD computes MACD as the difference of fast and slow EMAs, with a
// signal EMA over the MACD line and their histogram.
func CalculateMACD(data []float64, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	fast := CalculateEMA(data, fastPeriod)
	slow := CalculateEMA(data, slowPeriod)

	macdLine := make([]float64, len(data))
	for i := range data {
		macdLine[i] = fast[i] - slow[i]
	}

	signal := CalculateEMA(macdLine, signalPeriod)

	histogram := make([]float64, len(data))
	for i := range data {
		histogram[i] = macdLine[i] - signal[i]
	}

	return MACDResult{MACD: macdLine, Signal: signal, Histogram: histogram}
}

// BollingerBandsResult holds the upper, middle and lower bands
type BollingerBandsResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// CalculateBollingerBands computes Bollinger bands using population standard
// deviation. While warming up all three bands collapse onto the price.
func CalculateBollingerBands(data []float64, period int, stdDev float64) BollingerBandsResult {
	upper := make([]float64, len(data))
	middle := make([]float64, len(data))
	lower := make([]float64, len(data))

	for i := range data {
		if i < period-1 {
			upper[i] = data[i]
			middle[i] = data[i]
			lower[i] = data[i]
			continue
		}

		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += data[j]
		}
		mean := sum / float64(period)

		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := data[j] - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + stdDev*sd
		lower[i] = mean - stdDev*sd
	}

	return BollingerBandsResult{Upper: upper, Middle: middle, Lower: lower}
}

// CalculateATR computes the average true range as a simple moving average
// over the true-range series. Index 0 stays 0 since true range needs a
// previous close, and the SMA keeps zeros until a full window exists.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	result := make([]float64, len(closes))
	if len(closes) < 2 {
		return result
	}

	trueRanges := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trueRanges = append(trueRanges, tr)
	}

	copy(result[1:], CalculateSMA(trueRanges, period))
	return result
}

// CalculateADX computes the average directional index with Wilder smoothing
// applied to the raw DX values. Warm-up entries are zero; zero denominators
// in DI or DX resolve to zero.
func CalculateADX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	result := make([]float64, n)
	if n <= period {
		return result
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trueRange := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		trueRange[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}

	seeded := false
	for i := period; i < n; i++ {
		var sumPlus, sumMinus, sumTR float64
		for j := i - period + 1; j <= i; j++ {
			sumPlus += plusDM[j]
			sumMinus += minusDM[j]
			sumTR += trueRange[j]
		}

		var plusDI, minusDI float64
		if sumTR != 0 {
			plusDI = sumPlus / sumTR * 100
			minusDI = sumMinus / sumTR * 100
		}

		var dx float64
		if plusDI+minusDI != 0 {
			dx = math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
		}

		if !seeded {
			result[i] = dx
			seeded = true
		} else {
			result[i] = (result[i-1]*float64(period-1) + dx) / float64(period)
		}
	}
	return result
}
