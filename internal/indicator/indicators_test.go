package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateSMA(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	result := CalculateSMA(data, 3)

	if len(result) != len(data) {
		t.Fatalf("expected length %d, got %d", len(data), len(result))
	}

	expected := []float64{0, 0, 2, 3, 4}
	for i, want := range expected {
		if !almostEqual(result[i], want) {
			t.Errorf("SMA[%d]: expected %f, got %f", i, want, result[i])
		}
	}
}

func TestCalculateSMAInsufficientData(t *testing.T) {
	result := CalculateSMA([]float64{1, 2}, 5)
	for i, v := range result {
		if v != 0 {
			t.Errorf("SMA[%d]: expected 0 with insufficient data, got %f", i, v)
		}
	}
}

func TestCalculateEMA(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	result := CalculateEMA(data, 3)

	// seed is the SMA of the first 3 values, multiplier 0.5
	expected := []float64{0, 0, 2, 3, 4}
	for i, want := range expected {
		if !almostEqual(result[i], want) {
			t.Errorf("EMA[%d]: expected %f, got %f", i, want, result[i])
		}
	}
}

func TestCalculateRSIWarmup(t *testing.T) {
	data := []float64{100, 101, 102, 103, 104, 105}
	result := CalculateRSI(data, 14)

	for i, v := range result {
		if v != 50 {
			t.Errorf("RSI[%d]: expected neutral 50 during warm-up, got %f", i, v)
		}
	}
}

func TestCalculateRSIExtremes(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 100 - float64(i)
	}

	rsiUp := CalculateRSI(rising, 14)
	if last := rsiUp[len(rsiUp)-1]; last != 100 {
		t.Errorf("expected RSI 100 for monotonic rise, got %f", last)
	}

	rsiDown := CalculateRSI(falling, 14)
	if last := rsiDown[len(rsiDown)-1]; last != 0 {
		t.Errorf("expected RSI 0 for monotonic fall, got %f", last)
	}
}

func TestCalculateMACD(t *testing.T) {
	data := make([]float64, 60)
	for i := range data {
		data[i] = 100 + float64(i)*0.5
	}

	result := CalculateMACD(data, 12, 26, 9)
	if len(result.MACD) != len(data) || len(result.Signal) != len(data) || len(result.Histogram) != len(data) {
		t.Fatalf("MACD component lengths must match input length %d", len(data))
	}

	for i := range data {
		if !almostEqual(result.Histogram[i], result.MACD[i]-result.Signal[i]) {
			t.Errorf("histogram[%d] must equal macd-signal", i)
		}
	}

	// steadily rising prices keep the fast EMA above the slow one
	if result.MACD[len(data)-1] <= 0 {
		t.Errorf("expected positive MACD in an uptrend, got %f", result.MACD[len(data)-1])
	}
}

func TestCalculateBollingerBands(t *testing.T) {
	data := []float64{100, 102, 101, 103, 102, 104, 103}
	result := CalculateBollingerBands(data, 5, 2.0)

	// bands collapse onto the price while warming up
	for i := 0; i < 4; i++ {
		if result.Upper[i] != data[i] || result.Middle[i] != data[i] || result.Lower[i] != data[i] {
			t.Errorf("bands at index %d should collapse onto price %f", i, data[i])
		}
	}

	for i := 4; i < len(data); i++ {
		if result.Upper[i] <= result.Middle[i] || result.Middle[i] <= result.Lower[i] {
			t.Errorf("band ordering violated at index %d", i)
		}
	}
}

func TestCalculateBollingerBandsFlatPrices(t *testing.T) {
	data := []float64{50, 50, 50, 50, 50, 50}
	result := CalculateBollingerBands(data, 5, 2.0)

	last := len(data) - 1
	if result.Upper[last] != 50 || result.Lower[last] != 50 {
		t.Errorf("flat prices must produce zero-width bands, got [%f, %f]",
			result.Lower[last], result.Upper[last])
	}
}

func TestCalculateStochastic(t *testing.T) {
	highs := []float64{10, 11, 12, 13, 14}
	lows := []float64{8, 9, 10, 11, 12}
	closes := []float64{9, 10, 11, 12, 14}

	result := CalculateStochastic(highs, lows, closes, 3, 2)
	if len(result.K) != len(closes) || len(result.D) != len(closes) {
		t.Fatalf("stochastic lines must match input length")
	}

	// warm-up is neutral
	if result.K[0] != 50 || result.K[1] != 50 {
		t.Errorf("expected neutral 50 during %%K warm-up")
	}

	// close at the top of the window pins %K to 100
	if result.K[4] != 100 {
		t.Errorf("expected %%K 100 when close equals window high, got %f", result.K[4])
	}
}

func TestCalculateStochasticFlatWindow(t *testing.T) {
	highs := []float64{10, 10, 10, 10}
	lows := []float64{10, 10, 10, 10}
	closes := []float64{10, 10, 10, 10}

	result := CalculateStochastic(highs, lows, closes, 3, 2)
	for i, v := range result.K {
		if v != 50 {
			t.Errorf("%%K[%d]: expected 50 on a rangeless window, got %f", i, v)
		}
	}
}

func TestCalculateATR(t *testing.T) {
	highs := []float64{10, 11, 12, 13}
	lows := []float64{9, 10, 10, 11}
	closes := []float64{9.5, 10.5, 11, 12.5}

	result := CalculateATR(highs, lows, closes, 2)
	if len(result) != len(closes) {
		t.Fatalf("expected %d values, got %d", len(closes), len(result))
	}

	// no full true-range window exists before index 2
	if result[0] != 0 || result[1] != 0 {
		t.Errorf("expected leading zeros during warm-up, got %f, %f", result[0], result[1])
	}

	// tr[1]=max(1, |11-9.5|, |10-9.5|)=1.5, tr[2]=max(2, |12-10.5|, |10-10.5|)=2
	if !almostEqual(result[2], 1.75) {
		t.Errorf("ATR[2]: expected 1.75, got %f", result[2])
	}

	// tr[3] = max(2, |13-11|, |11-11|) = 2, window (2+2)/2
	if !almostEqual(result[3], 2) {
		t.Errorf("ATR[3]: expected 2, got %f", result[3])
	}
}

func TestCalculateATRShortSeries(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10, 10}
	closes := []float64{9.5, 10.5, 11}

	// with period 14 the true-range window never fills, so all values stay 0
	result := CalculateATR(highs, lows, closes, 14)
	for i, v := range result {
		if v != 0 {
			t.Errorf("ATR[%d]: expected 0 with unfilled window, got %f", i, v)
		}
	}
}

func TestCalculateWilliamsR(t *testing.T) {
	highs := []float64{10, 12, 14}
	lows := []float64{8, 9, 10}
	closes := []float64{9, 11, 14}

	result := CalculateWilliamsR(highs, lows, closes, 3)
	if result[0] != -50 || result[1] != -50 {
		t.Errorf("expected -50 during warm-up")
	}

	// close at the window high gives 0
	if !almostEqual(result[2], 0) {
		t.Errorf("expected %%R 0 at window high, got %f", result[2])
	}
}

func TestCalculateWilliamsRFlatWindow(t *testing.T) {
	flat := []float64{10, 10, 10}
	result := CalculateWilliamsR(flat, flat, flat, 3)
	if result[2] != -50 {
		t.Errorf("expected -50 on a rangeless window, got %f", result[2])
	}
}

func TestCalculateCCI(t *testing.T) {
	highs := []float64{10, 11, 12, 13, 14}
	lows := []float64{8, 9, 10, 11, 12}
	closes := []float64{9, 10, 11, 12, 13}

	result := CalculateCCI(highs, lows, closes, 3)
	if result[0] != 0 || result[1] != 0 {
		t.Errorf("expected 0 during CCI warm-up")
	}

	// a steady uptrend keeps the typical price above the window mean
	if result[4] <= 0 {
		t.Errorf("expected positive CCI in an uptrend, got %f", result[4])
	}
}

func TestCalculateCCIFlatPrices(t *testing.T) {
	flat := []float64{10, 10, 10, 10}
	result := CalculateCCI(flat, flat, flat, 3)
	for i, v := range result {
		if v != 0 {
			t.Errorf("CCI[%d]: expected 0 on flat prices, got %f", i, v)
		}
	}
}

func TestCalculateADX(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*2
		highs[i] = base + 1
		lows[i] = base - 1
		closes[i] = base
	}

	result := CalculateADX(highs, lows, closes, 14)
	if len(result) != n {
		t.Fatalf("expected length %d, got %d", n, len(result))
	}

	for i := 0; i < 14; i++ {
		if result[i] != 0 {
			t.Errorf("ADX[%d]: expected 0 during warm-up, got %f", i, result[i])
		}
	}

	// a persistent one-way trend drives ADX high
	if last := result[n-1]; last < 25 {
		t.Errorf("expected strong-trend ADX, got %f", last)
	}
}

func TestCalculateADXFlatPrices(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}

	result := CalculateADX(flat, flat, flat, 14)
	for i, v := range result {
		if v != 0 {
			t.Errorf("ADX[%d]: expected 0 on flat prices, got %f", i, v)
		}
	}
}
