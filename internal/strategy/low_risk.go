package strategy

import (
	"crypto-paper-trader/internal/binance"
	"crypto-paper-trader/internal/indicator"
)

// lowRiskStrategy waits for sustained, multi-bar confirmation: aligned trend
// slopes, persistent MACD posture and volume backing before it commits.
type lowRiskStrategy struct {
	cfg Config
}

func (s *lowRiskStrategy) Name() string { return "Low risk strategy" }

func (s *lowRiskStrategy) RiskLevel() RiskLevel { return RiskLow }

func (s *lowRiskStrategy) Evaluate(candles []binance.Candle) (*Signal, error) {
	if len(candles) < MinCandles {
		return insufficientDataSignal(), nil
	}

	cols := extractSeries(candles)
	last := len(cols.closes) - 1
	price := cols.closes[last]

	sma20 := indicator.CalculateSMA(cols.closes, 20)
	sma50 := indicator.CalculateSMA(cols.closes, 50)
	rsi := indicator.CalculateRSI(cols.closes, 14)
	macd := indicator.CalculateMACD(cols.closes, 12, 26, 9)
	bb := indicator.CalculateBollingerBands(cols.closes, 20, 2.0)
	williamsR := indicator.CalculateWilliamsR(cols.highs, cols.lows, cols.closes, 14)
	cci := indicator.CalculateCCI(cols.highs, cols.lows, cols.closes, 20)
	adx := indicator.CalculateADX(cols.highs, cols.lows, cols.closes, 14)
	atr := indicator.CalculateATR(cols.highs, cols.lows, cols.closes, 14)

	bbPos := bbPosition(price, bb.Upper[last], bb.Lower[last])
	volRatio := volumeRatio(cols.volumes)
	atrRatio := 0.0
	if price != 0 {
		atrRatio = atr[last] / price
	}

	var votes []vote

	// both moving averages rising with price stacked above them
	sma20Slope := slope(sma20)
	sma50Slope := slope(sma50)
	if sma20Slope > 0 && sma50Slope > 0 && price > sma20[last] && sma20[last] > sma50[last] {
		votes = append(votes, vote{SignalBuy, 0.9})
	} else if sma20Slope < 0 && sma50Slope < 0 && price < sma20[last] && sma20[last] < sma50[last] {
		votes = append(votes, vote{SignalSell, 0.9})
	}

	// RSI recovering from the lower half or rolling over from the upper
	rsiSlope := slope(rsi)
	if rsi[last] >= 30 && rsi[last] <= 50 && rsiSlope > 0 {
		votes = append(votes, vote{SignalBuy, 0.7})
	} else if rsi[last] >= 50 && rsi[last] <= 70 && rsiSlope < 0 {
		votes = append(votes, vote{SignalSell, 0.7})
	}

	// MACD held on one side of its signal line for most of the last 5 bars
	aboveCount := 0
	for i := last - 4; i <= last; i++ {
		if macd.MACD[i] > macd.Signal[i] {
			aboveCount++
		}
	}
	if aboveCount >= 4 && macd.MACD[last] > macd.Signal[last] {
		votes = append(votes, vote{SignalBuy, 0.8})
	} else if aboveCount <= 1 && macd.MACD[last] < macd.Signal[last] {
		votes = append(votes, vote{SignalSell, 0.8})
	}

	// band extreme with volume confirmation
	if bbPos < 0.3 && volRatio > 1.2 {
		votes = append(votes, vote{SignalBuy, 0.6})
	} else if bbPos > 0.7 && volRatio > 1.2 {
		votes = append(votes, vote{SignalSell, 0.6})
	}

	// calm market, lean with the long average
	if atr[last] > 0 && atrRatio < 0.005 {
		if price > sma50[last] {
			votes = append(votes, vote{SignalBuy, 0.6})
		} else if price < sma50[last] {
			votes = append(votes, vote{SignalSell, 0.6})
		}
	}

	// established trend with Williams %R agreeing on direction
	if adx[last] > 30 {
		if williamsR[last] < -50 && price > sma50[last] {
			votes = append(votes, vote{SignalBuy, 0.8})
		} else if williamsR[last] > -50 && price < sma50[last] {
			votes = append(votes, vote{SignalSell, 0.8})
		}
	}

	// CCI pullback aligned with MACD posture
	if cci[last] < -50 && macd.MACD[last] > macd.Signal[last] {
		votes = append(votes, vote{SignalBuy, 0.7})
	} else if cci[last] > 50 && macd.MACD[last] < macd.Signal[last] {
		votes = append(votes, vote{SignalSell, 0.7})
	}

	// volume surge during elevated volatility
	if volRatio > 1.5 && atrRatio > 0.01 {
		if price > sma20[last] {
			votes = append(votes, vote{SignalBuy, 0.5})
		} else if price < sma20[last] {
			votes = append(votes, vote{SignalSell, 0.5})
		}
	}

	indicators := map[string]float64{
		"sma_20":      sma20[last],
		"sma_50":      sma50[last],
		"rsi":         rsi[last],
		"macd":        macd.MACD[last],
		"bb_position": bbPos,
		"williams_r":  williamsR[last],
		"cci":         cci[last],
		"adx":         adx[last],
		"atr":         atr[last],
	}

	return tally(s.Name(), votes, s.cfg.ConfidenceThreshold, indicators), nil
}
