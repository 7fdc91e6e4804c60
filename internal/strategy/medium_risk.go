package strategy

import (
	"crypto-paper-trader/internal/binance"
	"crypto-paper-trader/internal/indicator"
)

// mediumRiskStrategy trades moving-average crossovers confirmed by
// oscillators, a middle ground between momentum chasing and trend following.
type mediumRiskStrategy struct {
	cfg Config
}

func (s *mediumRiskStrategy) Name() string { return "Medium risk strategy" }

func (s *mediumRiskStrategy) RiskLevel() RiskLevel { return RiskMedium }

func (s *mediumRiskStrategy) Evaluate(candles []binance.Candle) (*Signal, error) {
	if len(candles) < MinCandles {
		return insufficientDataSignal(), nil
	}

	cols := extractSeries(candles)
	last := len(cols.closes) - 1
	prev := last - 1
	price := cols.closes[last]

	sma20 := indicator.CalculateSMA(cols.closes, 20)
	sma50 := indicator.CalculateSMA(cols.closes, 50)
	ema12 := indicator.CalculateEMA(cols.closes, 12)
	ema26 := indicator.CalculateEMA(cols.closes, 26)
	rsi := indicator.CalculateRSI(cols.closes, 14)
	macd := indicator.CalculateMACD(cols.closes, 12, 26, 9)
	bb := indicator.CalculateBollingerBands(cols.closes, 20, 2.0)
	williamsR := indicator.CalculateWilliamsR(cols.highs, cols.lows, cols.closes, 14)
	cci := indicator.CalculateCCI(cols.highs, cols.lows, cols.closes, 20)
	adx := indicator.CalculateADX(cols.highs, cols.lows, cols.closes, 14)

	bbPos := bbPosition(price, bb.Upper[last], bb.Lower[last])

	var votes []vote

	// golden / death cross on the 20 and 50 SMAs
	if sma20[last] > sma50[last] && sma20[prev] <= sma50[prev] {
		votes = append(votes, vote{SignalBuy, 0.8})
	} else if sma20[last] < sma50[last] && sma20[prev] >= sma50[prev] {
		votes = append(votes, vote{SignalSell, 0.8})
	}

	// EMA crossover
	if ema12[last] > ema26[last] && ema12[prev] <= ema26[prev] {
		votes = append(votes, vote{SignalBuy, 0.7})
	} else if ema12[last] < ema26[last] && ema12[prev] >= ema26[prev] {
		votes = append(votes, vote{SignalSell, 0.7})
	}

	// neutral RSI, follow price against the 20-bar average
	if rsi[last] >= 40 && rsi[last] <= 60 {
		if price > sma20[last] {
			votes = append(votes, vote{SignalBuy, 0.6})
		} else if price < sma20[last] {
			votes = append(votes, vote{SignalSell, 0.6})
		}
	}

	// band position confirmed by RSI side
	if bbPos < 0.2 && rsi[last] < 50 {
		votes = append(votes, vote{SignalBuy, 0.7})
	} else if bbPos > 0.8 && rsi[last] > 50 {
		votes = append(votes, vote{SignalSell, 0.7})
	}

	// MACD histogram flipping sign
	if macd.Histogram[last] > 0 && macd.Histogram[prev] <= 0 {
		votes = append(votes, vote{SignalBuy, 0.6})
	} else if macd.Histogram[last] < 0 && macd.Histogram[prev] >= 0 {
		votes = append(votes, vote{SignalSell, 0.6})
	}

	// Williams %R extremes confirmed by RSI
	if williamsR[last] < -70 && rsi[last] < 40 {
		votes = append(votes, vote{SignalBuy, 0.8})
	} else if williamsR[last] > -30 && rsi[last] > 60 {
		votes = append(votes, vote{SignalSell, 0.8})
	}

	// CCI extremes confirmed by band position
	if cci[last] < -100 && bbPos < 0.3 {
		votes = append(votes, vote{SignalBuy, 0.7})
	} else if cci[last] > 100 && bbPos > 0.7 {
		votes = append(votes, vote{SignalSell, 0.7})
	}

	// trending market with the EMAs stacked in order
	if adx[last] > 20 {
		if price > ema12[last] && ema12[last] > ema26[last] {
			votes = append(votes, vote{SignalBuy, 0.6})
		} else if price < ema12[last] && ema12[last] < ema26[last] {
			votes = append(votes, vote{SignalSell, 0.6})
		}
	}

	indicators := map[string]float64{
		"sma_20":      sma20[last],
		"sma_50":      sma50[last],
		"ema_12":      ema12[last],
		"ema_26":      ema26[last],
		"rsi":         rsi[last],
		"macd":        macd.MACD[last],
		"bb_position": bbPos,
	}

	return tally(s.Name(), votes, s.cfg.ConfidenceThreshold, indicators), nil
}
