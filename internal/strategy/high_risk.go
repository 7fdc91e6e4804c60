package strategy

import (
	"math"

	"crypto-paper-trader/internal/binance"
	"crypto-paper-trader/internal/indicator"
)

// highRiskStrategy trades momentum extremes: oscillator overbought/oversold
// levels, band touches and short-lived crossovers.
type highRiskStrategy struct {
	cfg Config
}

func (s *highRiskStrategy) Name() string { return "High risk strategy" }

func (s *highRiskStrategy) RiskLevel() RiskLevel { return RiskHigh }

func (s *highRiskStrategy) Evaluate(candles []binance.Candle) (*Signal, error) {
	if len(candles) < MinCandles {
		return insufficientDataSignal(), nil
	}

	cols := extractSeries(candles)
	last := len(cols.closes) - 1
	prev := last - 1
	price := cols.closes[last]

	rsi := indicator.CalculateRSI(cols.closes, 14)
	macd := indicator.CalculateMACD(cols.closes, 12, 26, 9)
	bb := indicator.CalculateBollingerBands(cols.closes, 20, 2.0)
	stoch := indicator.CalculateStochastic(cols.highs, cols.lows, cols.closes, 14, 3)
	williamsR := indicator.CalculateWilliamsR(cols.highs, cols.lows, cols.closes, 14)
	cci := indicator.CalculateCCI(cols.highs, cols.lows, cols.closes, 20)
	adx := indicator.CalculateADX(cols.highs, cols.lows, cols.closes, 14)
	atr := indicator.CalculateATR(cols.highs, cols.lows, cols.closes, 14)
	sma20 := indicator.CalculateSMA(cols.closes, 20)

	var votes []vote

	// oversold / overbought RSI
	if rsi[last] < 30 {
		votes = append(votes, vote{SignalBuy, 0.8})
	} else if rsi[last] > 70 {
		votes = append(votes, vote{SignalSell, 0.8})
	}

	// MACD line crossing its signal line
	if macd.MACD[last] > macd.Signal[last] && macd.MACD[prev] <= macd.Signal[prev] {
		votes = append(votes, vote{SignalBuy, 0.7})
	} else if macd.MACD[last] < macd.Signal[last] && macd.MACD[prev] >= macd.Signal[prev] {
		votes = append(votes, vote{SignalSell, 0.7})
	}

	// price touching a Bollinger band
	if price <= bb.Lower[last] {
		votes = append(votes, vote{SignalBuy, 0.6})
	} else if price >= bb.Upper[last] {
		votes = append(votes, vote{SignalSell, 0.6})
	}

	// stochastic extremes on both lines
	if stoch.K[last] < 20 && stoch.D[last] < 20 {
		votes = append(votes, vote{SignalBuy, 0.5})
	} else if stoch.K[last] > 80 && stoch.D[last] > 80 {
		votes = append(votes, vote{SignalSell, 0.5})
	}

	// Williams %R extremes
	if williamsR[last] < -80 {
		votes = append(votes, vote{SignalBuy, 0.6})
	} else if williamsR[last] > -20 {
		votes = append(votes, vote{SignalSell, 0.6})
	}

	// CCI extremes
	if cci[last] < -100 {
		votes = append(votes, vote{SignalBuy, 0.5})
	} else if cci[last] > 100 {
		votes = append(votes, vote{SignalSell, 0.5})
	}

	// strong trend, take the side of the 20-bar average
	if adx[last] > 25 {
		if price > sma20[last] {
			votes = append(votes, vote{SignalBuy, 0.7})
		} else {
			votes = append(votes, vote{SignalSell, 0.7})
		}
	}

	// volatility burst with directional momentum
	atrRatio := 0.0
	if price != 0 {
		atrRatio = atr[last] / price
	}
	pctChange := 0.0
	if cols.closes[prev] != 0 {
		pctChange = (price - cols.closes[prev]) / cols.closes[prev]
	}
	if atrRatio > 0.01 && math.Abs(pctChange) > 0.001 {
		if pctChange > 0 {
			votes = append(votes, vote{SignalBuy, 0.3})
		} else {
			votes = append(votes, vote{SignalSell, 0.3})
		}
	}

	indicators := map[string]float64{
		"rsi":         rsi[last],
		"macd":        macd.MACD[last],
		"bb_position": bbPosition(price, bb.Upper[last], bb.Lower[last]),
		"stoch_k":     stoch.K[last],
		"stoch_d":     stoch.D[last],
		"williams_r":  williamsR[last],
		"cci":         cci[last],
		"adx":         adx[last],
		"atr":         atr[last],
	}

	return tally(s.Name(), votes, s.cfg.ConfidenceThreshold, indicators), nil
}
