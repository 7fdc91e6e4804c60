package strategy

import (
	"fmt"
	"time"

	"crypto-paper-trader/internal/binance"
)

// MinCandles is the minimum history needed before any strategy produces a
// real signal. Below this every strategy holds.
const MinCandles = 50

// SignalType classifies a strategy decision
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// RiskLevel selects one of the built-in strategy variants
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// Signal is the outcome of one strategy evaluation
type Signal struct {
	Type       SignalType         `json:"type"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason"`
	Indicators map[string]float64 `json:"indicators"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Config carries the tunables shared by all strategy variants
type Config struct {
	ConfidenceThreshold float64
}

// Strategy evaluates candle history into a trading signal
type Strategy interface {
	Name() string
	RiskLevel() RiskLevel
	Evaluate(candles []binance.Candle) (*Signal, error)
}

// New returns the strategy for the given risk level
func New(level RiskLevel, cfg Config) (Strategy, error) {
	switch level {
	case RiskHigh:
		return &highRiskStrategy{cfg: cfg}, nil
	case RiskMedium:
		return &mediumRiskStrategy{cfg: cfg}, nil
	case RiskLow:
		return &lowRiskStrategy{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown risk level: %q", level)
	}
}

// vote is a single sub-rule contribution to the final decision
type vote struct {
	signal     SignalType
	confidence float64
}

// series holds the per-field candle columns the indicator functions consume
type series struct {
	highs   []float64
	lows    []float64
	closes  []float64
	volumes []float64
}

func extractSeries(candles []binance.Candle) series {
	s := series{
		highs:   make([]float64, len(candles)),
		lows:    make([]float64, len(candles)),
		closes:  make([]float64, len(candles)),
		volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.highs[i] = c.High
		s.lows[i] = c.Low
		s.closes[i] = c.Close
		s.volumes[i] = c.Volume
	}
	return s
}

func insufficientDataSignal() *Signal {
	return &Signal{
		Type:       SignalHold,
		Confidence: 0,
		Reason:     "Insufficient data",
		Indicators: map[string]float64{},
		Timestamp:  time.Now(),
	}
}

// tally turns the sub-rule votes into a final signal. Confidence is the mean
// over every fired vote regardless of side, so disagreement between sub-rules
// drags it down. The majority side wins only when that combined mean clears
// the threshold, otherwise the strategy holds.
func tally(name string, votes []vote, threshold float64, indicators map[string]float64) *Signal {
	var buyCount, sellCount int
	var totalConf float64
	for _, v := range votes {
		switch v.signal {
		case SignalBuy:
			buyCount++
		case SignalSell:
			sellCount++
		}
		totalConf += v.confidence
	}

	var avg float64
	if fired := buyCount + sellCount; fired > 0 {
		avg = totalConf / float64(fired)
	}

	sig := &Signal{
		Type:       SignalHold,
		Confidence: avg,
		Indicators: indicators,
		Timestamp:  time.Now(),
	}

	if buyCount > sellCount && avg >= threshold {
		sig.Type = SignalBuy
		sig.Reason = fmt.Sprintf("%s: %d buy signals, confidence: %.2f", name, buyCount, avg)
		return sig
	}
	if sellCount > buyCount && avg >= threshold {
		sig.Type = SignalSell
		sig.Reason = fmt.Sprintf("%s: %d sell signals, confidence: %.2f", name, sellCount, avg)
		return sig
	}

	sig.Reason = fmt.Sprintf("%s: insufficient signals (buy: %d, sell: %d)", name, buyCount, sellCount)
	return sig
}

// bbPosition locates price inside the Bollinger channel, 0 at the lower band
// and 1 at the upper. A zero-width channel maps to the middle.
func bbPosition(price, upper, lower float64) float64 {
	if upper == lower {
		return 0.5
	}
	return (price - lower) / (upper - lower)
}

// slope measures recent direction as the average of the last 5 values minus
// the average of the 5 before them
func slope(data []float64) float64 {
	n := len(data)
	if n < 10 {
		return 0
	}
	var recent, prior float64
	for i := n - 5; i < n; i++ {
		recent += data[i]
	}
	for i := n - 10; i < n-5; i++ {
		prior += data[i]
	}
	return (recent - prior) / 5
}

// volumeRatio compares the last volume to the average of the trailing 10
// bars. An empty or zero average defaults to 1.
func volumeRatio(volumes []float64) float64 {
	n := len(volumes)
	if n == 0 {
		return 1
	}
	window := 10
	if n < window {
		window = n
	}
	var sum float64
	for i := n - window; i < n; i++ {
		sum += volumes[i]
	}
	avg := sum / float64(window)
	if avg == 0 {
		return 1
	}
	return volumes[n-1] / avg
}
