package strategy

import (
	"testing"

	"crypto-paper-trader/internal/binance"
)

// risingCandles builds a steady uptrend, one unit per bar
func risingCandles(n int) []binance.Candle {
	candles := make([]binance.Candle, n)
	for i := 0; i < n; i++ {
		close := 100 + float64(i)
		candles[i] = binance.Candle{
			Open:   close - 1,
			High:   close + 0.5,
			Low:    close - 0.5,
			Close:  close,
			Volume: 1000,
		}
	}
	return candles
}

func TestNewUnknownRiskLevel(t *testing.T) {
	if _, err := New(RiskLevel("EXTREME"), Config{}); err == nil {
		t.Fatal("expected error for unknown risk level")
	}
}

func TestNewReturnsAllVariants(t *testing.T) {
	for _, level := range []RiskLevel{RiskHigh, RiskMedium, RiskLow} {
		s, err := New(level, Config{ConfidenceThreshold: 0.6})
		if err != nil {
			t.Fatalf("New(%s): %v", level, err)
		}
		if s.RiskLevel() != level {
			t.Errorf("expected risk level %s, got %s", level, s.RiskLevel())
		}
	}
}

func TestEvaluateInsufficientData(t *testing.T) {
	candles := risingCandles(MinCandles - 1)

	for _, level := range []RiskLevel{RiskHigh, RiskMedium, RiskLow} {
		s, err := New(level, Config{ConfidenceThreshold: 0.6})
		if err != nil {
			t.Fatalf("New(%s): %v", level, err)
		}

		sig, err := s.Evaluate(candles)
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", level, err)
		}
		if sig.Type != SignalHold {
			t.Errorf("%s: expected HOLD with short history, got %s", level, sig.Type)
		}
		if sig.Confidence != 0 {
			t.Errorf("%s: expected zero confidence, got %f", level, sig.Confidence)
		}
		if sig.Reason != "Insufficient data" {
			t.Errorf("%s: unexpected reason %q", level, sig.Reason)
		}
	}
}

func TestHighRiskSellsOverboughtTrend(t *testing.T) {
	s, err := New(RiskHigh, Config{ConfidenceThreshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	// 60 bars of one-way rise: RSI pins at 100, stochastic and Williams %R
	// read overbought, CCI stretches above 100
	sig, err := s.Evaluate(risingCandles(60))
	if err != nil {
		t.Fatal(err)
	}

	if sig.Type != SignalSell {
		t.Fatalf("expected SELL on an overbought runaway trend, got %s (%s)", sig.Type, sig.Reason)
	}
	if sig.Confidence < 0.5 {
		t.Errorf("confidence %f below threshold yet signal emitted", sig.Confidence)
	}
}

func TestTallyRespectsThreshold(t *testing.T) {
	s, err := New(RiskHigh, Config{ConfidenceThreshold: 0.99})
	if err != nil {
		t.Fatal(err)
	}

	sig, err := s.Evaluate(risingCandles(60))
	if err != nil {
		t.Fatal(err)
	}

	if sig.Type != SignalHold {
		t.Errorf("expected HOLD when average confidence misses the threshold, got %s", sig.Type)
	}
}

func TestTallyAveragesAcrossSides(t *testing.T) {
	votes := []vote{
		{SignalBuy, 0.8},
		{SignalBuy, 0.8},
		{SignalSell, 0.3},
	}

	// the dissenting sell vote drags the combined mean to 0.633, under the
	// threshold, even though the buy side alone averages 0.8
	sig := tally("Test strategy", votes, 0.7, nil)
	if sig.Type != SignalHold {
		t.Fatalf("expected HOLD when disagreement dilutes confidence, got %s", sig.Type)
	}
	if sig.Confidence < 0.63 || sig.Confidence > 0.64 {
		t.Errorf("expected combined mean ~0.633 reported on HOLD, got %f", sig.Confidence)
	}

	sig = tally("Test strategy", votes, 0.6, nil)
	if sig.Type != SignalBuy {
		t.Fatalf("expected BUY once the combined mean clears the threshold, got %s", sig.Type)
	}
	if sig.Confidence < 0.63 || sig.Confidence > 0.64 {
		t.Errorf("expected confidence ~0.633, got %f", sig.Confidence)
	}
}

func TestIndicatorSnapshots(t *testing.T) {
	candles := risingCandles(60)

	cases := []struct {
		level RiskLevel
		keys  []string
	}{
		{RiskHigh, []string{"rsi", "macd", "bb_position", "stoch_k", "stoch_d", "williams_r", "cci", "adx", "atr"}},
		{RiskMedium, []string{"sma_20", "sma_50", "ema_12", "ema_26", "rsi", "macd", "bb_position"}},
		{RiskLow, []string{"sma_20", "sma_50", "rsi", "macd", "bb_position", "williams_r", "cci", "adx", "atr"}},
	}

	for _, tc := range cases {
		s, err := New(tc.level, Config{ConfidenceThreshold: 0.6})
		if err != nil {
			t.Fatalf("New(%s): %v", tc.level, err)
		}

		sig, err := s.Evaluate(candles)
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", tc.level, err)
		}

		if len(sig.Indicators) != len(tc.keys) {
			t.Errorf("%s: expected %d indicators, got %d", tc.level, len(tc.keys), len(sig.Indicators))
		}
		for _, key := range tc.keys {
			if _, ok := sig.Indicators[key]; !ok {
				t.Errorf("%s: missing indicator %q", tc.level, key)
			}
		}
	}
}

func TestLowRiskBuysConfirmedUptrend(t *testing.T) {
	s, err := New(RiskLow, Config{ConfidenceThreshold: 0.6})
	if err != nil {
		t.Fatal(err)
	}

	// a long clean rise keeps both SMA slopes positive with price stacked
	// above them and MACD held above its signal line
	sig, err := s.Evaluate(risingCandles(80))
	if err != nil {
		t.Fatal(err)
	}

	if sig.Type == SignalSell {
		t.Errorf("unexpected SELL in a confirmed uptrend: %s", sig.Reason)
	}
}
