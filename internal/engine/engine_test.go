package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-paper-trader/internal/binance"
	"crypto-paper-trader/internal/database"
	"crypto-paper-trader/internal/events"
	"crypto-paper-trader/internal/logging"
	"crypto-paper-trader/internal/position"
)

type fakeFeed struct {
	candles []binance.Candle
	calls   int
}

func (f *fakeFeed) FetchCandles(_ context.Context, _, _ string, _ int) ([]binance.Candle, error) {
	f.calls++
	return f.candles, nil
}

type fakePrices struct {
	mu    sync.Mutex
	price float64
}

func (f *fakePrices) set(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = p
}

func (f *fakePrices) CurrentPrice(_ context.Context, _ string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, nil
}

type fakeStore struct {
	mu       sync.Mutex
	configs  []database.StrategyConfig
	trades   []database.Trade
	logs     []database.AnalysisLog
	pnls     []float64
	daily    []float64
	perfPnLs []float64
}

func (f *fakeStore) ListStrategyConfigs(_ context.Context, _ bool) ([]database.StrategyConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs, nil
}

func (f *fakeStore) SaveTrade(_ context.Context, trade *database.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, *trade)
	if trade.IsExit {
		f.pnls = append(f.pnls, trade.PnL)
	}
	return nil
}

func (f *fakeStore) SaveAnalysisLog(_ context.Context, entry *database.AnalysisLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) UpdateStrategyPerformance(_ context.Context, _ string, pnl, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perfPnLs = append(f.perfPnLs, pnl)
	return nil
}

func (f *fakeStore) RecentExitPnLs(_ context.Context, _ string, _ time.Time) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pnls, nil
}

func (f *fakeStore) RecordDailyTrade(_ context.Context, _ string, _ time.Time, pnl float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daily = append(f.daily, pnl)
	return nil
}

func (f *fakeStore) exitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pnls)
}

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

func testConfig() database.StrategyConfig {
	return database.StrategyConfig{
		ID:                  1,
		Name:                "test-high",
		Symbol:              "BTCUSDT",
		Timeframe:           "1m",
		RiskLevel:           "HIGH",
		Enabled:             true,
		ConfidenceThreshold: 0.5,
		PositionSizeUSD:     100,
		LeverageMin:         1,
		LeverageMax:         1,
		StopLossPercent:     2.0,
		TakeProfitPercent:   3.0,
		MaxDailyTrades:      10,
	}
}

func newTestEngine(feed CandleFeed, prices PriceSource, store Store) *Engine {
	logger := logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
	ledger := position.NewLedger(position.NewMemoryStore(), zerolog.Nop())
	return New(Config{
		TickInterval: time.Second,
		ErrorBackoff: time.Second,
		CandleLimit:  100,
	}, feed, prices, store, ledger, events.NewEventBus(), logger)
}

func TestEvaluateStrategyEntersTrade(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	prices := &fakePrices{price: 159}
	store := &fakeStore{}
	eng := newTestEngine(feed, prices, store)

	cfg := testConfig()
	if err := eng.evaluateStrategy(context.Background(), &cfg); err != nil {
		t.Fatal(err)
	}

	// an overbought runaway trend triggers a SELL entry
	if len(store.trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(store.trades))
	}
	if store.trades[0].Side != "SELL" {
		t.Errorf("expected SELL entry, got %s", store.trades[0].Side)
	}
	if len(store.logs) != 1 {
		t.Errorf("every evaluation must be logged, got %d logs", len(store.logs))
	}

	side, entry, qty, ok := eng.OpenTradeFor(cfg.Name)
	if !ok {
		t.Fatal("expected open trade tracked")
	}
	if side != "SELL" || entry != 159 {
		t.Errorf("unexpected open trade: %s at %f", side, entry)
	}
	// position sized as usd / price at leverage 1
	if !almostEqual(qty, 100.0/159) {
		t.Errorf("expected qty %f, got %f", 100.0/159, qty)
	}
}

func TestEvaluateStrategyLogsHold(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	store := &fakeStore{}
	eng := newTestEngine(feed, &fakePrices{}, store)

	cfg := testConfig()
	cfg.ConfidenceThreshold = 0.99

	if err := eng.evaluateStrategy(context.Background(), &cfg); err != nil {
		t.Fatal(err)
	}
	if len(store.trades) != 0 {
		t.Errorf("expected no trade below threshold, got %d", len(store.trades))
	}
	if len(store.logs) != 1 {
		t.Errorf("holds must still be logged, got %d logs", len(store.logs))
	}
}

func TestDailyTradeLimit(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	store := &fakeStore{}
	eng := newTestEngine(feed, &fakePrices{}, store)

	cfg := testConfig()
	cfg.MaxDailyTrades = 0

	if err := eng.evaluateStrategy(context.Background(), &cfg); err != nil {
		t.Fatal(err)
	}
	if len(store.trades) != 0 {
		t.Errorf("expected no trades at the daily cap, got %d", len(store.trades))
	}

	// a capped strategy skips before touching the feed or the analysis log
	if feed.calls != 0 {
		t.Errorf("expected no candle fetch at the daily cap, got %d", feed.calls)
	}
	if len(store.logs) != 0 {
		t.Errorf("expected no analysis log at the daily cap, got %d", len(store.logs))
	}
}

func TestCheckExitRestoresPersistedPosition(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	prices := &fakePrices{}
	store := &fakeStore{}
	eng := newTestEngine(feed, prices, store)

	cfg := testConfig()
	ctx := context.Background()

	// position exists in the ledger only, as after a process restart
	if _, _, err := eng.ledger.ApplyTrade(ctx, cfg.Symbol, "BUY", 1, 100); err != nil {
		t.Fatal(err)
	}

	prices.set(98.0)
	if err := eng.checkExit(ctx, &cfg); err != nil {
		t.Fatal(err)
	}
	if store.exitCount() != 1 {
		t.Fatal("exit must still cover positions restored from the ledger")
	}
	last := store.trades[len(store.trades)-1]
	if last.Reason != "STOP_LOSS" {
		t.Errorf("expected STOP_LOSS, got %s", last.Reason)
	}
	if !almostEqual(last.PnL, -2) {
		t.Errorf("expected realized -2, got %f", last.PnL)
	}
}

func TestEntryDedupSurvivesRestart(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	store := &fakeStore{}
	eng := newTestEngine(feed, &fakePrices{}, store)

	cfg := testConfig()
	ctx := context.Background()

	// a short already held in the ledger must block another SELL entry even
	// with no in-memory trade state
	if _, _, err := eng.ledger.ApplyTrade(ctx, cfg.Symbol, "SELL", 1, 150); err != nil {
		t.Fatal(err)
	}

	if err := eng.evaluateStrategy(ctx, &cfg); err != nil {
		t.Fatal(err)
	}
	if len(store.trades) != 0 {
		t.Errorf("expected no duplicate same-side entry, got %d trades", len(store.trades))
	}
	if len(store.logs) != 1 {
		t.Errorf("the evaluation itself must still be logged, got %d", len(store.logs))
	}
}

func TestFlipAtZeroPnLRecordsExit(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	store := &fakeStore{}
	eng := newTestEngine(feed, &fakePrices{}, store)

	cfg := testConfig()
	ctx := context.Background()

	st := eng.strategyState(cfg.Name)
	if _, _, err := eng.ledger.ApplyTrade(ctx, cfg.Symbol, "BUY", 1, 100); err != nil {
		t.Fatal(err)
	}
	st.open = &openTrade{side: "BUY", entryPrice: 100, qty: 1, leverage: 1}

	// entering SELL at the entry price closes the long for exactly zero pnl,
	// which still counts as a closed trade
	if err := eng.enterTrade(ctx, &cfg, st, "SELL", 100, "test", time.Now()); err != nil {
		t.Fatal(err)
	}
	if store.exitCount() != 1 {
		t.Fatalf("expected the flat close recorded as an exit, got %d", store.exitCount())
	}
	if !almostEqual(store.pnls[0], 0) {
		t.Errorf("expected zero realized pnl, got %f", store.pnls[0])
	}
	if len(store.perfPnLs) != 1 {
		t.Fatalf("expected one performance update, got %d", len(store.perfPnLs))
	}
	if _, _, _, ok := eng.OpenTradeFor(cfg.Name); ok {
		t.Error("a flat close must clear the open trade")
	}
}

func TestDailyCounterRollsOver(t *testing.T) {
	st := &runtimeState{tradeDate: "2026-08-29", dailyTrades: 7}
	st.rollDailyCounter(time.Date(2026, 8, 30, 0, 0, 1, 0, time.UTC))

	if st.dailyTrades != 0 {
		t.Errorf("counter must reset on a new UTC day, got %d", st.dailyTrades)
	}
	if st.tradeDate != "2026-08-30" {
		t.Errorf("unexpected trade date %s", st.tradeDate)
	}

	// same day keeps the counter
	st.dailyTrades = 3
	st.rollDailyCounter(time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC))
	if st.dailyTrades != 3 {
		t.Errorf("counter must survive within the same day, got %d", st.dailyTrades)
	}
}

func TestCheckExitStopLoss(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	prices := &fakePrices{}
	store := &fakeStore{}
	eng := newTestEngine(feed, prices, store)

	cfg := testConfig()
	ctx := context.Background()

	st := eng.strategyState(cfg.Name)
	if _, _, err := eng.ledger.ApplyTrade(ctx, cfg.Symbol, "BUY", 1, 100); err != nil {
		t.Fatal(err)
	}
	st.open = &openTrade{side: "BUY", entryPrice: 100, qty: 1, leverage: 1}

	// 2% stop loss on entry 100: 98.5 holds, 98.0 triggers inclusively
	prices.set(98.5)
	if err := eng.checkExit(ctx, &cfg); err != nil {
		t.Fatal(err)
	}
	if store.exitCount() != 0 {
		t.Fatal("exit must not trigger above the stop loss level")
	}

	prices.set(98.0)
	if err := eng.checkExit(ctx, &cfg); err != nil {
		t.Fatal(err)
	}
	if store.exitCount() != 1 {
		t.Fatal("exit must trigger at the stop loss level")
	}
	last := store.trades[len(store.trades)-1]
	if last.Reason != "STOP_LOSS" {
		t.Errorf("expected STOP_LOSS, got %s", last.Reason)
	}
	if !almostEqual(last.PnL, -2) {
		t.Errorf("expected realized -2, got %f", last.PnL)
	}
	if _, _, _, ok := eng.OpenTradeFor(cfg.Name); ok {
		t.Error("open trade must clear after exit")
	}
}

func TestCheckExitTakeProfit(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	prices := &fakePrices{}
	store := &fakeStore{}
	eng := newTestEngine(feed, prices, store)

	cfg := testConfig()
	ctx := context.Background()

	st := eng.strategyState(cfg.Name)
	if _, _, err := eng.ledger.ApplyTrade(ctx, cfg.Symbol, "BUY", 1, 100); err != nil {
		t.Fatal(err)
	}
	st.open = &openTrade{side: "BUY", entryPrice: 100, qty: 1, leverage: 1}

	// 3% take profit: 103 triggers inclusively
	prices.set(103)
	if err := eng.checkExit(ctx, &cfg); err != nil {
		t.Fatal(err)
	}
	if store.exitCount() != 1 {
		t.Fatal("exit must trigger at the take profit level")
	}
	last := store.trades[len(store.trades)-1]
	if last.Reason != "TAKE_PROFIT" {
		t.Errorf("expected TAKE_PROFIT, got %s", last.Reason)
	}
	if !almostEqual(last.PnL, 3) {
		t.Errorf("expected realized 3, got %f", last.PnL)
	}
}

func TestCheckExitShortSide(t *testing.T) {
	feed := &fakeFeed{candles: risingCandles(60)}
	prices := &fakePrices{}
	store := &fakeStore{}
	eng := newTestEngine(feed, prices, store)

	cfg := testConfig()
	ctx := context.Background()

	st := eng.strategyState(cfg.Name)
	if _, _, err := eng.ledger.ApplyTrade(ctx, cfg.Symbol, "SELL", 1, 100); err != nil {
		t.Fatal(err)
	}
	st.open = &openTrade{side: "SELL", entryPrice: 100, qty: 1, leverage: 1}

	// a short profits when price falls
	prices.set(97)
	if err := eng.checkExit(ctx, &cfg); err != nil {
		t.Fatal(err)
	}
	if store.exitCount() != 1 {
		t.Fatal("expected take profit on the short")
	}
	last := store.trades[len(store.trades)-1]
	if last.Reason != "TAKE_PROFIT" {
		t.Errorf("expected TAKE_PROFIT, got %s", last.Reason)
	}
	if !almostEqual(last.PnL, 3) {
		t.Errorf("expected realized 3, got %f", last.PnL)
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := SharpeRatio(nil); got != 0 {
		t.Errorf("empty pnls: expected 0, got %f", got)
	}
	if got := SharpeRatio([]float64{5}); got != 0 {
		t.Errorf("single pnl: expected 0, got %f", got)
	}
	if got := SharpeRatio([]float64{2, 2, 2}); got != 0 {
		t.Errorf("zero variance: expected 0, got %f", got)
	}

	// mean 3, population std 1
	if got := SharpeRatio([]float64{2, 4}); !almostEqual(got, 3) {
		t.Errorf("expected 3, got %f", got)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
