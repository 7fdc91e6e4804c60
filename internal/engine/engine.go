package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"crypto-paper-trader/internal/binance"
	"crypto-paper-trader/internal/database"
	"crypto-paper-trader/internal/events"
	"crypto-paper-trader/internal/logging"
	"crypto-paper-trader/internal/position"
	"crypto-paper-trader/internal/strategy"
)

// sharpeWindow is the trailing period over which the Sharpe ratio is
// computed from exit pnls
const sharpeWindow = 30 * 24 * time.Hour

// CandleFeed supplies kline history for strategy evaluation
type CandleFeed interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]binance.Candle, error)
}

// PriceSource supplies the latest price for exit checks
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Store is the persistence surface the engine needs
type Store interface {
	ListStrategyConfigs(ctx context.Context, enabledOnly bool) ([]database.StrategyConfig, error)
	SaveTrade(ctx context.Context, trade *database.Trade) error
	SaveAnalysisLog(ctx context.Context, entry *database.AnalysisLog) error
	UpdateStrategyPerformance(ctx context.Context, name string, pnl, sharpe float64) error
	RecentExitPnLs(ctx context.Context, strategyName string, since time.Time) ([]float64, error)
	RecordDailyTrade(ctx context.Context, strategyName string, day time.Time, pnl float64) error
}

// Config holds engine loop tunables
type Config struct {
	TickInterval time.Duration
	ErrorBackoff time.Duration
	CandleLimit  int
}

// openTrade tracks the exposure a strategy currently holds, so exits can be
// matched back to the strategy that opened them
type openTrade struct {
	side       string
	entryPrice float64
	qty        float64
	leverage   float64
}

// runtimeState is the per-strategy in-memory state across ticks. Performance
// totals live in the store only, so a restart cannot clobber them.
type runtimeState struct {
	dailyTrades int
	tradeDate   string
	open        *openTrade
}

// Engine drives the simulation: every tick it evaluates all enabled
// strategies against fresh candles, applies entries through the position
// ledger and closes trades that hit their stop loss or take profit.
type Engine struct {
	cfg    Config
	feed   CandleFeed
	prices PriceSource
	store  Store
	ledger *position.Ledger
	bus    *events.EventBus
	logger *logging.Logger
	rng    *rand.Rand

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	stateMu sync.Mutex
	state   map[string]*runtimeState
}

// New creates a new engine
func New(cfg Config, feed CandleFeed, prices PriceSource, store Store, ledger *position.Ledger, bus *events.EventBus, logger *logging.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		feed:   feed,
		prices: prices,
		store:  store,
		ledger: ledger,
		bus:    bus,
		logger: logger.WithComponent("engine"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		state:  make(map[string]*runtimeState),
	}
}

// Start launches the engine loop
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine is already running")
	}

	e.stopChan = make(chan struct{})
	e.running = true

	e.wg.Add(1)
	go e.run()

	e.logger.Info("Engine started", "tick_interval", e.cfg.TickInterval.String())
	e.bus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]interface{}{}})
	return nil
}

// Stop signals the loop to exit and waits for it
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	close(e.stopChan)
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Engine stopped")
	e.bus.Publish(events.Event{Type: events.EventEngineStopped, Data: map[string]interface{}{}})
}

// Running reports whether the loop is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if err := e.tick(context.Background()); err != nil {
				e.logger.Error("Tick failed", "error", err)
				e.bus.PublishError("engine", "tick failed", err)
				select {
				case <-e.stopChan:
					return
				case <-time.After(e.cfg.ErrorBackoff):
				}
			}
		}
	}
}

// tick runs one full pass: evaluate every enabled strategy, then check all
// open trades for stop loss and take profit
func (e *Engine) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()

	configs, err := e.store.ListStrategyConfigs(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load strategies: %w", err)
	}

	for i := range configs {
		if evalErr := e.evaluateStrategy(ctx, &configs[i]); evalErr != nil {
			e.logger.Error("Strategy evaluation failed", "strategy", configs[i].Name, "error", evalErr)
			e.bus.PublishError("engine", "strategy evaluation failed", evalErr)
		}
	}

	for i := range configs {
		if exitErr := e.checkExit(ctx, &configs[i]); exitErr != nil {
			e.logger.Error("Exit check failed", "strategy", configs[i].Name, "error", exitErr)
			e.bus.PublishError("engine", "exit check failed", exitErr)
		}
	}

	return nil
}

func (e *Engine) strategyState(name string) *runtimeState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	st, ok := e.state[name]
	if !ok {
		st = &runtimeState{tradeDate: utcDay(time.Now())}
		e.state[name] = st
	}
	return st
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// rollDailyCounter resets the per-day trade counter when the UTC date
// changes
func (st *runtimeState) rollDailyCounter(now time.Time) {
	day := utcDay(now)
	if st.tradeDate != day {
		st.tradeDate = day
		st.dailyTrades = 0
	}
}

// rehydrateOpen restores in-memory trade state from the persisted position,
// covering exposure opened before a restart. Leverage is not stored on the
// position row, so a restored trade assumes 1x.
func (e *Engine) rehydrateOpen(ctx context.Context, symbol string, st *runtimeState) error {
	if st.open != nil {
		return nil
	}
	pos, err := e.ledger.Get(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}
	if !pos.Open() {
		return nil
	}
	side := string(strategy.SignalBuy)
	if pos.Side == position.SideShort {
		side = string(strategy.SignalSell)
	}
	st.open = &openTrade{
		side:       side,
		entryPrice: pos.EntryPrice,
		qty:        pos.Qty,
		leverage:   1,
	}
	return nil
}

func (e *Engine) evaluateStrategy(ctx context.Context, cfg *database.StrategyConfig) error {
	st := e.strategyState(cfg.Name)
	now := time.Now()
	st.rollDailyCounter(now)

	if st.dailyTrades >= cfg.MaxDailyTrades {
		e.logger.Debug("Daily trade limit reached", "strategy", cfg.Name, "trades", st.dailyTrades)
		return nil
	}

	candles, err := e.feed.FetchCandles(ctx, cfg.Symbol, cfg.Timeframe, e.cfg.CandleLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch candles: %w", err)
	}
	if len(candles) < strategy.MinCandles {
		e.logger.Debug("Not enough candles", "strategy", cfg.Name, "candles", len(candles))
		return nil
	}

	strat, err := strategy.New(strategy.RiskLevel(cfg.RiskLevel), strategy.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	})
	if err != nil {
		return err
	}

	signal, err := strat.Evaluate(candles)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	price := candles[len(candles)-1].Close

	// every evaluation is recorded, holds included
	logEntry := &database.AnalysisLog{
		StrategyName: cfg.Name,
		Symbol:       cfg.Symbol,
		Signal:       string(signal.Type),
		Confidence:   signal.Confidence,
		Reason:       signal.Reason,
		Indicators:   signal.Indicators,
		Price:        price,
		AnalyzedAt:   time.Now(),
	}
	if err := e.store.SaveAnalysisLog(ctx, logEntry); err != nil {
		e.logger.Warn("Failed to save analysis log", "strategy", cfg.Name, "error", err)
	}
	e.bus.PublishAnalysis(cfg.Name, cfg.Symbol, string(signal.Type), signal.Confidence)

	if signal.Type == strategy.SignalHold {
		return nil
	}
	if signal.Confidence < cfg.ConfidenceThreshold {
		return nil
	}

	if err := e.rehydrateOpen(ctx, cfg.Symbol, st); err != nil {
		return err
	}

	side := string(signal.Type)
	if st.open != nil && st.open.side == side {
		return nil
	}

	e.bus.PublishSignal(cfg.Name, cfg.Symbol, side, signal.Reason, signal.Confidence, price)

	return e.enterTrade(ctx, cfg, st, side, price, signal.Reason, now)
}

// enterTrade sizes a new trade, applies it to the ledger and records it. A
// trade against an existing opposite position flips it, realizing the old
// exposure first.
func (e *Engine) enterTrade(ctx context.Context, cfg *database.StrategyConfig, st *runtimeState, side string, price float64, reason string, now time.Time) error {
	if price <= 0 {
		return fmt.Errorf("invalid price %f for %s", price, cfg.Symbol)
	}

	leverage := cfg.LeverageMin
	if cfg.LeverageMax > cfg.LeverageMin {
		leverage = cfg.LeverageMin + e.rng.Float64()*(cfg.LeverageMax-cfg.LeverageMin)
	}
	qty := cfg.PositionSizeUSD / price * leverage

	realized, pos, err := e.ledger.ApplyTrade(ctx, cfg.Symbol, side, qty, price)
	if err != nil {
		return fmt.Errorf("failed to apply trade: %w", err)
	}

	// a non-nil st.open here is always opposite-side, so the ledger flipped
	// it and closed the old exposure, possibly at zero pnl
	flipped := st.open != nil

	trade := &database.Trade{
		ClientOrderID: uuid.NewString(),
		StrategyName:  cfg.Name,
		Symbol:        cfg.Symbol,
		Side:          side,
		Price:         price,
		Quantity:      qty,
		Leverage:      leverage,
		PnL:           realized,
		IsExit:        flipped,
		Reason:        reason,
		ExecutedAt:    now,
	}
	if err := e.store.SaveTrade(ctx, trade); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	if flipped {
		e.recordClose(ctx, cfg, realized, now)
	}

	// an opposite entry of exactly the open quantity closes flat instead of
	// flipping, leaving nothing to track
	if pos.Open() {
		st.open = &openTrade{
			side:       side,
			entryPrice: price,
			qty:        pos.Qty,
			leverage:   leverage,
		}
	} else {
		st.open = nil
	}
	st.dailyTrades++

	e.logger.Info("Trade opened",
		"strategy", cfg.Name, "symbol", cfg.Symbol, "side", side,
		"price", price, "qty", qty, "leverage", leverage)
	e.bus.PublishTradeOpened(cfg.Name, cfg.Symbol, side, price, qty, leverage)
	e.bus.PublishPositionUpdate(pos.Symbol, string(pos.Side), pos.Qty, pos.EntryPrice, pos.LatestPrice, pos.UnrealizedPnL)

	return nil
}

// checkExit closes a strategy's open trade when the stop loss or take profit
// threshold is hit, both inclusive
func (e *Engine) checkExit(ctx context.Context, cfg *database.StrategyConfig) error {
	st := e.strategyState(cfg.Name)
	if err := e.rehydrateOpen(ctx, cfg.Symbol, st); err != nil {
		return err
	}
	if st.open == nil {
		return nil
	}

	price, err := e.prices.CurrentPrice(ctx, cfg.Symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch price: %w", err)
	}

	pos, err := e.ledger.MarkPrice(ctx, cfg.Symbol, price)
	if err != nil {
		return err
	}
	if pos != nil && pos.Open() {
		e.bus.PublishPositionUpdate(pos.Symbol, string(pos.Side), pos.Qty, pos.EntryPrice, pos.LatestPrice, pos.UnrealizedPnL)
	}

	pnlPct := (price - st.open.entryPrice) / st.open.entryPrice * 100
	if st.open.side == string(strategy.SignalSell) {
		pnlPct = -pnlPct
	}

	var reason string
	switch {
	case pnlPct <= -cfg.StopLossPercent:
		reason = "STOP_LOSS"
	case pnlPct >= cfg.TakeProfitPercent:
		reason = "TAKE_PROFIT"
	default:
		return nil
	}

	return e.closeTrade(ctx, cfg, st, price, reason)
}

func (e *Engine) closeTrade(ctx context.Context, cfg *database.StrategyConfig, st *runtimeState, price float64, reason string) error {
	closeSide := string(strategy.SignalSell)
	if st.open.side == string(strategy.SignalSell) {
		closeSide = string(strategy.SignalBuy)
	}

	realized, pos, err := e.ledger.ApplyTrade(ctx, cfg.Symbol, closeSide, st.open.qty, price)
	if err != nil {
		return fmt.Errorf("failed to close trade: %w", err)
	}

	now := time.Now()
	trade := &database.Trade{
		ClientOrderID: uuid.NewString(),
		StrategyName:  cfg.Name,
		Symbol:        cfg.Symbol,
		Side:          closeSide,
		Price:         price,
		Quantity:      st.open.qty,
		Leverage:      st.open.leverage,
		PnL:           realized,
		IsExit:        true,
		Reason:        reason,
		ExecutedAt:    now,
	}
	if err := e.store.SaveTrade(ctx, trade); err != nil {
		return fmt.Errorf("failed to save exit trade: %w", err)
	}

	qty := st.open.qty
	st.open = nil
	e.recordClose(ctx, cfg, realized, now)

	e.logger.Info("Trade closed",
		"strategy", cfg.Name, "symbol", cfg.Symbol, "reason", reason,
		"price", price, "pnl", realized)
	e.bus.PublishTradeClosed(cfg.Name, cfg.Symbol, reason, price, qty, realized)
	if pos != nil {
		e.bus.PublishPositionUpdate(pos.Symbol, string(pos.Side), pos.Qty, pos.EntryPrice, pos.LatestPrice, pos.UnrealizedPnL)
	}

	return nil
}

// recordClose folds one realized pnl into the strategy's stored counters,
// daily aggregates and trailing Sharpe ratio
func (e *Engine) recordClose(ctx context.Context, cfg *database.StrategyConfig, realized float64, now time.Time) {
	if err := e.store.RecordDailyTrade(ctx, cfg.Name, now, realized); err != nil {
		e.logger.Warn("Failed to record daily performance", "strategy", cfg.Name, "error", err)
	}

	sharpe := 0.0
	pnls, err := e.store.RecentExitPnLs(ctx, cfg.Name, now.Add(-sharpeWindow))
	if err != nil {
		e.logger.Warn("Failed to load exit pnls", "strategy", cfg.Name, "error", err)
	} else {
		sharpe = SharpeRatio(pnls)
	}

	if err := e.store.UpdateStrategyPerformance(ctx, cfg.Name, realized, sharpe); err != nil {
		e.logger.Warn("Failed to update strategy performance", "strategy", cfg.Name, "error", err)
	}
}

// OpenTradeFor exposes whether a strategy currently holds a trade, used by
// the status API
func (e *Engine) OpenTradeFor(name string) (side string, entryPrice, qty float64, ok bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	st, exists := e.state[name]
	if !exists || st.open == nil {
		return "", 0, 0, false
	}
	return strings.ToUpper(st.open.side), st.open.entryPrice, st.open.qty, true
}
