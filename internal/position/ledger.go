package position

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store persists positions. The ledger is the only writer.
type Store interface {
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	UpsertPosition(ctx context.Context, pos *Position) error
	ListPositions(ctx context.Context, activeOnly bool) ([]Position, error)
}

// Ledger serializes all position mutations per symbol and computes realized
// profit as trades are applied. Every balance change in the system flows
// through ApplyTrade.
type Ledger struct {
	store  Store
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a position ledger on top of a store
func NewLedger(store Store, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With().Str("component", "position_ledger").Logger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) symbolLock(symbol string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[symbol] = lock
	}
	return lock
}

// ApplyTrade applies a fill to the symbol's position and returns the realized
// profit, zero unless the trade closes existing exposure. Side is BUY or
// SELL; an opposite-side trade larger than the position flips it, with the
// remainder opened at the trade price.
func (l *Ledger) ApplyTrade(ctx context.Context, symbol, side string, qty, price float64) (float64, *Position, error) {
	if qty <= 0 {
		return 0, nil, fmt.Errorf("trade quantity must be positive, got %f", qty)
	}
	if price <= 0 {
		return 0, nil, fmt.Errorf("trade price must be positive, got %f", price)
	}

	var direction Side
	switch strings.ToUpper(side) {
	case "BUY":
		direction = SideLong
	case "SELL":
		direction = SideShort
	default:
		return 0, nil, fmt.Errorf("unknown trade side: %q", side)
	}

	lock := l.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.store.GetPosition(ctx, symbol)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load position for %s: %w", symbol, err)
	}
	if pos == nil {
		pos = &Position{Symbol: symbol, Side: SideNone}
	}

	var realized float64

	switch {
	case !pos.Open():
		// opening a fresh position
		pos.Side = direction
		pos.Qty = qty
		pos.EntryPrice = price
		pos.IsActive = true

	case pos.Side == direction:
		// accumulating, entry becomes the weighted average
		totalQty := pos.Qty + qty
		pos.EntryPrice = (pos.EntryPrice*pos.Qty + price*qty) / totalQty
		pos.Qty = totalQty

	case qty < pos.Qty:
		// partial close, entry price is untouched
		realized = closePnL(pos.Side, pos.EntryPrice, price, qty)
		pos.Qty -= qty

	case qty == pos.Qty:
		// full close
		realized = closePnL(pos.Side, pos.EntryPrice, price, qty)
		pos.Side = SideNone
		pos.Qty = 0
		pos.EntryPrice = 0
		pos.IsActive = false

	default:
		// flip: realize the whole old position, open the remainder
		realized = closePnL(pos.Side, pos.EntryPrice, price, pos.Qty)
		pos.Side = direction
		pos.Qty = qty - pos.Qty
		pos.EntryPrice = price
		pos.IsActive = true
	}

	pos.LatestPrice = price
	pos.UnrealizedPnL = pos.unrealized(price)
	pos.UpdatedAt = time.Now()

	if err := l.store.UpsertPosition(ctx, pos); err != nil {
		return 0, nil, fmt.Errorf("failed to persist position for %s: %w", symbol, err)
	}

	l.logger.Info().
		Str("symbol", symbol).
		Str("trade_side", side).
		Float64("qty", qty).
		Float64("price", price).
		Float64("realized_pnl", realized).
		Str("position_side", string(pos.Side)).
		Float64("position_qty", pos.Qty).
		Msg("trade applied")

	return realized, pos, nil
}

// MarkPrice refreshes the mark-to-market value of a position without changing
// its exposure
func (l *Ledger) MarkPrice(ctx context.Context, symbol string, price float64) (*Position, error) {
	lock := l.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.store.GetPosition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load position for %s: %w", symbol, err)
	}
	if pos == nil || !pos.Open() {
		return pos, nil
	}

	pos.LatestPrice = price
	pos.UnrealizedPnL = pos.unrealized(price)
	pos.UpdatedAt = time.Now()

	if err := l.store.UpsertPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to persist position for %s: %w", symbol, err)
	}
	return pos, nil
}

// Get returns the current position for a symbol, nil when none was ever
// opened
func (l *Ledger) Get(ctx context.Context, symbol string) (*Position, error) {
	return l.store.GetPosition(ctx, symbol)
}

// Active lists all positions with open exposure
func (l *Ledger) Active(ctx context.Context) ([]Position, error) {
	return l.store.ListPositions(ctx, true)
}

func closePnL(side Side, entry, exit, qty float64) float64 {
	if side == SideShort {
		return (entry - exit) * qty
	}
	return (exit - entry) * qty
}
