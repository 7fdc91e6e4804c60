package position

import "time"

// Side is the direction of an open position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
	SideNone  Side = "NONE"
)

// Position is the net exposure for one symbol. A fully closed position keeps
// its row with SideNone and zero quantity instead of being deleted.
type Position struct {
	ID            int64     `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Qty           float64   `json:"qty"`
	EntryPrice    float64   `json:"entry_price"`
	LatestPrice   float64   `json:"latest_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	IsActive      bool      `json:"is_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Open reports whether the position currently has exposure
func (p *Position) Open() bool {
	return p != nil && p.IsActive && p.Side != SideNone && p.Qty > 0
}

// unrealized computes mark-to-market profit at the given price
func (p *Position) unrealized(price float64) float64 {
	switch p.Side {
	case SideLong:
		return (price - p.EntryPrice) * p.Qty
	case SideShort:
		return (p.EntryPrice - price) * p.Qty
	default:
		return 0
	}
}
