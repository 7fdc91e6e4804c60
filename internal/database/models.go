package database

import (
	"time"
)

// Trade represents a single simulated fill in the database
type Trade struct {
	ID            int64     `json:"id"`
	ClientOrderID string    `json:"client_order_id"`
	StrategyName  string    `json:"strategy_name"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	Leverage      float64   `json:"leverage"`
	PnL           float64   `json:"pnl"`
	IsExit        bool      `json:"is_exit"`
	Reason        string    `json:"reason,omitempty"`
	ExecutedAt    time.Time `json:"executed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// StrategyConfig represents a runnable strategy instance with its tunables
// and accumulated performance counters
type StrategyConfig struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Symbol              string    `json:"symbol"`
	Timeframe           string    `json:"timeframe"`
	RiskLevel           string    `json:"risk_level"`
	Enabled             bool      `json:"enabled"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	PositionSizeUSD     float64   `json:"position_size_usd"`
	LeverageMin         float64   `json:"leverage_min"`
	LeverageMax         float64   `json:"leverage_max"`
	StopLossPercent     float64   `json:"stop_loss_percent"`
	TakeProfitPercent   float64   `json:"take_profit_percent"`
	MaxDailyTrades      int       `json:"max_daily_trades"`
	TotalTrades         int       `json:"total_trades"`
	WinningTrades       int       `json:"winning_trades"`
	TotalPnL            float64   `json:"total_pnl"`
	SharpeRatio         float64   `json:"sharpe_ratio"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AnalysisLog records one strategy evaluation against market data
type AnalysisLog struct {
	ID           int64              `json:"id"`
	StrategyName string             `json:"strategy_name"`
	Symbol       string             `json:"symbol"`
	Signal       string             `json:"signal"`
	Confidence   float64            `json:"confidence"`
	Reason       string             `json:"reason,omitempty"`
	Indicators   map[string]float64 `json:"indicators,omitempty"`
	Price        float64            `json:"price"`
	AnalyzedAt   time.Time          `json:"analyzed_at"`
	CreatedAt    time.Time          `json:"created_at"`
}

// DailyPerformance aggregates one strategy's results for one UTC day
type DailyPerformance struct {
	ID              int64     `json:"id"`
	StrategyName    string    `json:"strategy_name"`
	Day             time.Time `json:"day"`
	Trades          int       `json:"trades"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	WinRate         float64   `json:"win_rate"`
	TotalPnL        float64   `json:"total_pnl"`
	AvgPnLPerTrade  float64   `json:"avg_pnl_per_trade"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
