package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-paper-trader/internal/position"
)

// Repository handles all database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// ============================================================================
// POSITIONS
// ============================================================================

// GetPosition fetches the position row for a symbol, nil when none exists
func (r *Repository) GetPosition(ctx context.Context, symbol string) (*position.Position, error) {
	query := `
		SELECT id, symbol, side, qty, entry_price, latest_price, unrealized_pnl, is_active, updated_at
		FROM positions
		WHERE symbol = $1`

	var pos position.Position
	err := r.db.Pool.QueryRow(ctx, query, symbol).Scan(
		&pos.ID, &pos.Symbol, &pos.Side, &pos.Qty, &pos.EntryPrice,
		&pos.LatestPrice, &pos.UnrealizedPnL, &pos.IsActive, &pos.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &pos, nil
}

// UpsertPosition inserts or updates the position row for a symbol
func (r *Repository) UpsertPosition(ctx context.Context, pos *position.Position) error {
	query := `
		INSERT INTO positions (symbol, side, qty, entry_price, latest_price, unrealized_pnl, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			side = EXCLUDED.side,
			qty = EXCLUDED.qty,
			entry_price = EXCLUDED.entry_price,
			latest_price = EXCLUDED.latest_price,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			is_active = EXCLUDED.is_active
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		pos.Symbol, pos.Side, pos.Qty, pos.EntryPrice,
		pos.LatestPrice, pos.UnrealizedPnL, pos.IsActive,
	).Scan(&pos.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// ListPositions returns all positions, optionally only those with exposure
func (r *Repository) ListPositions(ctx context.Context, activeOnly bool) ([]position.Position, error) {
	query := `
		SELECT id, symbol, side, qty, entry_price, latest_price, unrealized_pnl, is_active, updated_at
		FROM positions`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY symbol`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []position.Position
	for rows.Next() {
		var pos position.Position
		if err := rows.Scan(
			&pos.ID, &pos.Symbol, &pos.Side, &pos.Qty, &pos.EntryPrice,
			&pos.LatestPrice, &pos.UnrealizedPnL, &pos.IsActive, &pos.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// ============================================================================
// TRADES
// ============================================================================

// SaveTrade persists a simulated fill
func (r *Repository) SaveTrade(ctx context.Context, trade *Trade) error {
	query := `
		INSERT INTO trades (client_order_id, strategy_name, symbol, side, price, quantity, leverage, pnl, is_exit, reason, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.db.Pool.QueryRow(ctx, query,
		trade.ClientOrderID, trade.StrategyName, trade.Symbol, trade.Side,
		trade.Price, trade.Quantity, trade.Leverage, trade.PnL,
		trade.IsExit, trade.Reason, trade.ExecutedAt,
	).Scan(&trade.ID, &trade.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// ListTrades returns recent trades, newest first. An empty symbol matches all.
func (r *Repository) ListTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	query := `
		SELECT id, client_order_id, strategy_name, symbol, side, price, quantity, leverage, pnl, is_exit, COALESCE(reason, ''), executed_at, created_at
		FROM trades`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol = $1`
		args = append(args, symbol)
	}
	query += fmt.Sprintf(` ORDER BY executed_at DESC LIMIT %d`, limit)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(
			&t.ID, &t.ClientOrderID, &t.StrategyName, &t.Symbol, &t.Side,
			&t.Price, &t.Quantity, &t.Leverage, &t.PnL, &t.IsExit,
			&t.Reason, &t.ExecutedAt, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RecentExitPnLs returns the realized pnl of exit trades for a strategy since
// the given time, oldest first. Feeds the rolling Sharpe ratio.
func (r *Repository) RecentExitPnLs(ctx context.Context, strategyName string, since time.Time) ([]float64, error) {
	query := `
		SELECT pnl FROM trades
		WHERE strategy_name = $1 AND is_exit = TRUE AND executed_at >= $2
		ORDER BY executed_at ASC`

	rows, err := r.db.Pool.Query(ctx, query, strategyName, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query exit pnls: %w", err)
	}
	defer rows.Close()

	var pnls []float64
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return nil, fmt.Errorf("failed to scan pnl: %w", err)
		}
		pnls = append(pnls, pnl)
	}
	return pnls, rows.Err()
}

// ============================================================================
// STRATEGY CONFIGS
// ============================================================================

const strategyConfigColumns = `
	id, name, symbol, timeframe, risk_level, enabled, confidence_threshold,
	position_size_usd, leverage_min, leverage_max, stop_loss_percent,
	take_profit_percent, max_daily_trades, total_trades, winning_trades,
	total_pnl, sharpe_ratio, created_at, updated_at`

func scanStrategyConfig(row pgx.Row) (*StrategyConfig, error) {
	var cfg StrategyConfig
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.Symbol, &cfg.Timeframe, &cfg.RiskLevel,
		&cfg.Enabled, &cfg.ConfidenceThreshold, &cfg.PositionSizeUSD,
		&cfg.LeverageMin, &cfg.LeverageMax, &cfg.StopLossPercent,
		&cfg.TakeProfitPercent, &cfg.MaxDailyTrades, &cfg.TotalTrades,
		&cfg.WinningTrades, &cfg.TotalPnL, &cfg.SharpeRatio,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateStrategyConfig inserts a new strategy configuration
func (r *Repository) CreateStrategyConfig(ctx context.Context, cfg *StrategyConfig) error {
	query := `
		INSERT INTO strategy_configs
			(name, symbol, timeframe, risk_level, enabled, confidence_threshold,
			 position_size_usd, leverage_min, leverage_max, stop_loss_percent,
			 take_profit_percent, max_daily_trades)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := r.db.Pool.QueryRow(ctx, query,
		cfg.Name, cfg.Symbol, cfg.Timeframe, cfg.RiskLevel, cfg.Enabled,
		cfg.ConfidenceThreshold, cfg.PositionSizeUSD, cfg.LeverageMin,
		cfg.LeverageMax, cfg.StopLossPercent, cfg.TakeProfitPercent,
		cfg.MaxDailyTrades,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create strategy config: %w", err)
	}
	return nil
}

// GetStrategyConfig fetches one strategy config by id, nil when missing
func (r *Repository) GetStrategyConfig(ctx context.Context, id int64) (*StrategyConfig, error) {
	query := `SELECT ` + strategyConfigColumns + ` FROM strategy_configs WHERE id = $1`

	cfg, err := scanStrategyConfig(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy config: %w", err)
	}
	return cfg, nil
}

// ListStrategyConfigs returns all strategy configs, optionally only enabled
// ones
func (r *Repository) ListStrategyConfigs(ctx context.Context, enabledOnly bool) ([]StrategyConfig, error) {
	query := `SELECT ` + strategyConfigColumns + ` FROM strategy_configs`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategy configs: %w", err)
	}
	defer rows.Close()

	var configs []StrategyConfig
	for rows.Next() {
		cfg, err := scanStrategyConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// UpdateStrategyConfig updates the tunables of a strategy config
func (r *Repository) UpdateStrategyConfig(ctx context.Context, cfg *StrategyConfig) error {
	query := `
		UPDATE strategy_configs SET
			symbol = $2, timeframe = $3, risk_level = $4, enabled = $5,
			confidence_threshold = $6, position_size_usd = $7,
			leverage_min = $8, leverage_max = $9, stop_loss_percent = $10,
			take_profit_percent = $11, max_daily_trades = $12
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query,
		cfg.ID, cfg.Symbol, cfg.Timeframe, cfg.RiskLevel, cfg.Enabled,
		cfg.ConfidenceThreshold, cfg.PositionSizeUSD, cfg.LeverageMin,
		cfg.LeverageMax, cfg.StopLossPercent, cfg.TakeProfitPercent,
		cfg.MaxDailyTrades,
	)
	if err != nil {
		return fmt.Errorf("failed to update strategy config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("strategy config %d not found", cfg.ID)
	}
	return nil
}

// SetStrategyEnabled flips the enabled flag on a strategy config
func (r *Repository) SetStrategyEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE strategy_configs SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to set strategy enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("strategy config %d not found", id)
	}
	return nil
}

// UpdateStrategyPerformance folds one closed trade into the stored counters.
// Incrementing in SQL keeps the totals correct across process restarts.
func (r *Repository) UpdateStrategyPerformance(ctx context.Context, name string, pnl, sharpe float64) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE strategy_configs SET
			total_trades = total_trades + 1,
			winning_trades = winning_trades + CASE WHEN $2::double precision > 0 THEN 1 ELSE 0 END,
			total_pnl = total_pnl + $2,
			sharpe_ratio = $3
		WHERE name = $1`,
		name, pnl, sharpe)
	if err != nil {
		return fmt.Errorf("failed to update strategy performance: %w", err)
	}
	return nil
}

// ResetStrategyPerformance zeroes the performance counters for a strategy
func (r *Repository) ResetStrategyPerformance(ctx context.Context, name string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE strategy_configs SET
			total_trades = 0, winning_trades = 0, total_pnl = 0, sharpe_ratio = 0
		WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to reset strategy performance: %w", err)
	}
	return nil
}

// ============================================================================
// ANALYSIS LOGS
// ============================================================================

// SaveAnalysisLog persists one strategy evaluation
func (r *Repository) SaveAnalysisLog(ctx context.Context, entry *AnalysisLog) error {
	indicators, err := json.Marshal(entry.Indicators)
	if err != nil {
		return fmt.Errorf("failed to marshal indicators: %w", err)
	}

	query := `
		INSERT INTO analysis_logs (strategy_name, symbol, signal, confidence, reason, indicators, price, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err = r.db.Pool.QueryRow(ctx, query,
		entry.StrategyName, entry.Symbol, entry.Signal, entry.Confidence,
		entry.Reason, indicators, entry.Price, entry.AnalyzedAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save analysis log: %w", err)
	}
	return nil
}

// ListAnalysisLogs returns recent analysis entries, newest first. An empty
// strategy name matches all strategies.
func (r *Repository) ListAnalysisLogs(ctx context.Context, strategyName string, limit int) ([]AnalysisLog, error) {
	query := `
		SELECT id, strategy_name, symbol, signal, confidence, COALESCE(reason, ''), indicators, price, analyzed_at, created_at
		FROM analysis_logs`
	args := []interface{}{}
	if strategyName != "" {
		query += ` WHERE strategy_name = $1`
		args = append(args, strategyName)
	}
	query += fmt.Sprintf(` ORDER BY analyzed_at DESC LIMIT %d`, limit)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis logs: %w", err)
	}
	defer rows.Close()

	var logs []AnalysisLog
	for rows.Next() {
		var entry AnalysisLog
		var indicators []byte
		if err := rows.Scan(
			&entry.ID, &entry.StrategyName, &entry.Symbol, &entry.Signal,
			&entry.Confidence, &entry.Reason, &indicators, &entry.Price,
			&entry.AnalyzedAt, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis log: %w", err)
		}
		if len(indicators) > 0 {
			if err := json.Unmarshal(indicators, &entry.Indicators); err != nil {
				return nil, fmt.Errorf("failed to unmarshal indicators: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// ============================================================================
// DAILY PERFORMANCE
// ============================================================================

// RecordDailyTrade folds one closed trade into the strategy's daily
// performance row, creating the row on the first trade of the day
func (r *Repository) RecordDailyTrade(ctx context.Context, strategyName string, day time.Time, pnl float64) error {
	win := 0
	loss := 0
	if pnl > 0 {
		win = 1
	} else {
		loss = 1
	}

	query := `
		INSERT INTO daily_performance (strategy_name, day, trades, wins, losses, win_rate, total_pnl, avg_pnl_per_trade)
		VALUES ($1, $2, 1, $3, $4, $3 * 100.0, $5, $5)
		ON CONFLICT (strategy_name, day) DO UPDATE SET
			trades = daily_performance.trades + 1,
			wins = daily_performance.wins + $3,
			losses = daily_performance.losses + $4,
			win_rate = (daily_performance.wins + $3) * 100.0 / (daily_performance.trades + 1),
			total_pnl = daily_performance.total_pnl + $5,
			avg_pnl_per_trade = (daily_performance.total_pnl + $5) / (daily_performance.trades + 1)`

	_, err := r.db.Pool.Exec(ctx, query, strategyName, day.UTC().Truncate(24*time.Hour), win, loss, pnl)
	if err != nil {
		return fmt.Errorf("failed to record daily trade: %w", err)
	}
	return nil
}

// ListDailyPerformance returns per-day aggregates for a strategy, newest
// first
func (r *Repository) ListDailyPerformance(ctx context.Context, strategyName string, limit int) ([]DailyPerformance, error) {
	query := fmt.Sprintf(`
		SELECT id, strategy_name, day, trades, wins, losses, win_rate, total_pnl, avg_pnl_per_trade, created_at, updated_at
		FROM daily_performance
		WHERE strategy_name = $1
		ORDER BY day DESC LIMIT %d`, limit)

	rows, err := r.db.Pool.Query(ctx, query, strategyName)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily performance: %w", err)
	}
	defer rows.Close()

	var days []DailyPerformance
	for rows.Next() {
		var d DailyPerformance
		if err := rows.Scan(
			&d.ID, &d.StrategyName, &d.Day, &d.Trades, &d.Wins, &d.Losses,
			&d.WinRate, &d.TotalPnL, &d.AvgPnLPerTrade, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily performance: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
