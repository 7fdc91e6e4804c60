package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Create trades table
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			client_order_id VARCHAR(40) NOT NULL UNIQUE,
			strategy_name VARCHAR(100) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			leverage DECIMAL(10, 4) NOT NULL DEFAULT 1,
			pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			is_exit BOOLEAN NOT NULL DEFAULT FALSE,
			reason TEXT,
			executed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy_name)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at)`,

		// Create positions table
		`CREATE TABLE IF NOT EXISTS positions (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL UNIQUE,
			side VARCHAR(5) NOT NULL DEFAULT 'NONE',
			qty DECIMAL(20, 8) NOT NULL DEFAULT 0,
			entry_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			latest_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			unrealized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_active ON positions(is_active)`,

		// Create strategy_configs table
		`CREATE TABLE IF NOT EXISTS strategy_configs (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			risk_level VARCHAR(10) NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			confidence_threshold DECIMAL(5, 4) NOT NULL DEFAULT 0.6,
			position_size_usd DECIMAL(20, 8) NOT NULL DEFAULT 100,
			leverage_min DECIMAL(10, 4) NOT NULL DEFAULT 1,
			leverage_max DECIMAL(10, 4) NOT NULL DEFAULT 1,
			stop_loss_percent DECIMAL(10, 4) NOT NULL DEFAULT 2.0,
			take_profit_percent DECIMAL(10, 4) NOT NULL DEFAULT 5.0,
			max_daily_trades INT NOT NULL DEFAULT 10,
			total_trades INT NOT NULL DEFAULT 0,
			winning_trades INT NOT NULL DEFAULT 0,
			total_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			sharpe_ratio DECIMAL(10, 4) NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_configs_symbol ON strategy_configs(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_configs_enabled ON strategy_configs(enabled)`,

		// Create analysis_logs table
		`CREATE TABLE IF NOT EXISTS analysis_logs (
			id SERIAL PRIMARY KEY,
			strategy_name VARCHAR(100) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			signal VARCHAR(10) NOT NULL,
			confidence DECIMAL(5, 4) NOT NULL,
			reason TEXT,
			indicators JSONB,
			price DECIMAL(20, 8) NOT NULL,
			analyzed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_logs_strategy ON analysis_logs(strategy_name)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_logs_analyzed_at ON analysis_logs(analyzed_at)`,

		// Create daily_performance table
		`CREATE TABLE IF NOT EXISTS daily_performance (
			id SERIAL PRIMARY KEY,
			strategy_name VARCHAR(100) NOT NULL,
			day DATE NOT NULL,
			trades INT NOT NULL DEFAULT 0,
			wins INT NOT NULL DEFAULT 0,
			losses INT NOT NULL DEFAULT 0,
			win_rate DECIMAL(5, 2) NOT NULL DEFAULT 0,
			total_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			avg_pnl_per_trade DECIMAL(20, 8) NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(strategy_name, day)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_performance_day ON daily_performance(day)`,

		// Create updated_at trigger function
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		// Create triggers for updated_at
		`DROP TRIGGER IF EXISTS update_positions_updated_at ON positions`,
		`CREATE TRIGGER update_positions_updated_at BEFORE UPDATE ON positions
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_strategy_configs_updated_at ON strategy_configs`,
		`CREATE TRIGGER update_strategy_configs_updated_at BEFORE UPDATE ON strategy_configs
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_daily_performance_updated_at ON daily_performance`,
		`CREATE TRIGGER update_daily_performance_updated_at BEFORE UPDATE ON daily_performance
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
