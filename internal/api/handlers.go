package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crypto-paper-trader/internal/database"
	"crypto-paper-trader/internal/strategy"
)

func (s *Server) handleStatus(c *gin.Context) {
	configs, err := s.repo.ListStrategyConfigs(c.Request.Context(), false)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	strategies := make([]gin.H, 0, len(configs))
	for _, cfg := range configs {
		entry := gin.H{
			"id":         cfg.ID,
			"name":       cfg.Name,
			"symbol":     cfg.Symbol,
			"risk_level": cfg.RiskLevel,
			"enabled":    cfg.Enabled,
		}
		if side, entryPrice, qty, ok := s.engine.OpenTradeFor(cfg.Name); ok {
			entry["open_trade"] = gin.H{
				"side":        side,
				"entry_price": entryPrice,
				"qty":         qty,
			}
		}
		strategies = append(strategies, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"engine_running": s.engine.Running(),
		"ws_clients":     WSClientCount(),
		"strategies":     strategies,
	})
}

func (s *Server) handleEngineStart(c *gin.Context) {
	if err := s.engine.Start(); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) handleEngineStop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

// strategyRequest is the payload for creating or updating a strategy
type strategyRequest struct {
	Name                string  `json:"name" binding:"required"`
	Symbol              string  `json:"symbol" binding:"required"`
	Timeframe           string  `json:"timeframe" binding:"required"`
	RiskLevel           string  `json:"risk_level" binding:"required"`
	Enabled             *bool   `json:"enabled"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	PositionSizeUSD     float64 `json:"position_size_usd"`
	LeverageMin         float64 `json:"leverage_min"`
	LeverageMax         float64 `json:"leverage_max"`
	StopLossPercent     float64 `json:"stop_loss_percent"`
	TakeProfitPercent   float64 `json:"take_profit_percent"`
	MaxDailyTrades      int     `json:"max_daily_trades"`
}

func (req *strategyRequest) validate() string {
	if _, err := strategy.New(strategy.RiskLevel(req.RiskLevel), strategy.Config{}); err != nil {
		return err.Error()
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return "confidence_threshold must be between 0 and 1"
	}
	if req.PositionSizeUSD <= 0 {
		return "position_size_usd must be positive"
	}
	if req.LeverageMin <= 0 || req.LeverageMax < req.LeverageMin {
		return "leverage range is invalid"
	}
	if req.StopLossPercent <= 0 || req.TakeProfitPercent <= 0 {
		return "stop loss and take profit must be positive"
	}
	if req.MaxDailyTrades < 0 {
		return "max_daily_trades must not be negative"
	}
	return ""
}

func (req *strategyRequest) apply(cfg *database.StrategyConfig) {
	cfg.Name = req.Name
	cfg.Symbol = req.Symbol
	cfg.Timeframe = req.Timeframe
	cfg.RiskLevel = req.RiskLevel
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	cfg.ConfidenceThreshold = req.ConfidenceThreshold
	cfg.PositionSizeUSD = req.PositionSizeUSD
	cfg.LeverageMin = req.LeverageMin
	cfg.LeverageMax = req.LeverageMax
	cfg.StopLossPercent = req.StopLossPercent
	cfg.TakeProfitPercent = req.TakeProfitPercent
	cfg.MaxDailyTrades = req.MaxDailyTrades
}

func (s *Server) handleListStrategies(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"

	configs, err := s.repo.ListStrategyConfigs(c.Request.Context(), enabledOnly)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": configs})
}

func (s *Server) handleCreateStrategy(c *gin.Context) {
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		errorResponse(c, http.StatusBadRequest, msg)
		return
	}

	cfg := &database.StrategyConfig{Enabled: true}
	req.apply(cfg)

	if err := s.repo.CreateStrategyConfig(c.Request.Context(), cfg); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (s *Server) strategyByID(c *gin.Context) *database.StrategyConfig {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid strategy id")
		return nil
	}

	cfg, err := s.repo.GetStrategyConfig(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return nil
	}
	if cfg == nil {
		errorResponse(c, http.StatusNotFound, "strategy not found")
		return nil
	}
	return cfg
}

func (s *Server) handleGetStrategy(c *gin.Context) {
	cfg := s.strategyByID(c)
	if cfg == nil {
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleUpdateStrategy(c *gin.Context) {
	cfg := s.strategyByID(c)
	if cfg == nil {
		return
	}

	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		errorResponse(c, http.StatusBadRequest, msg)
		return
	}

	req.apply(cfg)
	if err := s.repo.UpdateStrategyConfig(c.Request.Context(), cfg); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) setEnabled(c *gin.Context, enabled bool) {
	cfg := s.strategyByID(c)
	if cfg == nil {
		return
	}

	if err := s.repo.SetStrategyEnabled(c.Request.Context(), cfg.ID, enabled); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	cfg.Enabled = enabled
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleActivateStrategy(c *gin.Context) {
	s.setEnabled(c, true)
}

func (s *Server) handleDeactivateStrategy(c *gin.Context) {
	s.setEnabled(c, false)
}

func (s *Server) handleResetPerformance(c *gin.Context) {
	cfg := s.strategyByID(c)
	if cfg == nil {
		return
	}

	if err := s.repo.ResetStrategyPerformance(c.Request.Context(), cfg.Name); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (s *Server) handleDailyPerformance(c *gin.Context) {
	cfg := s.strategyByID(c)
	if cfg == nil {
		return
	}

	limit := intQuery(c, "limit", 30)
	days, err := s.repo.ListDailyPerformance(c.Request.Context(), cfg.Name, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_performance": days})
}

func (s *Server) handleListPositions(c *gin.Context) {
	if c.DefaultQuery("active", "true") == "true" {
		positions, err := s.ledger.Active(c.Request.Context())
		if err != nil {
			errorResponse(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"positions": positions})
		return
	}

	positions, err := s.repo.ListPositions(c.Request.Context(), false)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleListTrades(c *gin.Context) {
	symbol := c.Query("symbol")
	limit := intQuery(c, "limit", 100)

	trades, err := s.repo.ListTrades(c.Request.Context(), symbol, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleListAnalysis(c *gin.Context) {
	strategyName := c.Query("strategy")
	limit := intQuery(c, "limit", 100)

	logs, err := s.repo.ListAnalysisLogs(c.Request.Context(), strategyName, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": logs})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
