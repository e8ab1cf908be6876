package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stockchat/internal/metrics"
	"stockchat/internal/model"
	"stockchat/pkg/market"

	"github.com/gin-gonic/gin"
)

type TickerExtractor interface {
	ExtractTicker(ctx context.Context, query string) (string, error)
}

type FundStore interface {
	FindBySymbol(ctx context.Context, symbol string) (model.FundRecord, error)
	Ping(ctx context.Context) error
}

type MarketProvider interface {
	Snapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error)
}

type HistoryStore interface {
	History(ctx context.Context, user string) ([]model.Turn, error)
	Append(ctx context.Context, user string, turn model.Turn) error
	Ping(ctx context.Context) error
}

type StockHandler struct {
	extractor TickerExtractor
	funds     FundStore
	market    MarketProvider
	history   HistoryStore
	metrics   *metrics.Metrics
	timeout   time.Duration
}

type StockHandlerConfig struct {
	Extractor TickerExtractor
	Funds     FundStore
	Market    MarketProvider
	History   HistoryStore
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Timeout bounds each upstream call. Zero means no extra bound.
	Timeout time.Duration
}

func NewStockHandler(cfg StockHandlerConfig) *StockHandler {
	return &StockHandler{
		extractor: cfg.Extractor,
		funds:     cfg.Funds,
		market:    cfg.Market,
		history:   cfg.History,
		metrics:   cfg.Metrics,
		timeout:   cfg.Timeout,
	}
}

func (h *StockHandler) SearchStock(c *gin.Context) {
	user := getUser(c)
	query := strings.TrimSpace(c.Query("query"))
	if user == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user and query parameters are required"})
		return
	}

	ctx := c.Request.Context()
	answer := h.answer(ctx, query)

	err := h.call(ctx, metrics.ComponentHistory, func(ctx context.Context) error {
		return h.history.Append(ctx, user, model.Turn{Query: query, Answer: answer})
	})
	if err != nil {
		slog.Error("error appending history", "error", err, "user", user)
	}

	c.JSON(http.StatusOK, answer)
}

// answer runs the extraction and lookups for one query. Every upstream
// failure degrades to the closest answer shape instead of an error.
func (h *StockHandler) answer(ctx context.Context, query string) model.Answer {
	var ticker string
	err := h.call(ctx, metrics.ComponentLLM, func(ctx context.Context) error {
		var err error
		ticker, err = h.extractor.ExtractTicker(ctx, query)
		return err
	})
	if err != nil {
		slog.Warn("ticker extraction failed, treating as no ticker", "error", err)
		ticker = ""
	}

	if ticker == "" {
		h.recordSearch(metrics.OutcomeNoTicker)
		return model.NoTickerAnswer()
	}

	var fund model.FundRecord
	err = h.call(ctx, metrics.ComponentFund, func(ctx context.Context) error {
		var err error
		fund, err = h.funds.FindBySymbol(ctx, ticker)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		slog.Warn("fund lookup failed, treating as not found", "error", err, "ticker", ticker)
		fund = nil
	}

	if fund == nil {
		h.recordSearch(metrics.OutcomeFundMissing)
		return model.FundMissingAnswer(ticker)
	}

	var snapshot *model.MarketSnapshot
	err = h.call(ctx, metrics.ComponentMarket, func(ctx context.Context) error {
		var err error
		snapshot, err = h.market.Snapshot(ctx, ticker)
		if errors.Is(err, market.ErrNoData) {
			slog.Info("no market data for ticker", "ticker", ticker)
			return nil
		}
		return err
	})
	if err != nil {
		slog.Warn("market data fetch failed", "error", err, "ticker", ticker)
		snapshot = nil
	}

	h.recordSearch(metrics.OutcomeFound)
	return model.FoundAnswer(ticker, fund, snapshot)
}

func (h *StockHandler) GetUserHistory(c *gin.Context) {
	user := getUser(c)
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user parameter is required"})
		return
	}

	var turns []model.Turn
	err := h.call(c.Request.Context(), metrics.ComponentHistory, func(ctx context.Context) error {
		var err error
		turns, err = h.history.History(ctx, user)
		return err
	})
	if err != nil {
		slog.Error("error fetching history", "error", err, "user", user)
		turns = nil
	}

	res := HistoryResponse{
		User:    user,
		History: turns,
	}
	if res.History == nil {
		res.History = []model.Turn{}
	}

	c.JSON(http.StatusOK, res)
}

func (h *StockHandler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	historyErr := h.call(ctx, metrics.ComponentHistory, h.history.Ping)
	fundErr := h.call(ctx, metrics.ComponentFund, h.funds.Ping)

	if historyErr != nil || fundErr != nil {
		slog.Error("health check failed", "history_error", historyErr, "fund_store_error", fundErr)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "unhealthy",
			"history":    connState(historyErr),
			"fund_store": connState(fundErr),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"history":    "connected",
		"fund_store": "connected",
	})
}

func connState(err error) string {
	if err != nil {
		return "disconnected"
	}
	return "connected"
}

// call runs fn under the upstream timeout, timing it and counting failures.
func (h *StockHandler) call(ctx context.Context, component string, fn func(ctx context.Context) error) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)

	if h.metrics != nil {
		h.metrics.ObserveUpstream(component, start)
		if err != nil {
			h.metrics.RecordUpstreamFailure(component)
		}
	}
	return err
}

func (h *StockHandler) recordSearch(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordSearch(outcome)
	}
}

// getUser reads the user name. user_name is accepted for older clients.
func getUser(c *gin.Context) string {
	user := c.Query("user")
	if user == "" {
		user = c.Query("user_name")
	}
	return strings.TrimSpace(user)
}
