package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hb-market-api/internal/history"
	"hb-market-api/internal/types"

	"github.com/gin-gonic/gin"
)

type batchRequest struct {
	Symbols []string `json:"symbols" binding:"required"`
}

func (s *Server) getRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "HB market API",
		"version": apiVersion,
		"endpoints": gin.H{
			"health":               "/health",
			"options":              "/options",
			"options_by_prefix":    "/options/prefix/{prefix}",
			"options_by_ticker":    "/options/ticker/{ticker}",
			"options_all":          "/options/all",
			"stocks":               "/stocks",
			"stocks_by_prefix":     "/stocks/prefix/{prefix}",
			"stocks_by_ticker":     "/stocks/ticker/{ticker}",
			"stocks_all":           "/stocks/all",
			"securities":           "/securities",
			"securities_by_ticker": "/securities/ticker/{ticker}",
			"securities_all":       "/securities/all",
			"cauciones":            "/cauciones",
			"historical":           "/historical/{symbol}",
			"historical_batch":     "/historical/batch",
			"intraday":             "/intraday/{symbol}",
			"intraday_batch":       "/intraday/batch",
			"config":               "/config",
			"status":               "/status/connection",
			"reconnect":            "/reconnect",
		},
	})
}

func (s *Server) getHealth(c *gin.Context) {
	status := s.sup.Status()

	overall := status.State
	switch {
	case status.Connected && status.ReceivingData:
		overall = "healthy"
	case status.Connected:
		overall = "connected_but_stale"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":                  overall,
		"state":                   status.State,
		"connected":               status.Connected,
		"receiving_data":          status.ReceivingData,
		"last_data_received":      status.LastDataReceived,
		"minutes_since_last_data": status.MinutesSinceLastData,
		"connection_attempts":     status.ConnectionAttempts,
	})
}

// Options

func (s *Server) getOptions(c *gin.Context) {
	s.listQuotes(c, types.ClassOption, c.Query("prefix"), c.Query("ticker"), nil)
}

func (s *Server) getOptionsByPrefix(c *gin.Context) {
	s.listQuotes(c, types.ClassOption, c.Param("prefix"), "", nil)
}

func (s *Server) getOptionsByTicker(c *gin.Context) {
	s.listQuotes(c, types.ClassOption, "", c.Param("ticker"), nil)
}

func (s *Server) getAllOptions(c *gin.Context) {
	s.listAll(c, types.ClassOption, "opciones")
}

// Stocks: the derived view over securities, keyed by bare symbol. Without
// explicit filters the configured stock prefixes apply, as upstream does.

func (s *Server) getStocks(c *gin.Context) {
	s.listQuotes(c, types.ClassStock, c.Query("prefix"), c.Query("ticker"), s.catalog.StockPrefixes)
}

func (s *Server) getStocksByPrefix(c *gin.Context) {
	s.listQuotes(c, types.ClassStock, c.Param("prefix"), "", nil)
}

func (s *Server) getStocksByTicker(c *gin.Context) {
	s.listQuotes(c, types.ClassStock, "", c.Param("ticker"), nil)
}

func (s *Server) getAllStocks(c *gin.Context) {
	s.listAll(c, types.ClassStock, "acciones")
}

// Securities

func (s *Server) getSecurities(c *gin.Context) {
	if ticker := c.Query("ticker"); ticker != "" {
		s.securitiesByTicker(c, ticker)
		return
	}

	quotes := s.snap.All(types.ClassSecurity)
	// The type parameter narrows to records carrying a settlement suffix;
	// unknown types are ignored, as upstream does.
	if t := c.Query("type"); isKnownSecurityType(t) {
		filtered := quotes[:0]
		for _, q := range quotes {
			if hasSettlementSuffix(q.Ticker) {
				filtered = append(filtered, q)
			}
		}
		quotes = filtered
	}
	c.JSON(http.StatusOK, quotes)
}

func (s *Server) getSecuritiesByTicker(c *gin.Context) {
	s.securitiesByTicker(c, c.Param("ticker"))
}

// securitiesByTicker matches all settlements of one symbol ("GGAL" finds
// "GGAL - 24hs" and "GGAL - SPOT").
func (s *Server) securitiesByTicker(c *gin.Context, ticker string) {
	quotes := s.snap.ByPrefix(types.ClassSecurity, ticker)
	if len(quotes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no securities found for ticker %s", ticker)})
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (s *Server) getAllSecurities(c *gin.Context) {
	s.listAll(c, types.ClassSecurity, "securities")
}

// Cauciones

func (s *Server) getCauciones(c *gin.Context) {
	c.JSON(http.StatusOK, s.snap.Repos())
}

// History

func (s *Server) getHistorical(c *gin.Context) {
	days, ok := s.parseDays(c)
	if !ok {
		return
	}
	if !s.requireSession(c) {
		return
	}

	symbol := c.Param("symbol")
	settlement := c.DefaultQuery("settlement", "24hs")

	candles, err := s.history.Daily(c.Request.Context(), symbol, days, settlement)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("fetching history for %s: %v", symbol, err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":        symbol,
		"days":          days,
		"settlement":    settlement,
		"total_records": len(candles),
		"data":          candles,
	})
}

func (s *Server) getHistoricalBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols list is required"})
		return
	}
	days, ok := s.parseDays(c)
	if !ok {
		return
	}
	if !s.requireSession(c) {
		return
	}

	settlement := c.DefaultQuery("settlement", "24hs")
	results := make(map[string][]types.Candle, len(req.Symbols))
	for _, symbol := range req.Symbols {
		candles, err := s.history.Daily(c.Request.Context(), symbol, days, settlement)
		if err != nil {
			results[symbol] = []types.Candle{}
			continue
		}
		results[symbol] = candles
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("históricos obtenidos para %d símbolos", len(req.Symbols)),
		"data":    results,
	})
}

func (s *Server) getIntraday(c *gin.Context) {
	if !s.requireSession(c) {
		return
	}

	symbol := c.Param("symbol")
	candles, err := s.history.Intraday(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("fetching intraday for %s: %v", symbol, err)})
		return
	}
	c.JSON(http.StatusOK, candles)
}

func (s *Server) getIntradayBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols list is required"})
		return
	}
	if !s.requireSession(c) {
		return
	}

	results := make(map[string][]types.Candle, len(req.Symbols))
	for _, symbol := range req.Symbols {
		candles, err := s.history.Intraday(c.Request.Context(), symbol)
		if err != nil {
			results[symbol] = []types.Candle{}
			continue
		}
		results[symbol] = candles
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("intradiarios obtenidos para %d símbolos", len(req.Symbols)),
		"data":    results,
	})
}

// Config and connection control

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"broker_id":         s.cfg.Broker.ID,
		"mode":              s.cfg.Mode,
		"option_prefixes":   s.catalog.OptionPrefixes,
		"stock_prefixes":    s.catalog.StockPrefixes,
		"options_count":     s.snap.Count(types.ClassOption),
		"stocks_count":      s.snap.Count(types.ClassStock),
		"securities_count":  s.snap.Count(types.ClassSecurity),
		"cauciones_count":   s.snap.Count(types.ClassRepo),
		"tickers_file":      s.cfg.TickersFile,
		"connection_status": s.sup.Status(),
	})
}

func (s *Server) getConnectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "connection status",
		"data":    s.sup.Status(),
	})
}

func (s *Server) postReconnect(c *gin.Context) {
	s.sup.ForceReconnect()
	c.JSON(http.StatusOK, gin.H{
		"message": "forced reconnection started",
		"status":  "reconnecting",
	})
}

// Shared helpers

// listQuotes serves a class listing. An explicit ticker or prefix that
// matches nothing is a 404; an unfiltered listing is an empty array until
// data arrives. defaultPrefixes apply only when no explicit filter is given.
func (s *Server) listQuotes(c *gin.Context, class types.Class, prefix, ticker string, defaultPrefixes []string) {
	switch {
	case ticker != "":
		q, ok := s.snap.ByTicker(class, ticker)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no %s record for ticker %s", class, ticker)})
			return
		}
		c.JSON(http.StatusOK, []types.Quote{q})
	case prefix != "":
		quotes := s.snap.ByPrefix(class, prefix)
		if len(quotes) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no %s records with prefix %s", class, prefix)})
			return
		}
		c.JSON(http.StatusOK, quotes)
	case len(defaultPrefixes) > 0:
		quotes := make([]types.Quote, 0)
		for _, p := range defaultPrefixes {
			quotes = append(quotes, s.snap.ByPrefix(class, p)...)
		}
		c.JSON(http.StatusOK, quotes)
	default:
		c.JSON(http.StatusOK, s.snap.All(class))
	}
}

func (s *Server) listAll(c *gin.Context, class types.Class, label string) {
	quotes := s.snap.All(class)
	c.JSON(http.StatusOK, gin.H{
		"message":     fmt.Sprintf("todas las %s disponibles (%d instrumentos)", label, len(quotes)),
		"total_count": len(quotes),
		"data":        quotes,
	})
}

func (s *Server) parseDays(c *gin.Context) (int, bool) {
	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > history.MaxDays {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("days must be between 1 and %d", history.MaxDays),
			})
			return 0, false
		}
		days = n
	}
	return days, true
}

// requireSession gates history endpoints on an active broker session. The
// snapshot endpoints deliberately have no such gate.
func (s *Server) requireSession(c *gin.Context) bool {
	if s.sup.State() != types.StateConnected {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "no active broker session; check /status/connection",
		})
		return false
	}
	return true
}

func isKnownSecurityType(t string) bool {
	switch strings.ToLower(t) {
	case "acciones", "bonos", "cedears", "letras", "ons", "panel_general":
		return true
	default:
		return false
	}
}

func hasSettlementSuffix(ticker string) bool {
	return strings.HasSuffix(ticker, " - 24hs") || strings.HasSuffix(ticker, " - SPOT")
}
