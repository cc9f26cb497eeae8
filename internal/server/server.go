// Package server is the read-only HTTP query layer. Handlers translate
// requests into snapshot store reads and never touch the broker session.
package server

import (
	"net/http"

	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/store"

	"github.com/gin-gonic/gin"
)

const apiVersion = "1.0.0"

type Server struct {
	snap    interfaces.SnapshotStore
	sup     interfaces.Supervisor
	history interfaces.HistoryProvider
	catalog *store.Catalog
	cfg     *store.Config
}

func New(snap interfaces.SnapshotStore, sup interfaces.Supervisor, history interfaces.HistoryProvider, catalog *store.Catalog, cfg *store.Config) *Server {
	return &Server{
		snap:    snap,
		sup:     sup,
		history: history,
		catalog: catalog,
		cfg:     cfg,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsAllowAll())

	r.GET("/", s.getRoot)
	r.GET("/health", s.getHealth)

	r.GET("/options", s.getOptions)
	r.GET("/options/prefix/:prefix", s.getOptionsByPrefix)
	r.GET("/options/ticker/:ticker", s.getOptionsByTicker)
	r.GET("/options/all", s.getAllOptions)

	r.GET("/stocks", s.getStocks)
	r.GET("/stocks/prefix/:prefix", s.getStocksByPrefix)
	r.GET("/stocks/ticker/:ticker", s.getStocksByTicker)
	r.GET("/stocks/all", s.getAllStocks)

	r.GET("/securities", s.getSecurities)
	r.GET("/securities/ticker/:ticker", s.getSecuritiesByTicker)
	r.GET("/securities/all", s.getAllSecurities)

	r.GET("/cauciones", s.getCauciones)

	r.GET("/historical/:symbol", s.getHistorical)
	r.POST("/historical/batch", s.getHistoricalBatch)
	r.GET("/intraday/:symbol", s.getIntraday)
	r.POST("/intraday/batch", s.getIntradayBatch)

	r.GET("/config", s.getConfig)
	r.GET("/status/connection", s.getConnectionStatus)
	r.POST("/reconnect", s.postReconnect)

	return r
}

// The API is public; every origin may read it.
func corsAllowAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
