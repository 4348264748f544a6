// Package httpapi is the small operator HTTP surface — health check,
// Prometheus scrape endpoint, and a read-only per-coin L2 debug dump —
// grounded on the teacher's internal/config/gin.go NewHFTGinEngine
// pattern (a lightweight Gin engine with CORS and promhttp mounted).
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DebugDepth bounds the /debug/book/:coin dump to the same top-N depth
// the reducer computes for L2.
const DebugDepth = 100

// Config controls engine construction.
type Config struct {
	AllowedOrigins []string
}

// NewEngine builds the operator HTTP surface: /healthz, /metrics and
// /debug/book/:coin.
func NewEngine(cfg Config, reg *prometheus.Registry, books *book.Books) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	e.Use(cors.New(corsCfg))

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	e.GET("/debug/book/:coin", func(c *gin.Context) {
		coin := c.Param("coin")
		var bids, asks []debugLevel
		books.With(types.Coin(coin), func(b *book.OrderBook) {
			rawBids, rawAsks := b.TopN(DebugDepth)
			bids = toDebugLevels(rawBids)
			asks = toDebugLevels(rawAsks)
		})
		c.JSON(http.StatusOK, gin.H{"coin": coin, "bids": bids, "asks": asks})
	})
	return e
}

type debugLevel struct {
	Px    string `json:"px"`
	Sz    string `json:"sz"`
	Count int    `json:"n"`
}

func toDebugLevels(levels []types.Level) []debugLevel {
	out := make([]debugLevel, len(levels))
	for i, l := range levels {
		out[i] = debugLevel{Px: l.Px.String(), Sz: l.Sz.String(), Count: l.Count}
	}
	return out
}
