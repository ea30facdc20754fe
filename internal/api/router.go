package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kiatrader/internal/metrics"
	"kiatrader/internal/uag"
)

// NewRouter wires the six ingress operations behind bearer auth, plus an
// unauthenticated health check and a Prometheus scrape endpoint.
func NewRouter(service *uag.Service, bearerSecret []byte) *gin.Engine {
	server := NewServer(service)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(bearerSecret))
	{
		v1.POST("/settings", server.handleSaveSettings)
		v1.POST("/mode", server.handleSwitchMode)
		v1.POST("/trading/start", server.handleStartTrading)
		v1.GET("/monitor", server.handleMonitorStatus)
		v1.GET("/reports/daily/:date", server.handleDailyReport)
		v1.GET("/reports/trades/:date", server.handleTradesReport)
	}

	return router
}
