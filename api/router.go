package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guardline/brandscan/api/handler"
	"github.com/guardline/brandscan/api/middleware"
	"github.com/guardline/brandscan/cache"
	"github.com/guardline/brandscan/config"
	"github.com/guardline/brandscan/scan"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(runner *scan.Runner, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Synchronous scan.
	protected.POST("/scan", handler.Scan(runner, cc))

	// Async scan + polling.
	protected.POST("/scan/async", handler.PostScanAsync(runner))
	protected.GET("/scan/:id", handler.GetScanJob())

	return r
}
