// Package router assembles the Gin engine from the application's modules.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "prospect_intake_backend/internal/http"
	"prospect_intake_backend/platform/httpkit"
	"prospect_intake_backend/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// New builds the HTTP router: global middleware, health endpoint, the
// rate-limited public group and the API-key-protected operator group, then
// lets each module register its routes.
func New(app *apphttp.App) *gin.Engine {
	cfg := app.Config
	log := app.Logger

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(cfg))

	engine.GET("/api/health", healthHandler(app.Health, log))

	v1 := engine.Group("/api/v1")

	perMinute := cfg.GetIntakeRatePerMinute()
	limiter := httpkit.NewIPRateLimiter(rate.Limit(float64(perMinute)/60.0), cfg.GetIntakeRateBurst(), log)
	public := v1.Group("")
	public.Use(limiter.RateLimit())
	// The landing page posts with a shared key; leave the group open when no
	// key is configured (local development).
	if key := cfg.GetIntakeAPIKey(); key != "" {
		public.Use(httpkit.APIKeyRequired(key))
	}

	operator := v1.Group("")
	operator.Use(httpkit.APIKeyRequired(cfg.GetOperatorAPIKey()))

	ctx := &apphttp.RouterContext{
		Engine:   engine,
		Public:   public,
		Operator: operator,
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		log.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(cfg apphttp.RouterConfig) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
		corsCfg.AllowCredentials = cfg.GetCORSAllowCreds()
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, httpkit.APIKeyHeader)
	return cors.New(corsCfg)
}

func healthHandler(health apphttp.HealthChecker, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				log.Error("health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
